// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

// handleIRQ acknowledges the device interrupt.
//
// The device has no other interrupt causes so the interrupt is always
// considered handled. Does not block beyond acquiring the guard, does not
// allocate, and does not touch the telemetry.
func (d *Device) handleIRQ() {
	d.guard.Lock()
	status := d.win.Read(RegIntStatus)
	if status&IntBit != 0 {
		// write-1-to-clear
		d.win.Write(RegIntStatus, IntBit)
	}
	d.guard.Unlock()
}
