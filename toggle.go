// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

import "context"

// Toggle toggles the LED and returns the latency of the register write, in
// nanoseconds.
//
// The device is activated via the power manager before timing starts, so the
// latency excludes any resume delay. Only the guarded register write is
// measured.
//
// Concurrent toggles are serialized, and each successful toggle is counted
// exactly once in the telemetry. A failed toggle does not alter the telemetry.
func (d *Device) Toggle(ctx context.Context) (uint64, error) {
	if d.State() == Unbound {
		return 0, newError("toggle", ErrUnbound, nil)
	}
	if err := d.power.Activate(ctx); err != nil {
		return 0, newError("toggle", ErrPower, err)
	}
	defer d.power.Release()

	start := d.ts.Now()
	d.guard.Lock()
	if d.state != Active {
		s := d.state
		d.guard.Unlock()
		if s == Unbound {
			return 0, newError("toggle", ErrUnbound, nil)
		}
		return 0, newError("toggle", ErrNotActive, nil)
	}
	d.win.Write(RegToggle, 1)
	d.guard.Unlock()
	end := d.ts.Now()

	var latency uint64
	if end > start {
		latency = uint64(end - start)
	}
	d.guard.Lock()
	d.stats.add(latency)
	d.guard.Unlock()
	return latency, nil
}
