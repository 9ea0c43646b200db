// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package ledsim provides a simulated LED device for testing users of ledctl
without hardware.

A simulator ([Sim]) provides all the resources required to bind a
ledctl.Device - a register file, a gating clock, an interrupt controller, a
power manager and a deterministic time source - with the ability to inject a
failure at any bind step and to check that no resources remain held.

The register file implements the device semantics:

  - writing 1 to the toggle register flips the LED, reflected in the enable bit
    of the control and status registers,
  - each toggle latches the interrupt bit in the interrupt status register if
    the interrupt is enabled,
  - writing 1s to the interrupt status register clears those bits.

Interrupts are delivered only when the test calls [Sim.Raise], as the device
would deliver them asynchronously.

# Example Usage

	s := ledsim.New(ledsim.WithToggleDelays(100, 200, 300))
	d, err := ledctl.Bind(s.Resources(), ledctl.WithTimeSource(s.Time))
	d.Toggle(ctx)
	s.Raise()
	count, avg := d.Snapshot()
*/
package ledsim
