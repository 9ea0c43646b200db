// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

/*
Package ledctl is a controller for a single memory-mapped LED device exposing
a five register window, an interrupt line and a gated clock.

The device is bound using [Bind], which acquires the register window, enables
the clock, resolves and installs the interrupt handler, and enables the device
interrupt. Any failure while binding releases everything acquired so far, in
reverse order, and no [Device] is returned.

Once bound, the device may be toggled using [Device.Toggle], which records the
latency of the register write. The accumulated count and average latency are
available from [Device.Snapshot] and, in text form, from [Device.Report].

The clock may be gated using [Device.Suspend] and ungated using
[Device.Resume]. These are normally driven by a power manager, such as the
one provided by the pm package, rather than called directly.

[Device.Unbind] removes the reporting surface, gates the clock, and releases
the interrupt handler and register window.

The collaborators the controller consumes - the register mapping, clock,
interrupt line and power manager - are interfaces, so the controller can be
driven by real hardware (see the uio, mmio and gpio packages) or by the
ledsim simulator.

# Example Usage

Binding a device described by a UIO device and a GPIO interrupt line:

	u, err := uio.Open("led")
	clk, err := gpio.NewGateClock("gpiochip0", 4)
	rt := pm.New(pm.WithAutosuspendDelay(time.Second))
	d, err := ledctl.Bind(ledctl.Resources{
		Provider: ledctl.ProviderFuncs{
			MapFunc:   u.MapRegisters,
			ClockFunc: func() (ledctl.Clock, error) { return clk, nil },
			IRQFunc:   func() (int, error) { return 5, nil },
		},
		Interrupts: &gpio.Interrupts{Chip: "gpiochip0"},
		Power:      rt,
	})
	rt.Enable(d)
	latency, err := d.Toggle(ctx)
	count, avg := d.Snapshot()
*/
package ledctl
