// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

import (
	"context"
	"io"
	"time"
)

// Provider provides the hardware resources of the device.
//
// How the resources are discovered is up to the provider.
type Provider interface {
	// MapRegisters claims and maps the device register window.
	MapRegisters() (RegisterMap, error)

	// Clock resolves the device gating clock.
	Clock() (Clock, error)

	// IRQ resolves the device interrupt line.
	IRQ() (int, error)
}

// ProviderFuncs adapts a set of functions to a Provider.
type ProviderFuncs struct {
	MapFunc   func() (RegisterMap, error)
	ClockFunc func() (Clock, error)
	IRQFunc   func() (int, error)
}

func (p ProviderFuncs) MapRegisters() (RegisterMap, error) {
	return p.MapFunc()
}

func (p ProviderFuncs) Clock() (Clock, error) {
	return p.ClockFunc()
}

func (p ProviderFuncs) IRQ() (int, error) {
	return p.IRQFunc()
}

// Clock is the device gating clock.
type Clock interface {
	// PrepareEnable ungates the clock.
	PrepareEnable() error

	// DisableUnprepare gates the clock.
	DisableUnprepare() error
}

// InterruptController installs interrupt handlers.
type InterruptController interface {
	// RequestIRQ installs the handler for the line.
	//
	// The handler is called each time the line fires, and must not be called
	// concurrently with itself. Closing the returned Closer removes the
	// handler, and it is not called again once Close returns.
	RequestIRQ(line int, name string, handler func()) (io.Closer, error)
}

// PowerManager keeps the device powered around toggle operations.
type PowerManager interface {
	// Activate ensures the device is powered, and holds it powered until the
	// matching Release.
	//
	// May block.
	Activate(ctx context.Context) error

	// Release drops the hold taken by Activate.
	Release()
}

// TimeSource is a monotonic time source.
type TimeSource interface {
	// Now returns the time elapsed since an arbitrary fixed epoch.
	Now() time.Duration
}

// Surface is a reporting surface exposing the device telemetry.
type Surface interface {
	// Expose makes the device report available.
	Expose(d *Device) error

	// Remove withdraws the device report.
	Remove()
}

// Resources contains the collaborators required to bind a Device.
type Resources struct {
	// Provider of the register window, clock and interrupt line.
	Provider Provider

	// Interrupts installs the interrupt handler.
	Interrupts InterruptController

	// Power keeps the device active around toggles.
	//
	// Optional. If nil the device is assumed to be always powered.
	Power PowerManager
}

// monotonic is the default TimeSource.
type monotonic struct {
	epoch time.Time
}

func (m monotonic) Now() time.Duration {
	return time.Since(m.epoch)
}

// alwaysOn is the PowerManager used when none is provided.
type alwaysOn struct{}

func (alwaysOn) Activate(context.Context) error { return nil }
func (alwaysOn) Release()                       {}

// scope releases resources in reverse order of acquisition.
type scope struct {
	releases []func()
}

func (s *scope) add(release func()) {
	s.releases = append(s.releases, release)
}

// release runs all the releases, most recent first, exactly once.
func (s *scope) release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}
