// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
)

// State is the lifecycle state of a Device.
type State int

const (
	// Unbound devices hold no resources and support no operations.
	Unbound State = iota

	// Binding is the transient state while resources are being acquired.
	Binding

	// Active devices have their clock enabled and may be toggled.
	Active

	// Suspended devices have their clock gated.
	Suspended
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Binding:
		return "binding"
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Device is a bound LED device.
//
// Toggle, Snapshot and Report may be called concurrently with each other and
// with the interrupt handler. The lifecycle methods, Suspend, Resume and
// Unbind, must not be called concurrently with each other.
type Device struct {
	name    string
	logger  *slog.Logger
	ts      TimeSource
	power   PowerManager
	surface Surface
	retry   ResumeRetryOption

	win *Window
	clk Clock
	irq int

	// res holds the resources released at unbind, in reverse order.
	res scope

	// guard serializes register access, telemetry, state and clock gating.
	guard sync.Mutex

	// The fields below are protected by guard.
	state State
	clkOn bool
	stats stats
}

// binder contains all the information required to bind a Device.
type binder struct {
	name    string // optional
	logger  *slog.Logger
	ts      TimeSource
	surface Surface
	retry   ResumeRetryOption
}

// Bind acquires the device resources and takes the device Active.
//
// The resources are acquired in order: register window, clock, interrupt
// line, interrupt handler. The device interrupt is then enabled and the
// reporting surface, if any, is exposed.
//
// If any step fails then all the resources acquired so far are released, in
// reverse order, and an *Error identifying the failed step is returned.
//
// The available options are [WithName], [WithLogger], [WithTimeSource],
// [WithSurface] and [WithResumeRetry].
func Bind(r Resources, options ...BindOption) (*Device, error) {
	b := binder{}
	for _, o := range options {
		o.applyBindOption(&b)
	}
	return b.bind(r)
}

func (b *binder) bind(r Resources) (*Device, error) {
	if len(b.name) == 0 {
		b.name = uniqueName()
	}
	if b.logger == nil {
		b.logger = Logger()
	}
	if b.ts == nil {
		b.ts = monotonic{time.Now()}
	}
	d := &Device{
		name:    b.name,
		logger:  b.logger.With("component", "ledctl", "device", b.name),
		ts:      b.ts,
		power:   r.Power,
		surface: b.surface,
		retry:   b.retry,
		state:   Binding,
	}
	if d.power == nil {
		d.power = alwaysOn{}
	}
	if r.Provider == nil || r.Interrupts == nil {
		return nil, newError("bind", ErrResourceUnavailable, errors.New("incomplete resources"))
	}
	fail := func(kind error, step string, err error) (*Device, error) {
		d.res.release()
		d.state = Unbound
		d.logger.Warn("bind failed", "step", step, "err", err)
		return nil, newError("bind", kind, errors.Wrap(err, step))
	}

	m, err := r.Provider.MapRegisters()
	if err != nil {
		return fail(ErrResourceUnavailable, "map registers", err)
	}
	d.res.add(func() {
		if err := m.Close(); err != nil {
			d.logger.Warn("unmap registers failed", "err", err)
		}
	})
	d.win = NewWindow(m)

	d.clk, err = r.Provider.Clock()
	if err != nil {
		return fail(ErrClock, "get clock", err)
	}
	if err = d.clk.PrepareEnable(); err != nil {
		return fail(ErrClock, "enable clock", err)
	}
	d.clkOn = true
	// no-op unless the clock is still enabled, i.e. bind failed after this point.
	d.res.add(func() {
		if d.clkOn {
			d.clk.DisableUnprepare()
			d.clkOn = false
		}
	})

	d.irq, err = r.Provider.IRQ()
	if err == nil && d.irq < 0 {
		err = errors.Errorf("negative line %d", d.irq)
	}
	if err != nil {
		return fail(ErrInvalidInterrupt, "get irq", err)
	}

	h, err := r.Interrupts.RequestIRQ(d.irq, d.name, d.handleIRQ)
	if err != nil {
		return fail(ErrHandlerInstall, "request irq", err)
	}
	d.res.add(func() {
		if err := h.Close(); err != nil {
			d.logger.Warn("free irq failed", "irq", d.irq, "err", err)
		}
	})

	d.guard.Lock()
	d.win.Write(RegIntEnable, IntBit)
	d.guard.Unlock()

	if d.surface != nil {
		if err = d.surface.Expose(d); err != nil {
			return fail(ErrResourceUnavailable, "expose surface", err)
		}
	}

	d.guard.Lock()
	d.state = Active
	d.guard.Unlock()
	d.logger.Info("device bound", "irq", d.irq)
	return d, nil
}

// Unbind removes the reporting surface, gates the clock, and releases the
// interrupt handler and register window.
//
// The telemetry remains available from Snapshot after Unbind.
//
// Returns ErrUnbound if the device is already unbound.
func (d *Device) Unbind() error {
	d.guard.Lock()
	s := d.state
	d.guard.Unlock()
	if s != Active && s != Suspended {
		return newError("unbind", ErrUnbound, nil)
	}
	if d.surface != nil {
		d.surface.Remove()
	}
	d.guard.Lock()
	if d.clkOn {
		if err := d.clk.DisableUnprepare(); err != nil {
			d.logger.Warn("disable clock failed", "err", err)
		}
		d.clkOn = false
	}
	d.state = Unbound
	d.guard.Unlock()
	// outside the guard as removing the handler waits for it to return.
	d.res.release()
	d.logger.Info("device unbound")
	return nil
}

// Suspend gates the clock and takes the device from Active to Suspended.
//
// The clock is gated while holding the guard, so a toggle in flight completes
// its register write first, and any later toggle fails with ErrNotActive.
//
// If the clock cannot be gated the device remains Active.
func (d *Device) Suspend() error {
	d.guard.Lock()
	defer d.guard.Unlock()
	switch d.state {
	case Active:
	case Unbound, Binding:
		return newError("suspend", ErrUnbound, nil)
	default:
		return newError("suspend", ErrNotActive, nil)
	}
	if err := d.clk.DisableUnprepare(); err != nil {
		return newError("suspend", ErrClock, err)
	}
	d.clkOn = false
	d.state = Suspended
	d.logger.Debug("suspended")
	return nil
}

// Resume ungates the clock and takes the device from Suspended to Active.
//
// If the clock cannot be enabled the device remains Suspended.
func (d *Device) Resume() error {
	d.guard.Lock()
	s := d.state
	d.guard.Unlock()
	switch s {
	case Suspended:
	case Unbound, Binding:
		return newError("resume", ErrUnbound, nil)
	default:
		return newError("resume", ErrNotSuspended, nil)
	}
	if err := d.enableClock(); err != nil {
		return newError("resume", ErrClock, err)
	}
	d.guard.Lock()
	d.clkOn = true
	d.state = Active
	d.guard.Unlock()
	d.logger.Debug("resumed")
	return nil
}

// enableClock enables the clock, retrying as per the resume retry policy.
func (d *Device) enableClock() error {
	err := d.clk.PrepareEnable()
	if err == nil || d.retry.attempts <= 1 {
		return err
	}
	b := &backoff.Backoff{Min: d.retry.min, Max: d.retry.max, Factor: 2}
	for attempt := 1; attempt < d.retry.attempts; attempt++ {
		wait := b.Duration()
		d.logger.Warn("enable clock failed, retrying", "attempt", attempt, "wait", wait, "err", err)
		time.Sleep(wait)
		if err = d.clk.PrepareEnable(); err == nil {
			return nil
		}
	}
	return err
}

// Name returns the name of the device.
func (d *Device) Name() string {
	return d.name
}

// State returns the current lifecycle state of the device.
func (d *Device) State() State {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.state
}

var devCounter uint32 = 0

// uniqueName returns a name for the device that is very likely to be unique,
// using the appname, PID and a monotonic atomic counter.
func uniqueName() string {
	return fmt.Sprintf("%s-p%d-%d", appName(), os.Getpid(), atomic.AddUint32(&devCounter, 1))
}

// appName returns the name of the running executable.
//
// Falls back to "ledctl" if that can't be determined for some reason.
func appName() string {
	str, err := os.Executable()
	if err != nil {
		return "ledctl"
	}
	return path.Base(str)
}
