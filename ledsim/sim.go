// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledsim

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/go-ledctl"
)

// Step identifies a bind step that may be made to fail.
type Step int

const (
	// No step fails.
	StepNone Step = iota

	// Mapping the register window fails.
	StepMap

	// Resolving the clock fails.
	StepClock

	// Enabling the clock fails.
	StepClockEnable

	// Resolving the interrupt line fails.
	StepIRQ

	// Installing the interrupt handler fails.
	StepHandler
)

// ErrInjected is the error returned by a step made to fail.
var ErrInjected = errors.New("injected failure")

// Sim is a simulated LED device.
type Sim struct {
	// The register file backing the register window.
	Regs *Registers

	// The device gating clock.
	Clk *Clock

	// The interrupt controller.
	IRQs *Interrupts

	// A power manager that counts activations.
	Power *Power

	// A deterministic time source, advanced by toggle writes.
	Time *Timeline

	// The interrupt line of the device.
	line int

	// The bind step to fail.
	failAt Step
}

// New constructs a Sim based on the provided options.
//
// The available options are [WithIRQ], [WithFailAt] and [WithToggleDelays].
func New(options ...NewOption) *Sim {
	t := &Timeline{}
	s := &Sim{
		Regs:  &Registers{time: t},
		Clk:   &Clock{},
		IRQs:  &Interrupts{handlers: make(map[int]func())},
		Power: &Power{},
		Time:  t,
	}
	for _, o := range options {
		o.applySimOption(s)
	}
	if s.failAt == StepClockEnable {
		s.Clk.FailEnable(1)
	}
	if s.failAt == StepHandler {
		s.IRQs.fail = true
	}
	return s
}

// Resources returns the resources required to bind a ledctl.Device to the
// Sim.
func (s *Sim) Resources() ledctl.Resources {
	return ledctl.Resources{
		Provider:   s,
		Interrupts: s.IRQs,
		Power:      s.Power,
	}
}

// MapRegisters maps the register file.
func (s *Sim) MapRegisters() (ledctl.RegisterMap, error) {
	if s.failAt == StepMap {
		return nil, ErrInjected
	}
	s.Regs.mu.Lock()
	defer s.Regs.mu.Unlock()
	if s.Regs.mapped {
		return nil, errors.New("registers already mapped")
	}
	s.Regs.mapped = true
	return s.Regs, nil
}

// Clock returns the device clock.
func (s *Sim) Clock() (ledctl.Clock, error) {
	if s.failAt == StepClock {
		return nil, ErrInjected
	}
	return s.Clk, nil
}

// IRQ returns the interrupt line.
func (s *Sim) IRQ() (int, error) {
	if s.failAt == StepIRQ {
		return -1, ErrInjected
	}
	return s.line, nil
}

// Raise delivers the device interrupt to the installed handler, if any.
//
// Returns true if a handler was called.
func (s *Sim) Raise() bool {
	return s.IRQs.Raise(s.line)
}

// Held returns the resources currently held by a user of the Sim.
//
// Any of "registers", "clock", "irq", or "power".
func (s *Sim) Held() []string {
	var held []string
	if s.Regs.Mapped() {
		held = append(held, "registers")
	}
	if s.Clk.Enabled() {
		held = append(held, "clock")
	}
	if s.IRQs.Installed(s.line) {
		held = append(held, "irq")
	}
	if s.Power.Count() != 0 {
		held = append(held, "power")
	}
	return held
}

// Registers is the simulated register file.
type Registers struct {
	mu      sync.Mutex
	regs    [ledctl.WindowSize / 4]uint32
	writes  [ledctl.WindowSize / 4]int
	mapped  bool
	time    *Timeline
	delays  []time.Duration
	toggles int
}

// ReadUint32 returns the value of the register at the offset.
func (r *Registers) ReadUint32(offset uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.regs[offset/4]
}

// WriteUint32 writes the register at the offset, applying the device
// semantics.
func (r *Registers) WriteUint32(offset uint32, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := offset / 4
	r.writes[i]++
	switch offset {
	case ledctl.RegToggle.Offset():
		if value&1 == 0 {
			return
		}
		ctrl := ledctl.RegControl.Offset() / 4
		r.regs[ctrl] ^= ledctl.EnableBit
		r.regs[ledctl.RegStatus.Offset()/4] = r.regs[ctrl] & ledctl.EnableBit
		if r.toggles < len(r.delays) {
			r.time.Advance(r.delays[r.toggles])
		}
		r.toggles++
		if r.regs[ledctl.RegIntEnable.Offset()/4]&ledctl.IntBit != 0 {
			r.regs[ledctl.RegIntStatus.Offset()/4] |= ledctl.IntBit
		}
	case ledctl.RegIntStatus.Offset():
		r.regs[i] &^= value
	case ledctl.RegStatus.Offset():
		// read-only
	default:
		r.regs[i] = value
	}
}

// Close unmaps the register file.
func (r *Registers) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mapped {
		return errors.New("registers not mapped")
	}
	r.mapped = false
	return nil
}

// Mapped returns true if the register file is currently mapped.
func (r *Registers) Mapped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mapped
}

// Peek returns the value of the register, bypassing the access counts.
func (r *Registers) Peek(reg ledctl.Reg) uint32 {
	return r.ReadUint32(reg.Offset())
}

// Assert latches the interrupt bit in the interrupt status register, as the
// device does when it signals an interrupt.
func (r *Registers) Assert() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[ledctl.RegIntStatus.Offset()/4] |= ledctl.IntBit
}

// Writes returns the number of writes made to the register.
func (r *Registers) Writes(reg ledctl.Reg) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes[reg.Offset()/4]
}

// Clock is the simulated gating clock.
type Clock struct {
	mu          sync.Mutex
	enabled     bool
	enables     int
	failEnables int
	failDisable bool
}

// PrepareEnable ungates the clock.
func (c *Clock) PrepareEnable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failEnables > 0 {
		c.failEnables--
		return ErrInjected
	}
	if c.enabled {
		return errors.New("clock already enabled")
	}
	c.enabled = true
	c.enables++
	return nil
}

// DisableUnprepare gates the clock.
func (c *Clock) DisableUnprepare() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failDisable {
		return ErrInjected
	}
	if !c.enabled {
		return errors.New("clock not enabled")
	}
	c.enabled = false
	return nil
}

// Enabled returns true if the clock is ungated.
func (c *Clock) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Enables returns the number of times the clock has been enabled.
func (c *Clock) Enables() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enables
}

// FailEnable makes the next n enables fail.
func (c *Clock) FailEnable(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failEnables = n
}

// FailDisable controls whether disables fail.
func (c *Clock) FailDisable(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failDisable = fail
}

// Interrupts is the simulated interrupt controller.
type Interrupts struct {
	mu       sync.Mutex
	handlers map[int]func()
	fail     bool
}

type irqHandle struct {
	ic   *Interrupts
	line int
}

func (h irqHandle) Close() error {
	h.ic.mu.Lock()
	defer h.ic.mu.Unlock()
	if _, ok := h.ic.handlers[h.line]; !ok {
		return errors.Errorf("irq %d not installed", h.line)
	}
	delete(h.ic.handlers, h.line)
	return nil
}

// RequestIRQ installs the handler for the line.
func (ic *Interrupts) RequestIRQ(line int, name string, handler func()) (io.Closer, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.fail {
		return nil, ErrInjected
	}
	if _, ok := ic.handlers[line]; ok {
		return nil, errors.Errorf("irq %d busy", line)
	}
	ic.handlers[line] = handler
	return irqHandle{ic, line}, nil
}

// Raise calls the handler installed for the line, if any.
//
// The controller lock is held while the handler runs, so handlers are never
// called concurrently, nor after their handle is closed.
func (ic *Interrupts) Raise(line int) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	h, ok := ic.handlers[line]
	if !ok {
		return false
	}
	h()
	return true
}

// Installed returns true if a handler is installed for the line.
func (ic *Interrupts) Installed(line int) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	_, ok := ic.handlers[line]
	return ok
}

// Power is a power manager that counts outstanding activations.
type Power struct {
	mu          sync.Mutex
	count       int
	activations int
	fail        error
}

// Activate takes a hold on the device power.
func (p *Power) Activate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.count++
	p.activations++
	return nil
}

// Release drops a hold on the device power.
func (p *Power) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count--
}

// Count returns the number of outstanding activations.
func (p *Power) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Activations returns the total number of successful activations.
func (p *Power) Activations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activations
}

// Fail makes subsequent activations fail with err, or succeed if err is nil.
func (p *Power) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

// Timeline is a deterministic monotonic time source.
type Timeline struct {
	mu  sync.Mutex
	now time.Duration
}

// Now returns the current time.
func (t *Timeline) Now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Advance moves the time forward by d.
func (t *Timeline) Advance(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now += d
}
