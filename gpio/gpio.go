// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package gpio provides an interrupt controller and a gated clock built on
// GPIO lines, using the Linux GPIO character device.
//
// Boards that route the device interrupt and clock gate to GPIOs, rather than
// to an interrupt controller and clock framework visible to userspace, can
// use these to bind a ledctl.Device.
package gpio

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// Interrupts delivers edges on the lines of a GPIO chip as interrupts.
//
// The interrupt line number is the offset of the line on the chip.
type Interrupts struct {
	// The name or path of the chip, e.g. "gpiochip0".
	Chip string

	// Trigger on falling rather than rising edges.
	FallingEdge bool
}

// RequestIRQ requests the line as an input and calls the handler on each
// edge.
//
// Closing the returned Closer releases the line.
func (ic *Interrupts) RequestIRQ(line int, name string, handler func()) (io.Closer, error) {
	var edge gpiocdev.LineReqOption = gpiocdev.WithRisingEdge
	if ic.FallingEdge {
		edge = gpiocdev.WithFallingEdge
	}
	l, err := gpiocdev.RequestLine(ic.Chip, line,
		gpiocdev.AsInput,
		edge,
		gpiocdev.WithConsumer(name),
		gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
			handler()
		}))
	if err != nil {
		return nil, errors.Wrapf(err, "request %s:%d", ic.Chip, line)
	}
	return l, nil
}

// GateClock is a clock gated by a GPIO output line.
//
// The clock runs while the line is driven active.
type GateClock struct {
	mu      sync.Mutex
	line    *gpiocdev.Line
	enabled bool
}

// NewGateClock requests the gate line as an output, initially inactive.
func NewGateClock(chip string, offset int, consumer string) (*GateClock, error) {
	l, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, errors.Wrapf(err, "request %s:%d", chip, offset)
	}
	return &GateClock{line: l}, nil
}

// PrepareEnable drives the gate line active.
func (c *GateClock) PrepareEnable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.line == nil {
		return errors.New("clock released")
	}
	if c.enabled {
		return errors.New("clock already enabled")
	}
	if err := c.line.SetValue(1); err != nil {
		return err
	}
	c.enabled = true
	return nil
}

// DisableUnprepare drives the gate line inactive.
func (c *GateClock) DisableUnprepare() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.line == nil {
		return errors.New("clock released")
	}
	if !c.enabled {
		return errors.New("clock not enabled")
	}
	if err := c.line.SetValue(0); err != nil {
		return err
	}
	c.enabled = false
	return nil
}

// Enabled returns true if the gate line is driven active.
func (c *GateClock) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Close releases the gate line.
//
// The kernel leaves the line driven at its last value.
func (c *GateClock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.line == nil {
		return nil
	}
	err := c.line.Close()
	c.line = nil
	return err
}
