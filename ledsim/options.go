// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledsim

import "time"

// NewOption defines the interface required to provide an option to New.
type NewOption interface {
	applySimOption(*Sim)
}

// IRQOption defines the interrupt line of the Sim.
type IRQOption int

// WithIRQ returns an option that sets the interrupt line of the Sim.
//
// The default line is 0.
func WithIRQ(line int) IRQOption {
	return IRQOption(line)
}

func (o IRQOption) applySimOption(s *Sim) {
	s.line = int(o)
}

// FailOption defines the bind step at which the Sim fails.
type FailOption Step

// WithFailAt returns an option that makes the given bind step fail.
func WithFailAt(step Step) FailOption {
	return FailOption(step)
}

func (o FailOption) applySimOption(s *Sim) {
	s.failAt = Step(o)
}

// ToggleDelays is an option that defines how long each toggle write takes.
type ToggleDelays []time.Duration

// WithToggleDelays returns an option that advances the Sim time source by
// the given durations on successive writes to the toggle register.
//
// Once the delays are exhausted toggle writes take no time.
func WithToggleDelays(delays ...time.Duration) ToggleDelays {
	return ToggleDelays(delays)
}

func (o ToggleDelays) applySimOption(s *Sim) {
	s.Regs.delays = append(s.Regs.delays, o...)
}
