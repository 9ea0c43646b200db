// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package pm provides runtime power management for a device.
//
// A Runtime counts the users of the device. While there are users the device
// is kept active, and once the last user releases it the device is suspended
// after an autosuspend delay. A user activating a suspended device waits for
// it to be resumed.
//
// As the device is only suspended when it has no users, operations in flight
// are always drained before the device is suspended.
package pm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Target is the device being power managed.
type Target interface {
	Suspend() error
	Resume() error
}

// Runtime is a runtime power manager.
//
// Runtime implements the ledctl.PowerManager interface.
type Runtime struct {
	delay  time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	target    Target
	usage     int
	suspended bool

	// closed when the transition in progress, if any, completes.
	busy chan struct{}

	// closed when usage next drops to zero.
	idle chan struct{}

	timer *time.Timer

	// incremented to invalidate pending autosuspends.
	gen uint64
}

// Option defines the interface required to provide an option to New.
type Option interface {
	applyOption(*Runtime)
}

// AutosuspendDelayOption defines the autosuspend delay.
type AutosuspendDelayOption time.Duration

// WithAutosuspendDelay returns an option that sets how long the device must
// be idle before it is suspended.
//
// The default is 100ms.
func WithAutosuspendDelay(d time.Duration) AutosuspendDelayOption {
	return AutosuspendDelayOption(d)
}

func (o AutosuspendDelayOption) applyOption(r *Runtime) {
	r.delay = time.Duration(o)
}

// LoggerOption defines the logger used by the Runtime.
type LoggerOption struct {
	logger *slog.Logger
}

// WithLogger returns an option that sets the logger.
func WithLogger(l *slog.Logger) LoggerOption {
	return LoggerOption{l}
}

func (o LoggerOption) applyOption(r *Runtime) {
	if o.logger != nil {
		r.logger = o.logger
	}
}

// New creates a Runtime.
//
// The Runtime is disabled until Enable is called, and while disabled
// activations succeed immediately.
func New(options ...Option) *Runtime {
	r := &Runtime{
		delay:  100 * time.Millisecond,
		logger: slog.Default(),
	}
	for _, o := range options {
		o.applyOption(r)
	}
	r.logger = r.logger.With("component", "pm")
	return r
}

// Enable starts power managing the target.
//
// The target must be active.
func (r *Runtime) Enable(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = t
	r.suspended = false
	if r.usage == 0 {
		r.scheduleLocked()
	}
}

// Disable stops power managing the target, resuming it if it is suspended.
func (r *Runtime) Disable() error {
	r.mu.Lock()
	r.cancelLocked()
	for r.busy != nil {
		ch := r.busy
		r.mu.Unlock()
		<-ch
		r.mu.Lock()
		r.cancelLocked()
	}
	t := r.target
	suspended := r.suspended
	r.target = nil
	r.suspended = false
	r.mu.Unlock()
	if t != nil && suspended {
		return errors.Wrap(t.Resume(), "resume")
	}
	return nil
}

// Activate takes a usage reference, resuming the target if it is suspended.
//
// Blocks until the target is active or the context is done.
func (r *Runtime) Activate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	r.usage++
	r.cancelLocked()
	for {
		if r.busy != nil {
			ch := r.busy
			r.mu.Unlock()
			select {
			case <-ch:
				r.mu.Lock()
				continue
			case <-ctx.Done():
				r.mu.Lock()
				r.putLocked()
				return ctx.Err()
			}
		}
		if r.target == nil || !r.suspended {
			return nil
		}
		t := r.target
		ch := make(chan struct{})
		r.busy = ch
		r.mu.Unlock()
		err := t.Resume()
		r.mu.Lock()
		r.busy = nil
		close(ch)
		if err != nil {
			r.logger.Warn("resume failed", "err", err)
			r.putLocked()
			return errors.Wrap(err, "resume")
		}
		r.suspended = false
		r.logger.Debug("resumed")
	}
}

// Release drops a usage reference taken by Activate.
//
// When the last reference is dropped the target is suspended after the
// autosuspend delay.
func (r *Runtime) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.usage == 0 {
		r.logger.Warn("unbalanced release")
		return
	}
	r.putLocked()
}

// ForceSuspend waits for all users to release the target and suspends it
// immediately.
func (r *Runtime) ForceSuspend(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.usage > 0 {
			if r.idle == nil {
				r.idle = make(chan struct{})
			}
			if err := r.waitLocked(ctx, r.idle); err != nil {
				return err
			}
			continue
		}
		if r.busy != nil {
			if err := r.waitLocked(ctx, r.busy); err != nil {
				return err
			}
			continue
		}
		break
	}
	r.cancelLocked()
	if r.target == nil || r.suspended {
		return nil
	}
	return r.suspendLocked()
}

// Suspended returns true if the target is currently suspended.
func (r *Runtime) Suspended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suspended
}

// Usage returns the number of outstanding usage references.
func (r *Runtime) Usage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage
}

// waitLocked waits for ch to close, dropping the lock while waiting.
func (r *Runtime) waitLocked(ctx context.Context, ch chan struct{}) error {
	r.mu.Unlock()
	defer r.mu.Lock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) putLocked() {
	r.usage--
	if r.usage > 0 {
		return
	}
	if r.idle != nil {
		close(r.idle)
		r.idle = nil
	}
	if r.target != nil && !r.suspended {
		r.scheduleLocked()
	}
}

func (r *Runtime) scheduleLocked() {
	r.cancelLocked()
	gen := r.gen
	r.timer = time.AfterFunc(r.delay, func() {
		r.autosuspend(gen)
	})
}

func (r *Runtime) cancelLocked() {
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Runtime) autosuspend(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen || r.usage > 0 || r.busy != nil || r.target == nil || r.suspended {
		return
	}
	r.timer = nil
	r.suspendLocked()
}

// suspendLocked suspends the target, dropping the lock while the target
// suspends.
func (r *Runtime) suspendLocked() error {
	t := r.target
	ch := make(chan struct{})
	r.busy = ch
	r.mu.Unlock()
	err := t.Suspend()
	r.mu.Lock()
	r.busy = nil
	close(ch)
	if err != nil {
		r.logger.Warn("suspend failed", "err", err)
		return errors.Wrap(err, "suspend")
	}
	r.suspended = true
	r.logger.Debug("suspended")
	return nil
}
