// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

import (
	"log/slog"
	"time"
)

// BindOption defines the interface required to provide an option to Bind.
type BindOption interface {
	applyBindOption(*binder)
}

// NameOption defines the name of a Device.
type NameOption string

// WithName returns an option that defines the name of the Device.
//
// The name is used in logs and when installing the interrupt handler.
// If no name is provided a unique name is generated.
func WithName(name string) NameOption {
	return NameOption(name)
}

func (o NameOption) applyBindOption(b *binder) {
	b.name = string(o)
}

// LoggerOption defines the logger used by a Device.
type LoggerOption struct {
	logger *slog.Logger
}

// WithLogger returns an option that sets the logger used by the Device.
func WithLogger(l *slog.Logger) LoggerOption {
	return LoggerOption{l}
}

func (o LoggerOption) applyBindOption(b *binder) {
	b.logger = o.logger
}

// TimeSourceOption defines the time source used to measure toggle latency.
type TimeSourceOption struct {
	ts TimeSource
}

// WithTimeSource returns an option that sets the monotonic time source used
// to measure toggle latency.
func WithTimeSource(ts TimeSource) TimeSourceOption {
	return TimeSourceOption{ts}
}

func (o TimeSourceOption) applyBindOption(b *binder) {
	b.ts = o.ts
}

// SurfaceOption defines the reporting surface for a Device.
type SurfaceOption struct {
	s Surface
}

// WithSurface returns an option that exposes the device report on the
// surface once bound.
//
// The surface is removed first when the device is unbound.
func WithSurface(s Surface) SurfaceOption {
	return SurfaceOption{s}
}

func (o SurfaceOption) applyBindOption(b *binder) {
	b.surface = o.s
}

// ResumeRetryOption defines the retry policy for enabling the clock on resume.
type ResumeRetryOption struct {
	attempts int
	min      time.Duration
	max      time.Duration
}

// WithResumeRetry returns an option that retries a failed clock enable on
// resume, up to the given number of attempts, backing off exponentially
// between min and max.
//
// By default the clock enable is attempted once.
func WithResumeRetry(attempts int, min, max time.Duration) ResumeRetryOption {
	return ResumeRetryOption{attempts, min, max}
}

func (o ResumeRetryOption) applyBindOption(b *binder) {
	b.retry = o
}
