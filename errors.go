// SPDX-FileCopyrightText: 2023 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

package ledctl

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds.
//
// Errors returned by the Device match one of these using errors.Is.
var (
	// ErrResourceUnavailable indicates the register range, interrupt line or
	// reporting surface could not be claimed.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrClock indicates the clock could not be resolved, enabled or disabled.
	ErrClock = errors.New("clock error")

	// ErrInvalidInterrupt indicates the interrupt line could not be resolved.
	ErrInvalidInterrupt = errors.New("invalid interrupt")

	// ErrHandlerInstall indicates the interrupt handler could not be installed.
	ErrHandlerInstall = errors.New("interrupt handler install failed")

	// ErrPower indicates the power manager could not activate the device.
	ErrPower = errors.New("power activation failed")

	// ErrUnbound indicates the operation was attempted on an unbound device.
	ErrUnbound = errors.New("device unbound")

	// ErrNotActive indicates the device is not in the Active state.
	ErrNotActive = errors.New("device not active")

	// ErrNotSuspended indicates the device is not in the Suspended state.
	ErrNotSuspended = errors.New("device not suspended")
)

// Error describes a failed Device operation.
type Error struct {
	// Op is the operation that failed, e.g. "bind" or "resume".
	Op string

	// Kind is one of the Err* kinds above.
	Kind error

	// Err is the underlying cause, if any.
	Err error
}

func newError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ledctl: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("ledctl: %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Is reports whether the target is the kind of the error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}
