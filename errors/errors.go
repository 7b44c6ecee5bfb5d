/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDelegateConflict is returned when a store already has a different delegate registered.
	ErrDelegateConflict = errors.New("store delegate already set")

	// ErrIncomparableTimestamps is returned when two logical timestamps of different kinds are compared.
	ErrIncomparableTimestamps = errors.New("timestamps are of different kinds")

	// ErrFragmentNotFound is returned when a requested fragment is not held locally.
	ErrFragmentNotFound = errors.New("fragment not found")

	// ErrTermAuthorityUnreachable is returned when the mastership term authority cannot allocate a term.
	ErrTermAuthorityUnreachable = errors.New("term authority is unreachable")

	// ErrNotMaster is returned when an operation requires the local node to be the device master.
	ErrNotMaster = errors.New("local node is not the device master")

	// ErrNoMaster is returned when no master is currently assigned to the device.
	ErrNoMaster = errors.New("no master assigned")

	// ErrDispatcherInactive is returned when an event is posted to a dispatcher that is not active.
	ErrDispatcherInactive = errors.New("event dispatcher is not active")

	// ErrDispatcherFull is returned when the dispatcher queue has reached its capacity.
	ErrDispatcherFull = errors.New("event dispatcher queue is full")

	// ErrUnknownSubject is returned when a cluster message subject has no registered handler.
	ErrUnknownSubject = errors.New("unknown message subject")

	// ErrInvalidMessage is returned when a cluster message cannot be decoded.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnsupportedVersion is returned when a cluster message carries an unknown wire version.
	ErrUnsupportedVersion = errors.New("unsupported wire version")

	// ErrDeviceNotFound is returned when the device is not known to the store.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrHostNotFound is returned when the host is not known to the store.
	ErrHostNotFound = errors.New("host not found")

	// ErrNodeNotFound is returned when a message is addressed to a node outside the membership.
	ErrNodeNotFound = errors.New("node not found")

	// ErrTransportNotStarted is returned when the cluster transport is used before Start.
	ErrTransportNotStarted = errors.New("cluster transport is not started")

	// ErrEngineNotStarted is returned when the controller is used before Start.
	ErrEngineNotStarted = errors.New("controller is not started")

	// ErrProviderNotFound is returned when no adapter is registered for the provider scheme of an element.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrInvalidConfig is returned when the configuration fails validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// NewErrInvalidMessage wraps a decoding failure into ErrInvalidMessage
func NewErrInvalidMessage(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
}

// NewErrTermAuthorityUnreachable wraps a term authority failure
func NewErrTermAuthorityUnreachable(err error) error {
	return fmt.Errorf("%w: %w", ErrTermAuthorityUnreachable, err)
}

// NewErrUnsupportedVersion returns an ErrUnsupportedVersion for the given version
func NewErrUnsupportedVersion(version uint64) error {
	return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
}

// NewErrUnknownSubject returns an ErrUnknownSubject for the given subject
func NewErrUnknownSubject(subject string) error {
	return fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
}

// PanicError defines the panic error
// wrapping the underlying error
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

func (e *PanicError) Unwrap() error {
	return e.err
}

// InternalError defines an error that is explicit to the application
type InternalError struct {
	err error
}

// enforce compilation error
var _ error = (*InternalError)(nil)

// NewInternalError returns an intance of InternalError
func NewInternalError(err error) *InternalError {
	return &InternalError{
		err: fmt.Errorf("internal error: %w", err),
	}
}

// Error implements the standard error interface
func (i *InternalError) Error() string {
	return i.err.Error()
}

func (i *InternalError) Unwrap() error {
	return i.err
}
