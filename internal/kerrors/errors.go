// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

// Package kerrors defines the error taxonomy shared across the
// serializer, broker and signal/slot packages (spec §7).
package kerrors

import "fmt"

// EncodingError reports a wire-format violation discovered while
// serializing a Container or Schema. Fatal only to the message being
// built.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string { return fmt.Sprintf("encoding error: %s", e.Reason) }

func NewEncodingError(format string, args ...any) error {
	return &EncodingError{Reason: fmt.Sprintf(format, args...)}
}

// DecodingError reports a wire-format violation discovered while
// parsing bytes back into a Container or Schema.
type DecodingError struct {
	Reason string
}

func (e *DecodingError) Error() string { return fmt.Sprintf("decoding error: %s", e.Reason) }

func NewDecodingError(format string, args ...any) error {
	return &DecodingError{Reason: fmt.Sprintf(format, args...)}
}

// LogicError marks a programming mistake: duplicate signal
// registration with a mismatched signature, a forbidden key
// character, an inconsistent BufferSet segment.
type LogicError struct {
	Reason string
}

func (e *LogicError) Error() string { return fmt.Sprintf("logic error: %s", e.Reason) }

func NewLogicError(format string, args ...any) error {
	return &LogicError{Reason: fmt.Sprintf(format, args...)}
}

// TimeoutError reports that an async or sync request exceeded its
// budget.
type TimeoutError struct {
	RequestID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: request %s did not complete in time", e.RequestID)
}

func NewTimeoutError(requestID string) error { return &TimeoutError{RequestID: requestID} }

// RemoteError carries an exception a remote slot reported back to the
// requestor.
type RemoteError struct {
	Message string
	Details string
}

func (e *RemoteError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("remote error: %s (%s)", e.Message, e.Details)
	}
	return fmt.Sprintf("remote error: %s", e.Message)
}

func NewRemoteError(message, details string) error {
	return &RemoteError{Message: message, Details: details}
}

// CastError reports that a reply's arity or types did not match what
// the caller asked to receive.
type CastError struct {
	Reason string
}

func (e *CastError) Error() string { return fmt.Sprintf("cast error: %s", e.Reason) }

func NewCastError(format string, args ...any) error {
	return &CastError{Reason: fmt.Sprintf(format, args...)}
}

// SignalSlotError covers discovery collisions, unknown-slot
// invocations, arity mismatches and failed connect/disconnect
// handshakes.
type SignalSlotError struct {
	Reason string
}

func (e *SignalSlotError) Error() string { return fmt.Sprintf("signal/slot error: %s", e.Reason) }

func NewSignalSlotError(format string, args ...any) error {
	return &SignalSlotError{Reason: fmt.Sprintf(format, args...)}
}

// NetworkError surfaces a broker publish/subscribe failure below the
// driver contract.
type NetworkError struct {
	Op     string
	Reason string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %s", e.Op, e.Reason)
}

func NewNetworkError(op, format string, args ...any) error {
	return &NetworkError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
