// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package code defines the error taxonomy shared by every layer of the
// network core. Errors are small sentinel values rather than a type
// hierarchy so callers can compare with errors.Is and switch on Code.
package code

// Code identifies the kind of failure behind an Error. It is not a type
// hierarchy: every operation in this module completes with exactly one
// Code, never a partial success.
type Code int

// The error taxonomy shared across the core. Success is the zero value so a
// freshly declared Code or *Error-typed nil comparison behaves sanely.
const (
	Success Code = iota
	ServiceStopped
	OperationFailed
	ResolveFailed
	NetworkUnreachable
	AddressInUse
	AcceptFailed
	BadStream
	ChannelTimeout
	ChannelStopped
	ChannelTransport
	ChannelBadMagic
	ChannelOversize
	NotFound
	FileSystem
	SeedingUnsuccessful
	InvalidAuthority
)

var names = map[Code]string{
	Success:             "success",
	ServiceStopped:      "service_stopped",
	OperationFailed:     "operation_failed",
	ResolveFailed:       "resolve_failed",
	NetworkUnreachable:  "network_unreachable",
	AddressInUse:        "address_in_use",
	AcceptFailed:        "accept_failed",
	BadStream:           "bad_stream",
	ChannelTimeout:      "channel_timeout",
	ChannelStopped:      "channel_stopped",
	ChannelTransport:    "channel_transport",
	ChannelBadMagic:     "channel_bad_magic",
	ChannelOversize:     "channel_oversize",
	NotFound:            "not_found",
	FileSystem:          "file_system",
	SeedingUnsuccessful: "seeding_unsuccessful",
	InvalidAuthority:    "invalid_authority",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if s, ok := names[c]; ok {
		return s
	}
	return "unknown"
}

// Error wraps a Code with a human-readable description and, optionally, the
// underlying cause. It implements the standard unwrap protocol so callers
// can still reach the original error with errors.As/errors.Unwrap.
type Error struct {
	Code        Code
	Description string
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code.String()
}

// Unwrap implements the standard unwrap protocol.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Code, letting callers
// write errors.Is(err, code.New(code.ChannelStopped, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates an *Error with the given code and description.
func New(c Code, description string) *Error {
	return &Error{Code: c, Description: description}
}

// Wrap creates an *Error with the given code, description, and cause.
func Wrap(c Code, description string, err error) *Error {
	return &Error{Code: c, Description: description, Err: err}
}

// Of extracts the Code from err, returning Success if err is nil and
// OperationFailed if err is a non-nil error that isn't an *Error.
func Of(err error) Code {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return OperationFailed
}
