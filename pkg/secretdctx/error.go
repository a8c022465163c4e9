// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package secretdctx defines the error taxonomy shared by every layer of
// the secret storage engine, from the allocator up through the external
// collaborator surface.
package secretdctx

import "fmt"

// Kind classifies an Error so callers can branch without string matching.
type Kind string

const (
	// InvalidArgument marks malformed attributes, unknown algorithm
	// names, or oversized IV/tag fields.
	InvalidArgument Kind = "invalid_argument"
	// InvalidFileFormat marks a keyring magic/version mismatch or a
	// header shorter than expected.
	InvalidFileFormat Kind = "invalid_file_format"
	// Protocol marks cryptographic failure: key derivation, MAC
	// mismatch, unpad, decrypt/encrypt, HKDF/PBKDF2 failure, session
	// handshake or path mismatch.
	Protocol Kind = "protocol"
	// IO marks file open/read/write/replace or mkdir failures.
	IO Kind = "io"
	// OutOfMemory marks secure-memory exhaustion without a fallback.
	OutOfMemory Kind = "out_of_memory"
	// Cancelled marks cooperative cancellation firing at a suspension
	// point.
	Cancelled Kind = "cancelled"
)

// Error is the error type returned by every public operation in this
// module. Op names the failing operation (e.g. "collection.replace");
// Cause, when set, is the underlying error this one wraps.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error with no wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap constructs an Error around an existing cause. If cause is already
// a *Error, its Kind is preserved unless kind is explicitly non-empty.
func Wrap(kind Kind, op, message string, cause error) *Error {
	if cause == nil {
		return New(kind, op, message)
	}
	if kind == "" {
		if inner, ok := cause.(*Error); ok {
			kind = inner.Kind
		}
	}
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
