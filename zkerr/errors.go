// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package zkerr defines the closed error taxonomy returned by the
// verification dispatcher. Every failure observed by a caller is mapped to
// exactly one of these codes; no raw cryptographic values or internal
// exceptions ever cross the boundary.
package zkerr

import "fmt"

// Code is a member of the closed taxonomy a caller may observe.
type Code string

const (
	BadArguments  Code = "BAD_ARGUMENTS"
	NotAllowed    Code = "NOT_ALLOWED"
	LimitExceeded Code = "LIMIT_EXCEEDED"
	RegistryError Code = "REGISTRY_ERROR"
	ImportFailure Code = "IMPORT_FAILURE"
	AdapterError  Code = "ADAPTER_ERROR"
	VerifyFailed  Code = "VERIFY_FAILED"
	Unknown       Code = "UNKNOWN"
)

// maxMessageLen bounds error messages so a Result never leaks unbounded or
// raw cryptographic payloads to a caller.
const maxMessageLen = 256

// Error is the normalized error returned in a Result. It is never nil on
// its own terms; absence of error on success is represented by a nil
// *Error field in Result.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a bounded Error for the given code.
func New(code Code, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen]
	}
	return &Error{Code: code, Message: msg}
}

// Wrap maps an arbitrary internal error to the taxonomy under the given
// code, bounding and sanitizing its message. Used at the dispatcher
// boundary so no lower-level panic or exception shape leaks through.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, "%s", err.Error())
}
