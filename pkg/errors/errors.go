// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package errors

import (
	stdliberrors "errors"
	"fmt"
)

var (
	ErrUnsupported = stdliberrors.ErrUnsupported

	As     = stdliberrors.As
	Is     = stdliberrors.Is
	Join   = stdliberrors.Join
	New    = stdliberrors.New
	Unwrap = stdliberrors.Unwrap
)

func NewRetryable(text string) RetryableError {
	return &retryableError{text}
}

func Retryable(err error) bool {
	var ae *AtomicError
	if As(err, &ae) {
		return ae.Kind == External
	}
	var rerr RetryableError
	return As(err, &rerr)
}

type RetryableError interface {
	error
	Retryable()
}

type retryableError struct {
	text string
}

func (r *retryableError) Error() string {
	return r.text
}

func (r *retryableError) Retryable() {}

// Kind classifies an error so callers (HTTP handlers, commit appliers) can
// react without string-matching messages.
type Kind int

const (
	Internal Kind = iota
	NotFound
	Validation
	Unauthenticated
	Unauthorized
	Conflict
	External
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Validation:
		return "validation"
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	case Conflict:
		return "conflict"
	case External:
		return "external"
	default:
		return "internal"
	}
}

// AtomicError is the Kind-classified error returned by every package in this
// module that needs to distinguish "not found" from "forbidden" from "this
// client sent garbage". Subject, when set, is the resource URL the error
// concerns.
type AtomicError struct {
	Kind    Kind
	Subject string
	Msg     string
	Cause   error
}

func (e *AtomicError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *AtomicError) Unwrap() error {
	return e.Cause
}

// Retryable lets this type satisfy RetryableError; the package-level
// Retryable reports true only for External-kind AtomicErrors (external
// fetch, notify delivery).
func (e *AtomicError) Retryable() {}

func newf(kind Kind, subject, format string, args ...any) *AtomicError {
	return &AtomicError{Kind: kind, Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(subject, format string, args ...any) *AtomicError {
	return newf(NotFound, subject, format, args...)
}

func Validationf(subject, format string, args ...any) *AtomicError {
	return newf(Validation, subject, format, args...)
}

func Unauthenticatedf(subject, format string, args ...any) *AtomicError {
	return newf(Unauthenticated, subject, format, args...)
}

func Unauthorizedf(subject, format string, args ...any) *AtomicError {
	return newf(Unauthorized, subject, format, args...)
}

func Conflictf(subject, format string, args ...any) *AtomicError {
	return newf(Conflict, subject, format, args...)
}

func Externalf(subject, format string, args ...any) *AtomicError {
	return newf(External, subject, format, args...)
}

func Internalf(subject, format string, args ...any) *AtomicError {
	return newf(Internal, subject, format, args...)
}

// Wrap attaches kind to an existing error without losing it for errors.Is/As.
func Wrap(kind Kind, subject string, cause error) *AtomicError {
	return &AtomicError{Kind: kind, Subject: subject, Msg: cause.Error(), Cause: cause}
}

// KindOf reports the Kind of err, defaulting to Internal for errors that
// were never classified.
func KindOf(err error) Kind {
	var ae *AtomicError
	if As(err, &ae) {
		return ae.Kind
	}
	return Internal
}
