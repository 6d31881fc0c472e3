// Package errext carries extra context (hints, process exit codes, VU
// script stack traces) alongside a plain Go error without forcing callers
// to build one error type per concern. Helpers wrap with errors.Unwrap
// support so errors.As/errors.Is keep working through the chain.
package errext

import (
	"errors"
	"fmt"

	"github.com/nogcio/wrkr-go/errext/exitcodes"
)

// AbortReason explains why a run was aborted mid-flight, when the abort
// came from something other than a plain error return.
type AbortReason uint8

const (
	AbortReasonInternal AbortReason = iota
	AbortReasonScriptError
	AbortReasonThreshold
)

// Exception is implemented by errors originating in the VU body that carry
// a rendered stack trace and an abort reason in addition to a message.
type Exception interface {
	error
	StackTrace() string
	AbortReason() AbortReason
}

// HasHint is implemented by errors carrying a short, user-facing
// explanation in addition to the underlying error text.
type HasHint interface {
	error
	Hint() string
}

// HasExitCode is implemented by errors that dictate the process exit code.
type HasExitCode interface {
	error
	ExitCode() exitcodes.ExitCode
}

type hintError struct {
	err  error
	hint string
}

func (e *hintError) Error() string { return e.err.Error() }
func (e *hintError) Unwrap() error { return e.err }
func (e *hintError) Hint() string  { return e.hint }

// WithHint wraps err with a short explanation. If err already carries a
// hint, the new one is prepended and the old one kept in parentheses, so
// repeated wrapping accumulates context instead of losing it.
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	var existing HasHint
	if errors.As(err, &existing) {
		hint = fmt.Sprintf("%s (%s)", hint, existing.Hint())
	}
	return &hintError{err: err, hint: hint}
}

type exitCodeError struct {
	err  error
	code exitcodes.ExitCode
}

func (e *exitCodeError) Error() string                 { return e.err.Error() }
func (e *exitCodeError) Unwrap() error                 { return e.err }
func (e *exitCodeError) ExitCode() exitcodes.ExitCode  { return e.code }

// WithExitCodeIfNone wraps err with code, unless err already has an exit
// code attached somewhere in its chain, in which case err is returned
// unchanged so the first, most specific exit code wins.
func WithExitCodeIfNone(err error, code exitcodes.ExitCode) error {
	if err == nil {
		return nil
	}
	var existing HasExitCode
	if errors.As(err, &existing) {
		return err
	}
	return &exitCodeError{err: err, code: code}
}

// Kind classifies an error by where it originated in the runner. It is
// carried on Error rather than expressed as distinct Go types, consistent
// with this package's wrap-don't-subclass style for Hint/ExitCode.
type Kind int

const (
	// InvalidInput covers malformed options, unknown executors, bad
	// stages/durations/thresholds, and invalid output paths.
	InvalidInput Kind = iota
	// ScriptError covers failures inside the external VU body.
	ScriptError
	// RuntimeError covers I/O errors, task-join failures, and metrics
	// registry invariant violations.
	RuntimeError
	// TransportError covers HTTP/gRPC transport errors surfaced in a
	// request result; these never fail an iteration on their own.
	TransportError
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case ScriptError:
		return "script error"
	case RuntimeError:
		return "runtime error"
	case TransportError:
		return "transport error"
	default:
		return "unknown error kind"
	}
}

// Error is a classified error carrying one of the Kind values above
// alongside a message and an optional wrapped cause.
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// ExitCode maps Kind onto its process exit code, implementing HasExitCode
// so constructing an Error is enough to dictate the process outcome
// without a separate WithExitCodeIfNone call.
func (e *Error) ExitCode() exitcodes.ExitCode {
	switch e.Kind {
	case InvalidInput:
		return exitcodes.InvalidConfig
	case ScriptError:
		return exitcodes.ScriptError
	default:
		return exitcodes.RuntimeError
	}
}

// NewError builds a classified Error. cause may be nil.
func NewError(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

type scriptException struct {
	msg   string
	stack string
}

func (e *scriptException) Error() string            { return e.msg }
func (e *scriptException) StackTrace() string       { return e.stack }
func (e *scriptException) AbortReason() AbortReason { return AbortReasonScriptError }

// NewScriptException builds an Exception for an unrecoverable failure
// inside a VU body (e.g. a recovered panic), carrying stack and tagged
// with exitcodes.ScriptError so it dictates the process exit code.
func NewScriptException(msg, stack string) error {
	return WithExitCodeIfNone(&scriptException{msg: msg, stack: stack}, exitcodes.ScriptError)
}
