// Package rmaerr provides the structured error type shared by the engine,
// MR gateway and transport packages, and re-exported at the module root.
// It follows the teacher repo's errors.go: a single structured error with
// an operation tag, a high-level code, and an optional wrapped cause.
package rmaerr

import (
	"errors"
	"fmt"
)

// Code represents the high-level error categories from spec.md §7.
type Code string

const (
	// CodeNone is the zero value: no error.
	CodeNone Code = ""

	// CodeInval covers bad arguments, a missing MR, or an access violation.
	CodeInval Code = "invalid argument"

	// CodeNoMem covers allocation failure for a request, trigger, or CQ event.
	CodeNoMem Code = "insufficient memory"

	// CodeMsgSize covers an INJECT over the size limit, or INJECT requested
	// on a multi-fragment vector send.
	CodeMsgSize Code = "message too large"

	// CodeBusy covers bounded local backpressure from the transport (the
	// loopback fabric's pending-operation cap), not a wire-level condition.
	CodeBusy Code = "transport busy"
)

// Error is a structured engine error with enough context to log usefully
// without forcing callers to parse a message string.
type Error struct {
	Op     string // operation that failed, e.g. "rma.write", "pump.write_long"
	Domain string // domain name, empty if not applicable
	VL     int    // virtual lane, -1 if not applicable
	Code   Code
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Domain != "" && e.VL >= 0:
		return fmt.Sprintf("rma: %s: %s (domain=%s vl=%d)", e.Op, msg, e.Domain, e.VL)
	case e.Domain != "":
		return fmt.Sprintf("rma: %s: %s (domain=%s)", e.Op, msg, e.Domain)
	default:
		return fmt.Sprintf("rma: %s: %s", e.Op, msg)
	}
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// New creates a structured error with no domain/VL context.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg, VL: -1}
}

// NewDomain creates a structured error scoped to a domain.
func NewDomain(op, domain string, code Code, msg string) *Error {
	return &Error{Op: op, Domain: domain, Code: code, Msg: msg, VL: -1}
}

// NewVL creates a structured error scoped to a domain and virtual lane.
func NewVL(op, domain string, vl int, code Code, msg string) *Error {
	return &Error{Op: op, Domain: domain, VL: vl, Code: code, Msg: msg}
}

// Wrap attaches op/code context to an existing error.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if re, ok := inner.(*Error); ok {
		return &Error{Op: op, Domain: re.Domain, VL: re.VL, Code: re.Code, Msg: re.Msg, Inner: re.Inner}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner, VL: -1}
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
