package rma

import "github.com/spud93/rma/internal/rmaerr"

// Error is a structured engine error carrying an operation tag, domain/VL
// context, a high-level Code, and an optional wrapped cause.
type Error = rmaerr.Error

// ErrCode enumerates the high-level error categories an RMA operation can
// fail with.
type ErrCode = rmaerr.Code

const (
	ErrCodeNone    = rmaerr.CodeNone
	ErrCodeInval   = rmaerr.CodeInval
	ErrCodeNoMem   = rmaerr.CodeNoMem
	ErrCodeMsgSize = rmaerr.CodeMsgSize
	ErrCodeBusy    = rmaerr.CodeBusy
)

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code ErrCode) bool {
	return rmaerr.IsCode(err, code)
}
