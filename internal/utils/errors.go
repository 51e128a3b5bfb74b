package utils

import "fmt"

// AppError carries the failing operation alongside a message suitable for
// an API response. Err holds the underlying cause, if any.
type AppError struct {
	Op  string
	Msg string
	Err error
}

// NewAppError wraps err with the operation name and a caller-facing message.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Msg
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }
