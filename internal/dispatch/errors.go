package dispatch

import (
	"errors"
	"fmt"
)

// Code classifies an error reported to the embedding application.
type Code string

const (
	// CodeNativeError reports an unexpected fault while handling a request.
	CodeNativeError Code = "NATIVE_ERROR"
	// CodeNotImplemented reports an unknown method name.
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
	// CodeInvalidArgument reports an argument of the wrong type or range.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Error is the structured error returned across the dispatch boundary.
type Error struct {
	Code    Code
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrInvalidArgument is wrapped by every argument decoding error.
var ErrInvalidArgument = errors.New("invalid argument")

// CodeOf returns the code of err, or CodeNativeError if err is not an *Error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeNativeError
}

func invalidArgument(key string, format string, args ...any) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidArgument, key, fmt.Sprintf(format, args...))
}
