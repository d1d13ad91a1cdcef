package providers

import (
	"errors"
	"fmt"
)

// NetworkError is a transport failure or a non-2xx response.
type NetworkError struct {
	Op         Operation
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: HTTP %d", e.Op, e.URL, e.StatusCode)
	}

	return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means the response arrived but did not have the expected shape.
type ParseError struct {
	Op  Operation
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not read this source (%s): %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func NewParseError(op Operation, format string, args ...any) *ParseError {
	return &ParseError{Op: op, Err: fmt.Errorf(format, args...)}
}

// InvalidQueryError is returned when a structured query is malformed, or a
// source refuses an empty result and wants different input.
type InvalidQueryError struct {
	Query string
	Hint  string
}

func (e *InvalidQueryError) Error() string {
	if e.Query == "" {
		return e.Hint
	}

	return fmt.Sprintf("%q: %s", e.Query, e.Hint)
}

var ErrUnsupported = errors.New("operation not supported by this source")

func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func IsInvalidQuery(err error) bool {
	var qe *InvalidQueryError
	return errors.As(err, &qe)
}
