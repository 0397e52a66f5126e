package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNonPositive = errors.New("value must be positive")

	// Returned when a state transition would move the session backwards.
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// ConnectionError reports that the serial endpoint could not be opened.
type ConnectionError struct {
	Endpoint string
	Hint     string
	Err      error
}

func (e *ConnectionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "could not connect to %s", e.Endpoint)
	if e.Hint != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Hint)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, " (%v)", e.Err)
	}
	return sb.String()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ParseError reports a header line that is not a positive decimal integer.
type ParseError struct {
	Field string
	Line  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s header line %q: %v", e.Field, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IOError reports a failure reading the stream or creating, writing or finalizing the output file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
