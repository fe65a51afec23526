package gateway

import (
	"errors"
	"fmt"
)

// ErrTransport matches every TransportError
var ErrTransport = errors.New("transport error")

// TransportError reports a call that never received an HTTP response.
// Cause is the error from the final attempt.
type TransportError struct {
	Method   string
	URL      string
	Attempts int
	Cause    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrTransport
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
