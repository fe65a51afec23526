package parser

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is
var (
	// ErrLoad matches every LoadError
	ErrLoad = errors.New("load error")
	// ErrNotFound indicates the document file does not exist
	ErrNotFound = errors.New("spec file not found")
	// ErrMalformed indicates the document file could not be parsed
	ErrMalformed = errors.New("invalid spec file format")
	// ErrReference indicates a $ref could not be resolved
	ErrReference = errors.New("reference error")
)

// LoadError reports a spec that could not be loaded. It is always fatal.
type LoadError struct {
	// Path is the file path of the document
	Path string
	// Reason is ErrNotFound or ErrMalformed
	Reason error
	// Cause is the underlying read or parse error
	Cause error
}

// Error returns a human-readable error message
func (e *LoadError) Error() string {
	if errors.Is(e.Reason, ErrNotFound) {
		return fmt.Sprintf("%v: %s", e.Reason, e.Path)
	}
	msg := e.Reason.Error()
	if e.Path != "" {
		msg += " in " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrLoad or this error's reason
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad || target == e.Reason
}

// ReferenceError reports a $ref that points nowhere
type ReferenceError struct {
	// Ref is the reference that failed to resolve
	Ref string
	// Segment is the first pointer segment that was absent
	Segment string
	// External is true for references outside the document, which are not supported
	External bool
}

// Error returns a human-readable error message
func (e *ReferenceError) Error() string {
	if e.External {
		return fmt.Sprintf("reference error: external reference %q is not supported", e.Ref)
	}
	return fmt.Sprintf("reference error: %q not found (missing segment %q)", e.Ref, e.Segment)
}

// Is reports whether target is ErrReference
func (e *ReferenceError) Is(target error) bool {
	return target == ErrReference
}
