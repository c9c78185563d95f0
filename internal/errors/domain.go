package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies engine failures
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
	KindNotFound   Kind = "NOT_FOUND"
	KindUpstream   Kind = "UPSTREAM"
)

// Kind sentinels for errors.Is
var (
	ErrValidation = &DomainError{Kind: KindValidation}
	ErrConflict   = &DomainError{Kind: KindConflict}
	ErrMissing    = &DomainError{Kind: KindNotFound}
	ErrUpstream   = &DomainError{Kind: KindUpstream}
)

// DomainError is the error type returned by engine components
type DomainError struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
	Fields  map[string]any
}

// Error implements the error interface
func (e *DomainError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by kind
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// With adds a context field to the error
func (e *DomainError) With(key string, value any) *DomainError {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// Validation creates a ValidationError
func Validation(op, format string, args ...any) *DomainError {
	return &DomainError{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Conflict creates a ConflictError
func Conflict(op, format string, args ...any) *DomainError {
	return &DomainError{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a NotFoundError for the named resource
func NotFound(op, resource, id string) *DomainError {
	return &DomainError{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// Upstream wraps a collaborator failure as a retryable UpstreamError.
// Errors that already carry a kind are returned unchanged.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return &DomainError{Kind: KindUpstream, Op: op, Err: err}
}

// KindOf returns the kind carried by err, or "" when it has none
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMissing)
}

// IsRetryable reports whether a caller may retry the failed operation
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, ErrUpstream)
}
