package quoteform

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionClosed is returned by operations on a torn-down session.
	ErrSessionClosed = errors.New("quoteform: session closed")
	// ErrSessionNotFound is returned when a session id is not registered.
	ErrSessionNotFound = errors.New("quoteform: session not found")
	// ErrSubmitting is returned by operations that are refused while a send is in flight.
	ErrSubmitting = errors.New("quoteform: submission in progress")
)

// UnknownFieldError rejects a mutation naming an undeclared field.
type UnknownFieldError struct {
	Name string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("quoteform: unknown field %q", e.Name)
}

// FieldError is a single violated validation rule.
type FieldError struct {
	Field  Field
	Reason string
}

func (e FieldError) Error() string {
	return e.Field.String() + ": " + e.Reason
}

// MarshalJSON renders the field by wire name.
func (e FieldError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	}{Field: e.Field.String(), Reason: e.Reason})
}

// ValidationErrors aggregates every violated rule of one record, in field
// declaration order.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return "quoteform: invalid submission: " + strings.Join(parts, "; ")
}

// Fields lists the wire names of the offending fields.
func (v ValidationErrors) Fields() []string {
	out := make([]string, 0, len(v))
	for _, e := range v {
		out = append(out, e.Field.String())
	}
	return out
}

// For returns the reasons recorded against f.
func (v ValidationErrors) For(f Field) []string {
	var reasons []string
	for _, e := range v {
		if e.Field == f {
			reasons = append(reasons, e.Reason)
		}
	}
	return reasons
}

// SubmissionError wraps a failure reported by the send capability.
type SubmissionError struct {
	Cause    error
	Attempts int
}

func (e *SubmissionError) Error() string {
	if e.Cause == nil {
		return "quoteform: submission failed"
	}
	return "quoteform: submission failed: " + e.Cause.Error()
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// Message is the text shown to the person filling the form.
func (e *SubmissionError) Message() string {
	if errors.Is(e.Cause, errSendTimeout) {
		return "The request timed out. Please try again."
	}
	return "We could not send your request. Please try again or call us directly."
}
