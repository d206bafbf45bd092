package stage

import (
	"fmt"
	"strings"
)

// Error tags a stage failure with a classification the queue uses to decide
// between retry-able failure and manual review.
type Error struct {
	Kind   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind implements queue.ErrorClassifier.
func (e *Error) ErrorKind() string {
	return e.Kind
}

// Validation wraps an error whose fix requires operator attention to the
// item itself.
func Validation(stageName, operation, message string, err error) error {
	return &Error{Kind: "validation", Detail: buildDetail(stageName, operation, message), Err: err}
}

// Configuration wraps an error caused by bad configuration.
func Configuration(stageName, operation, message string, err error) error {
	return &Error{Kind: "configuration", Detail: buildDetail(stageName, operation, message), Err: err}
}

// Unsupported wraps an error for content the pipeline cannot process.
func Unsupported(stageName, operation, message string, err error) error {
	return &Error{Kind: "unsupported", Detail: buildDetail(stageName, operation, message), Err: err}
}

// Transient wraps an error worth retrying.
func Transient(stageName, operation, message string, err error) error {
	return &Error{Kind: "transient", Detail: buildDetail(stageName, operation, message), Err: err}
}

func buildDetail(stageName, operation, message string) string {
	parts := make([]string, 0, 3)
	if stageName = strings.TrimSpace(stageName); stageName != "" {
		parts = append(parts, stageName)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "stage failure"
	}
	return strings.Join(parts, ": ")
}
