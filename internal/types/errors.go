package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing errors surfaced over HTTP
// (local harness) and in structured logs.
type ErrorCode string

const (
	ErrCodeValidationInvalidJSON ErrorCode = "validation_invalid_json"
	ErrCodeDecodeFailed          ErrorCode = "validation_decode_failed"
	ErrCodeNotFound              ErrorCode = "not_found_route"
	ErrCodeMethodNotAllowed      ErrorCode = "method_not_allowed"
	ErrCodeInternalUnexpected    ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "method_"):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the error type rendered by the local harness.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// DecodeStage names the step of envelope decoding that failed.
type DecodeStage string

const (
	DecodeStageBase64  DecodeStage = "base64"
	DecodeStageGzip    DecodeStage = "gzip"
	DecodeStageJSON    DecodeStage = "json"
	DecodeStageMessage DecodeStage = "message"
)

// DecodeError reports a malformed batch envelope. It is the only error that
// aborts an invocation: no partial batch is ever returned alongside it.
type DecodeError struct {
	Stage DecodeStage
	// Index and EventID identify the offending log event for the message stage.
	// Index is -1 for envelope-level stages.
	Index   int
	EventID string
	Err     error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Stage == DecodeStageMessage {
		return fmt.Sprintf("decode %s: log event %d (id=%q): %v", e.Stage, e.Index, e.EventID, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FieldTypeError reports a record field that is present but holds a JSON
// value of an unexpected type.
type FieldTypeError struct {
	Path string
	Want string
	Got  string
}

// Error implements the error interface.
func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("field %q: expected %s, got %s", e.Path, e.Want, e.Got)
}

// PredicatePanicError wraps a value recovered from a panicking rule predicate.
type PredicatePanicError struct {
	RuleID string
	Value  any
}

// Error implements the error interface.
func (e *PredicatePanicError) Error() string {
	return fmt.Sprintf("rule %s panicked: %v", e.RuleID, e.Value)
}
