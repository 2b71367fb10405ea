package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeValidation   ErrorCode = "VALIDATION_ERROR"

	// Validation field errors
	CodeMissingField  ErrorCode = "MISSING_FIELD"
	CodeInvalidFormat ErrorCode = "INVALID_FORMAT"
	CodeOutOfRange    ErrorCode = "OUT_OF_RANGE"

	// Quiz specific errors
	CodeInvalidSessionState ErrorCode = "INVALID_SESSION_STATE"
	CodeInsufficientContent ErrorCode = "INSUFFICIENT_CONTENT"
	CodeQuestionNotFound    ErrorCode = "QUESTION_NOT_FOUND"
	CodeInvalidTopic        ErrorCode = "INVALID_TOPIC"
	CodeInvalidModel        ErrorCode = "INVALID_MODEL"
	CodeInvalidMetric       ErrorCode = "INVALID_METRIC"
)

// RestartQuizMessage is shown to the caller whenever the session can no longer be used.
const RestartQuizMessage = "please restart the quiz"

// ErrSessionNotFound is returned by a SessionStore when no session is stored under a key.
var ErrSessionNotFound = errors.New("quiz session not found")

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Err     error                  `json:"-"`
	Context map[string]interface{} `json:"-"`
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithContext attaches a detail entry rendered in error responses.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
	})
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(CodeNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(CodeInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(CodeInternal, message, err)
}

func NewUnauthorizedError(message string) *DomainError {
	return NewError(CodeUnauthorized, message, nil)
}

// NewInvalidSessionStateError reports an operation the session cannot accept.
// The reason is kept for logs; callers only see the restart message.
func NewInvalidSessionStateError(reason string) *DomainError {
	return NewError(CodeInvalidSessionState, RestartQuizMessage, errors.New(reason)).
		WithContext("reason", reason)
}

func NewInsufficientContentError(topic string, available, requested int) *DomainError {
	return NewError(CodeInsufficientContent, "insufficient questions for topic", nil).
		WithContext("topic", topic).
		WithContext("available", available).
		WithContext("requested", requested)
}

func NewQuestionNotFoundError(questionID int64) *DomainError {
	return NewError(CodeQuestionNotFound, fmt.Sprintf("Question not found with ID: %d", questionID), nil)
}

func NewInvalidTopicError(topic string) *DomainError {
	return NewError(CodeInvalidTopic, fmt.Sprintf("Invalid topic: %s", topic), nil)
}

func NewInvalidModelError(model string) *DomainError {
	return NewError(CodeInvalidModel, fmt.Sprintf("Unsupported embedding model: %s", model), nil)
}

func NewInvalidMetricError(metric string) *DomainError {
	return NewError(CodeInvalidMetric, fmt.Sprintf("Unsupported similarity metric: %s", metric), nil)
}

// IsCode reports whether err is a DomainError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ValidationError describes a single invalid request field.
type ValidationError struct {
	Field   string      `json:"field"`
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every field error found in one request.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func NewMissingFieldError(field string) ValidationError {
	return ValidationError{Field: field, Code: CodeMissingField, Message: "field is required"}
}

func NewInvalidFormatError(field string, value interface{}) ValidationError {
	return ValidationError{Field: field, Code: CodeInvalidFormat, Message: "field has an invalid format", Value: value}
}

func NewOutOfRangeError(field string, value interface{}, min, max int) ValidationError {
	return ValidationError{
		Field:   field,
		Code:    CodeOutOfRange,
		Message: fmt.Sprintf("field must be between %d and %d", min, max),
		Value:   value,
	}
}
