package errors

import "fmt"

// Category groups error codes by pipeline stage.
type Category string

const (
	CategoryCache     Category = "cache"
	CategoryRender    Category = "render"
	CategoryPayload   Category = "payload"
	CategoryHydration Category = "hydration"
	CategoryConfig    Category = "config"
	CategoryServer    Category = "server"
)

// StrataError is a structured error with a registered code.
type StrataError struct {
	// Code is the unique error identifier (e.g., "E001").
	Code string

	// Category is the pipeline stage the error belongs to.
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL links to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

func (e *StrataError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Wrapped)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *StrataError) Unwrap() error {
	return e.Wrapped
}

// WithDetail replaces the detailed explanation.
func (e *StrataError) WithDetail(format string, args ...any) *StrataError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithSuggestion adds a fix suggestion.
func (e *StrataError) WithSuggestion(s string) *StrataError {
	e.Suggestion = s
	return e
}

// Wrap attaches an underlying error.
func (e *StrataError) Wrap(err error) *StrataError {
	e.Wrapped = err
	return e
}

// New creates a StrataError from a registered error code.
func New(code string) *StrataError {
	template, ok := registry[code]
	if !ok {
		return &StrataError{Code: code, Message: "Unknown error"}
	}
	return &StrataError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates an uncoded StrataError with a formatted message.
func Newf(category Category, format string, args ...any) *StrataError {
	return &StrataError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error under a registered code. A
// StrataError passes through unchanged.
func FromError(err error, code string) *StrataError {
	if err == nil {
		return nil
	}
	if se, ok := err.(*StrataError); ok {
		return se
	}
	return New(code).Wrap(err)
}
