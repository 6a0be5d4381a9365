package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies failures encountered during a crawl run.
type ErrorType string

const (
	// ErrorTypeStructural marks an expected page element that could not be
	// located. Fatal for navigation structure, normal termination for the
	// next-month tile.
	ErrorTypeStructural ErrorType = "structural_not_found"
	// ErrorTypeTransientFetch marks a non-200 HTTP response on a media fetch.
	ErrorTypeTransientFetch ErrorType = "transient_fetch"
	// ErrorTypeUnrecognizedContent marks a 200 response whose content type is
	// not one of the known media types. Dropped, never retried.
	ErrorTypeUnrecognizedContent ErrorType = "unrecognized_content"
	// ErrorTypeDownload marks any other per-item persistence failure.
	ErrorTypeDownload ErrorType = "download"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeParsing  ErrorType = "parsing"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a crawl error with type information.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed error.
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewWithCode creates a typed error carrying an HTTP status code.
func NewWithCode(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// IsRetryable reports whether an error should be retried.
func IsRetryable(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == ErrorTypeTransientFetch
}

// IsFatal reports whether an error must abort the whole run instead of the
// current item. Only missing navigation structure qualifies: continuing past
// it would silently skip or mis-attribute data.
func IsFatal(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Type == ErrorTypeStructural
}
