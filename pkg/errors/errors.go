package errors

import "fmt"

// ErrorType classifies the failures the scraper distinguishes between.
type ErrorType string

const (
	// ErrorTypeUIAbsence marks an expected page marker that never rendered
	// within its bounded wait. Not a real failure; callers fall back.
	ErrorTypeUIAbsence ErrorType = "ui_absence"
	// ErrorTypeNavigation marks a page load or interaction failure.
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeTransfer marks a failed streamed download.
	ErrorTypeTransfer ErrorType = "transfer"
	// ErrorTypeClassification marks an item matching no known structural marker.
	ErrorTypeClassification ErrorType = "classification"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeServerError    ErrorType = "server_error"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error carries the failure type alongside the message and, for HTTP
// failures, the status code.
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

// New builds a typed error without a status code.
func New(t ErrorType, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewHTTP builds a typed error carrying an HTTP status code.
func NewHTTP(t ErrorType, code int, format string, args ...interface{}) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), Code: code}
}

// IsRetryable reports whether an error type is worth retrying within a
// single strategy attempt. UI absence and classification mismatches trigger
// fallback instead, never retry.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode reports whether an HTTP status indicates a
// retryable condition.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error
		return true
	case 429:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
