package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the kind of failure a download can end with
type ErrorType string

const (
	ErrorTypeInvalidURL          ErrorType = "invalid_url"
	ErrorTypePrivateAccount      ErrorType = "private_account"
	ErrorTypeContentNotFound     ErrorType = "content_not_found"
	ErrorTypeRateLimitExceeded   ErrorType = "rate_limit_exceeded"
	ErrorTypeInstagramAPIChanged ErrorType = "instagram_api_changed"
	ErrorTypeDownloadFailed      ErrorType = "download_failed"
	ErrorTypeAuthentication      ErrorType = "authentication_failed"
)

// DefaultRetryAfterSeconds is attached to rate limit errors when the upstream gives no hint
const DefaultRetryAfterSeconds = 300

// Error is the single error shape surfaced by the download core.
// Details always carries enough context (identifier, upstream message)
// for a caller to decide whether to retry later.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by type so errors.Is(err, &Error{Type: X}) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// WithDetail sets a detail key and returns the error for chaining
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type
func New(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Code:    StatusCode(errorType),
		Details: make(map[string]interface{}),
	}
}

// Wrap creates an error of the given type around a cause
func Wrap(errorType ErrorType, message string, cause error) *Error {
	e := New(errorType, message)
	e.Err = cause
	return e
}

// Convenience constructors

func InvalidURL(message string) *Error { return New(ErrorTypeInvalidURL, message) }

func PrivateAccount(message string) *Error { return New(ErrorTypePrivateAccount, message) }

func ContentNotFound(message string) *Error { return New(ErrorTypeContentNotFound, message) }

func DownloadFailed(message string) *Error { return New(ErrorTypeDownloadFailed, message) }

func APIChanged(message string) *Error { return New(ErrorTypeInstagramAPIChanged, message) }

func AuthenticationFailed(message string) *Error { return New(ErrorTypeAuthentication, message) }

// RateLimited creates a rate limit error with the default retry hint
func RateLimited(message string) *Error {
	return New(ErrorTypeRateLimitExceeded, message).
		WithDetail("retry_after_seconds", DefaultRetryAfterSeconds)
}

// As extracts a *Error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// TypeOf returns the error type of err, or download_failed for foreign errors
func TypeOf(err error) ErrorType {
	if e, ok := As(err); ok {
		return e.Type
	}
	return ErrorTypeDownloadFailed
}

// IsType reports whether err carries the given type
func IsType(err error, errorType ErrorType) bool {
	e, ok := As(err)
	return ok && e.Type == errorType
}

// Classify maps free-form upstream failure text (extractor stderr, HTTP
// errors) onto the taxonomy. The order of checks matters: a private post
// usually also mentions "unavailable", and a removed post may mention 404.
func Classify(message string, details map[string]interface{}) *Error {
	lower := strings.ToLower(message)

	var e *Error
	switch {
	case strings.Contains(lower, "private") || strings.Contains(lower, "unavailable"):
		e = PrivateAccount("Content is private or unavailable")
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found") || strings.Contains(lower, "removed"):
		e = ContentNotFound("Content does not exist or has been deleted")
	case strings.Contains(lower, "429") || strings.Contains(lower, "too many requests") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate-limit"):
		e = RateLimited("Instagram rate limit exceeded, retry later")
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "login required") || strings.Contains(lower, "checkpoint") ||
		strings.Contains(lower, "bad password") || strings.Contains(lower, "incorrect password"):
		e = AuthenticationFailed("Instagram rejected the credentials or requires login")
	case strings.Contains(lower, "http error") || strings.Contains(lower, "unable to extract"):
		e = APIChanged("Instagram may have changed their structure")
	default:
		e = DownloadFailed("Failed to download content")
	}

	for k, v := range details {
		e.WithDetail(k, v)
	}
	if message != "" {
		e.WithDetail("error", strings.TrimSpace(message))
	}
	return e
}

// IsTerminal reports whether an error means the content itself cannot be
// fetched by any strategy or account
func IsTerminal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeContentNotFound, ErrorTypePrivateAccount, ErrorTypeInvalidURL:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error type may be retried with the same
// account and strategy. Rate limits are never retried in place; they only
// move on to a different account or strategy.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeDownloadFailed:
		return true
	case ErrorTypeRateLimitExceeded, ErrorTypeAuthentication, ErrorTypeContentNotFound,
		ErrorTypePrivateAccount, ErrorTypeInvalidURL, ErrorTypeInstagramAPIChanged:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a transient failure
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return false
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}

// Specificity ranks errors so the router can surface the most informative one
func Specificity(err error) int {
	if err == nil {
		return -1
	}
	e, ok := As(err)
	if !ok {
		return 0
	}
	switch e.Type {
	case ErrorTypePrivateAccount, ErrorTypeContentNotFound, ErrorTypeInvalidURL:
		return 5
	case ErrorTypeRateLimitExceeded:
		return 4
	case ErrorTypeAuthentication:
		return 3
	case ErrorTypeInstagramAPIChanged:
		return 2
	case ErrorTypeDownloadFailed:
		return 1
	default:
		return 0
	}
}

// MoreSpecific returns whichever of the two errors ranks higher, preferring
// the current one on ties
func MoreSpecific(current, candidate error) error {
	if Specificity(candidate) > Specificity(current) {
		return candidate
	}
	return current
}

// StatusCode maps an error type to the HTTP status the API answers with
func StatusCode(errorType ErrorType) int {
	switch errorType {
	case ErrorTypeInvalidURL:
		return http.StatusBadRequest
	case ErrorTypePrivateAccount:
		return http.StatusForbidden
	case ErrorTypeContentNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorTypeInstagramAPIChanged:
		return http.StatusServiceUnavailable
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
