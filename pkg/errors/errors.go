package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeForbidden          = "forbidden"
	ErrCodeNotFound           = "not_found"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInternalError      = "internal_error"
	ErrCodeNonceInvalid       = "nonce_invalid"
	ErrCodeInvalidSignature   = "invalid_signature"
	ErrCodeChainNotAllowed    = "chain_not_allowed"
	ErrCodeHandshakeState     = "handshake_state_invalid"
	ErrCodeDecryptionFailed   = "decryption_failed"
	ErrCodeMalformedPayload   = "malformed_payload"
	ErrCodeStorageUnavailable = "storage_unavailable"
)

// Predefined errors. Client-facing messages are intentionally stable and
// uniform: they say enough for legitimate retry logic but do not enumerate
// which internal check tripped.
var (
	ErrUnauthorized = &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       ErrCodeForbidden,
		Message:    "Access denied",
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		StatusCode: http.StatusBadRequest,
	}

	ErrRateLimited = &AppError{
		Code:       ErrCodeRateLimited,
		Message:    "Too many requests",
		StatusCode: http.StatusTooManyRequests,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	// ErrNonceInvalid covers both unknown and expired nonces; distinguishing
	// the two would let a prober map the nonce store.
	ErrNonceInvalid = &AppError{
		Code:       ErrCodeNonceInvalid,
		Message:    "Nonce is invalid or has expired",
		StatusCode: http.StatusUnauthorized,
	}

	ErrInvalidSignature = &AppError{
		Code:       ErrCodeInvalidSignature,
		Message:    "Signature verification failed",
		StatusCode: http.StatusUnauthorized,
	}

	ErrChainNotAllowed = &AppError{
		Code:       ErrCodeChainNotAllowed,
		Message:    "Chain is not supported",
		StatusCode: http.StatusForbidden,
	}

	ErrHandshakeState = &AppError{
		Code:       ErrCodeHandshakeState,
		Message:    "Handshake state is invalid or has expired",
		StatusCode: http.StatusUnauthorized,
	}

	ErrDecryptionFailed = &AppError{
		Code:       ErrCodeDecryptionFailed,
		Message:    "Payload could not be decrypted",
		StatusCode: http.StatusBadRequest,
	}

	ErrMalformedPayload = &AppError{
		Code:       ErrCodeMalformedPayload,
		Message:    "Payload is malformed",
		StatusCode: http.StatusBadRequest,
	}
)

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		StatusCode: statusCode,
	}
}

// StorageUnavailable wraps a storage-layer failure. It is distinct from every
// authentication failure kind: a database outage must never read as a bad
// signature.
func StorageUnavailable(err error) *AppError {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &AppError{
		Code:       ErrCodeStorageUnavailable,
		Message:    "Storage temporarily unavailable",
		Detail:     detail,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// MalformedPayload creates a malformed payload error with detail
func MalformedPayload(detail string) *AppError {
	return &AppError{
		Code:       ErrCodeMalformedPayload,
		Message:    "Payload is malformed",
		Detail:     detail,
		StatusCode: http.StatusBadRequest,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err carries the given error code.
func Is(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}
