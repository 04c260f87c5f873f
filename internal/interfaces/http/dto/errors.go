package dto

import (
	"net/http"
	"strings"
)

// General error codes
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeNotFound   = "ERR_NOT_FOUND"
	ErrCodeConflict   = "ERR_CONFLICT"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
)

// Tenant access error codes, returned as-is to clients
const (
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeContextApplyFailed = "CONTEXT_APPLY_FAILED"
	ErrCodeSecurityViolation  = "SECURITY_VIOLATION"
	ErrCodeRetryExhausted     = "RETRY_EXHAUSTED"
	ErrCodeTenantUnavailable  = "TENANT_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,
	ErrCodeNotFound:   http.StatusNotFound,
	ErrCodeConflict:   http.StatusConflict,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeTokenRevoked: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeAccessDenied:       http.StatusForbidden,
	ErrCodeContextApplyFailed: http.StatusServiceUnavailable,
	ErrCodeSecurityViolation:  http.StatusInternalServerError,
	ErrCodeRetryExhausted:     http.StatusConflict,
	ErrCodeTenantUnavailable:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// legacyErrorCodeMapping maps domain error codes to response codes
var legacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":        ErrCodeNotFound,
	"TENANT_NOT_FOUND": ErrCodeNotFound,
	"INVALID_INPUT":    ErrCodeValidation,
	"UNAUTHORIZED":     ErrCodeUnauthorized,
	"FORBIDDEN":        ErrCodeForbidden,
	"CONFLICT":         ErrCodeConflict,
}

// NormalizeErrorCode converts a domain error code to a response code.
// Field validation codes (INVALID_*) become ERR_VALIDATION; anything else is
// returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := legacyErrorCodeMapping[code]; ok {
		return newCode
	}
	if strings.HasPrefix(code, "INVALID_") {
		return ErrCodeValidation
	}
	return code
}
