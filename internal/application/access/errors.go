package access

import (
	"fmt"

	"github.com/revalya/tenantaccess/internal/domain/shared"
)

// Error codes carried by the access errors
const (
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeContextApplyFailed = "CONTEXT_APPLY_FAILED"
	CodeSecurityViolation  = "SECURITY_VIOLATION"
	CodeRetryExhausted     = "RETRY_EXHAUSTED"
)

// SecurityViolationPrefix starts the message of every SecurityViolationError
const SecurityViolationPrefix = "SECURITY VIOLATION: tenant mismatch"

// Sentinels for errors.Is
var (
	ErrAccessDenied       = shared.NewDomainError(CodeAccessDenied, "access denied")
	ErrContextApplyFailed = shared.NewDomainError(CodeContextApplyFailed, "tenant context apply failed")
	ErrSecurityViolation  = shared.NewDomainError(CodeSecurityViolation, SecurityViolationPrefix)
	ErrRetryExhausted     = shared.NewDomainError(CodeRetryExhausted, "operation failed after retries")
)

// AccessDeniedError is returned when the guard denies an operation
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return "access denied: " + e.Reason
}

// Unwrap exposes the domain error used for HTTP mapping
func (e *AccessDeniedError) Unwrap() error {
	return shared.NewDomainError(CodeAccessDenied, e.Error())
}

// ContextApplyFailedError is returned when the tenant context could not be
// set before the operation body. Cause is nil when the store reported failure
// without an error.
type ContextApplyFailedError struct {
	TenantID string
	Cause    error
}

func (e *ContextApplyFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tenant context apply failed for %s: %v", e.TenantID, e.Cause)
	}
	return fmt.Sprintf("tenant context apply failed for %s", e.TenantID)
}

func (e *ContextApplyFailedError) Unwrap() []error {
	errs := []error{shared.NewDomainError(CodeContextApplyFailed, "tenant context could not be established")}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// SecurityViolationError is returned when an operation produced a record
// owned by another tenant. The record itself is never returned.
type SecurityViolationError struct {
	Operation      string
	ExpectedTenant string
	FoundTenant    string
}

func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("%s in %s (expected %q, found %q)",
		SecurityViolationPrefix, e.Operation, e.ExpectedTenant, e.FoundTenant)
}

// Unwrap carries a message without tenant ids so it can be shown to clients
func (e *SecurityViolationError) Unwrap() error {
	return shared.NewDomainError(CodeSecurityViolation, SecurityViolationPrefix)
}

// RetryExhaustedError is returned when every attempt of a mutation lost the
// sequence-number race
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() []error {
	return []error{
		shared.NewDomainError(CodeRetryExhausted, "the operation conflicted with concurrent changes, please try again"),
		e.Last,
	}
}
