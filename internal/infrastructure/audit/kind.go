// Package audit records the security-relevant events of the data-access layer.
package audit

import "go.uber.org/zap/zapcore"

// Kind identifies an audit event
type Kind string

const (
	KindAccessGranted      Kind = "access_granted"
	KindAccessDenied       Kind = "access_denied"
	KindContextApplyFailed Kind = "context_apply_failed"
	KindContextClearFailed Kind = "context_clear_failed"
	KindSecurityViolation  Kind = "security_violation"
	KindQueryExecuted      Kind = "query_executed"
	KindQueryFailed        Kind = "query_failed"
	KindMutationAttempt    Kind = "mutation_attempt"
	KindMutationRetry      Kind = "mutation_retry"
	KindMutationSuccess    Kind = "mutation_success"
	KindMutationFailed     Kind = "mutation_failed"
	KindCacheInvalidated   Kind = "cache_invalidated"
	KindSessionInvalidated Kind = "session_invalidated"
)

// Kinds lists every audit kind
var Kinds = []Kind{
	KindAccessGranted, KindAccessDenied, KindContextApplyFailed, KindContextClearFailed,
	KindSecurityViolation, KindQueryExecuted, KindQueryFailed, KindMutationAttempt,
	KindMutationRetry, KindMutationSuccess, KindMutationFailed, KindCacheInvalidated,
	KindSessionInvalidated,
}

// Critical reports whether the kind must always be logged.
// Critical kinds bypass throttling and are logged at error level.
func (k Kind) Critical() bool {
	return k == KindSecurityViolation || k == KindContextApplyFailed
}

// Level returns the log level for the kind
func (k Kind) Level() zapcore.Level {
	switch k {
	case KindSecurityViolation, KindContextApplyFailed, KindQueryFailed, KindMutationFailed:
		return zapcore.ErrorLevel
	case KindAccessDenied, KindContextClearFailed, KindMutationRetry, KindSessionInvalidated:
		return zapcore.WarnLevel
	case KindAccessGranted, KindMutationAttempt, KindCacheInvalidated:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Outcome is the short result label attached to every audit line
func (k Kind) Outcome() string {
	switch k {
	case KindAccessGranted:
		return "granted"
	case KindAccessDenied:
		return "denied"
	case KindSecurityViolation:
		return "violation"
	case KindQueryExecuted, KindMutationSuccess:
		return "success"
	case KindMutationAttempt:
		return "attempt"
	case KindMutationRetry:
		return "retry"
	case KindCacheInvalidated, KindSessionInvalidated:
		return "invalidated"
	default:
		return "failure"
	}
}
