package access

import (
	"context"
	"fmt"

	"github.com/revalya/tenantaccess/internal/domain/tenant"
)

// ViolationPolicy selects what happens beyond failing the operation when a
// cross-tenant record is detected
type ViolationPolicy string

const (
	// ViolationAbort fails the single operation
	ViolationAbort ViolationPolicy = "abort"
	// ViolationInvalidateSession also revokes the caller's session
	ViolationInvalidateSession ViolationPolicy = "invalidate_session"
)

// ParseViolationPolicy parses a configured policy; empty means abort
func ParseViolationPolicy(s string) (ViolationPolicy, error) {
	switch ViolationPolicy(s) {
	case "", ViolationAbort:
		return ViolationAbort, nil
	case ViolationInvalidateSession:
		return ViolationInvalidateSession, nil
	}
	return "", fmt.Errorf("unknown security violation policy %q", s)
}

// SessionInvalidator revokes a session so its holder must authenticate again
type SessionInvalidator interface {
	InvalidateSession(ctx context.Context, sess tenant.Session, reason string) error
}
