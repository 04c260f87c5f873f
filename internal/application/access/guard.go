package access

import (
	"context"

	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/audit"
	"go.uber.org/zap"
)

// Denial reasons
const (
	ReasonTenantNotDefined       = "tenant not defined"
	ReasonTenantInactive         = "tenant inactive"
	ReasonInsufficientPermission = "insufficient permission"
)

// Decision is the outcome of an access check
type Decision struct {
	Allowed bool
	// Reason is empty when access is allowed
	Reason string
	Tenant *tenant.Tenant
	Role   string
}

// Err returns an *AccessDeniedError for a denial and nil otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &AccessDeniedError{Reason: d.Reason}
}

// Guard decides whether a session may run a tenant-scoped operation
type Guard struct {
	audit *audit.Logger
}

// NewGuard creates a guard that reports its decisions to the audit log
func NewGuard(a *audit.Logger) *Guard {
	if a == nil {
		a = audit.NewNop()
	}
	return &Guard{audit: a}
}

// Check evaluates, in order: tenant requirement, tenant presence, tenant
// activity and the required role. The first failing condition denies.
func (g *Guard) Check(ctx context.Context, sess tenant.Session, requireTenant bool, requiredRole string) Decision {
	d := Decision{Tenant: sess.Tenant, Role: sess.Actor.Role}

	switch {
	case !requireTenant:
		d.Allowed = true
	case !sess.Tenant.HasID():
		d.Reason = ReasonTenantNotDefined
	case !sess.Tenant.Active:
		d.Reason = ReasonTenantInactive
	case requiredRole != "" && requiredRole != sess.Actor.Role:
		d.Reason = ReasonInsufficientPermission
	default:
		d.Allowed = true
	}

	entry := audit.Entry{
		Kind:      audit.KindAccessGranted,
		TenantID:  sess.TenantID(),
		Operation: "access_check",
		Message:   "access granted",
		Fields: []zap.Field{
			zap.String("user_id", sess.Actor.UserID),
			zap.Bool("require_tenant", requireTenant),
		},
	}
	if requiredRole != "" {
		entry.Fields = append(entry.Fields, zap.String("required_role", requiredRole))
	}
	if !d.Allowed {
		entry.Kind = audit.KindAccessDenied
		entry.Message = "access denied: " + d.Reason
	}
	g.audit.Throttled(ctx, entry)

	return d
}
