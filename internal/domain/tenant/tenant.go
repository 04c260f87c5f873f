// Package tenant holds the tenant and actor snapshots every guarded data
// operation is evaluated against.
//
// A Session is an immutable value resolved once per request and passed down
// explicitly to the access layer; nothing in this package keeps process-wide
// "current tenant" state.
package tenant

import (
	"context"
	"strings"

	"github.com/revalya/tenantaccess/internal/domain/shared"
)

// ErrTenantNotFound is returned by a Resolver when no tenant matches the reference
var ErrTenantNotFound = shared.NewDomainError("TENANT_NOT_FOUND", "tenant not found")

// Tenant is a read-only snapshot of a customer organization
type Tenant struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// HasID reports whether the tenant carries a non-blank identifier
func (t *Tenant) HasID() bool {
	return t != nil && strings.TrimSpace(t.ID) != ""
}

// Actor is the user acting on behalf of a tenant.
// Role is empty when the user holds no role in the tenant.
type Actor struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	// SessionID identifies the authenticated session (token id) the actor
	// presented, used when a session has to be revoked.
	SessionID string `json:"session_id,omitempty"`
}

// Session bundles the resolved tenant and the acting user
type Session struct {
	Tenant *Tenant
	Actor  Actor
}

// NewSession creates a session holding a private copy of the tenant snapshot
func NewSession(t *Tenant, actor Actor) Session {
	if t != nil {
		snapshot := *t
		t = &snapshot
	}
	return Session{Tenant: t, Actor: actor}
}

// TenantID returns the tenant id or an empty string when no tenant is resolved
func (s Session) TenantID() string {
	if s.Tenant == nil {
		return ""
	}
	return s.Tenant.ID
}

// Owned is implemented by every record that belongs to exactly one tenant
type Owned interface {
	OwnerTenantID() string
}

// Resolver looks up a tenant by id or slug
type Resolver interface {
	ResolveTenant(ctx context.Context, ref string) (*Tenant, error)
}
