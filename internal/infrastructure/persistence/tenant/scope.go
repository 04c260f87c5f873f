// Package tenant binds gorm sessions to a tenant.
//
// GormContextApplier sets the database session variables the row level
// security policies read. Scope and the tenant callback add an explicit
// tenant_id filter on top, so a statement stays scoped even if the session
// variable is missing.
package tenant

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrTenantIDRequired is returned when tenant_id is required but not found
var ErrTenantIDRequired = errors.New("tenant_id is required but not found in context")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// Scope filters a statement by tenant_id. An empty or malformed id makes the
// statement fail instead of running unfiltered.
func Scope(tenantID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == "" {
			_ = db.AddError(ErrTenantIDRequired)
			return db
		}
		if _, err := uuid.Parse(tenantID); err != nil {
			_ = db.AddError(ErrInvalidTenantID)
			return db
		}
		return db.Where(tenantColumn+" = ?", tenantID)
	}
}

const tenantColumn = "tenant_id"
