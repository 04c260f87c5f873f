package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
)

// TenantModel is the persistence model for a tenant
type TenantModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Slug      string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name      string    `gorm:"type:varchar(200);not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the model to a tenant snapshot
func (m *TenantModel) ToDomain() *tenant.Tenant {
	return &tenant.Tenant{
		ID:     m.ID.String(),
		Slug:   m.Slug,
		Name:   m.Name,
		Active: m.Active,
	}
}
