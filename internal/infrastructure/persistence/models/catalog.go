package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	ID           uuid.UUID             `gorm:"type:uuid;primaryKey"`
	TenantID     uuid.UUID             `gorm:"type:uuid;not null;index;uniqueIndex:idx_product_tenant_code,priority:1"`
	Code         string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_product_tenant_code,priority:2"`
	Name         string                `gorm:"type:varchar(200);not null"`
	Unit         string                `gorm:"type:varchar(20);not null"`
	SellingPrice decimal.Decimal       `gorm:"type:decimal(18,4);not null;default:0"`
	Status       catalog.ProductStatus `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt    time.Time             `gorm:"not null"`
	UpdatedAt    time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() catalog.Product {
	return catalog.Product{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Code:         m.Code,
		Name:         m.Name,
		Unit:         m.Unit,
		SellingPrice: m.SellingPrice,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.ID = p.ID
	m.TenantID = p.TenantID
	m.Code = p.Code
	m.Name = p.Name
	m.Unit = p.Unit
	m.SellingPrice = p.SellingPrice
	m.Status = p.Status
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}
