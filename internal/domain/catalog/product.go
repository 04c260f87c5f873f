package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ProductStatus represents the status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// Product is a tenant-owned catalog item
type Product struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Status       ProductStatus   `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OwnerTenantID returns the tenant the product belongs to
func (p Product) OwnerTenantID() string {
	return p.TenantID.String()
}

// IsActive reports whether the product can be sold
func (p Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// NewProduct creates an active product
func NewProduct(tenantID uuid.UUID, code, name, unit string, price decimal.Decimal) (*Product, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if err := validateProductCode(code); err != nil {
		return nil, err
	}
	if name == "" || len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name must be between 1 and 200 characters")
	}
	if unit == "" {
		return nil, shared.NewDomainError("INVALID_UNIT", "Unit cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Selling price cannot be negative")
	}

	now := time.Now()
	return &Product{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Code:         strings.ToUpper(code),
		Name:         name,
		Unit:         unit,
		SellingPrice: price,
		Status:       ProductStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func validateProductCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot be empty")
	}
	if len(code) > 50 {
		return shared.NewDomainError("INVALID_CODE", "Product code cannot exceed 50 characters")
	}
	for _, r := range code {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return shared.NewDomainError("INVALID_CODE", "Product code can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}
