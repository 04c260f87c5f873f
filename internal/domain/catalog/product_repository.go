package catalog

import (
	"context"

	"gorm.io/gorm"
)

// ProductFilter narrows a product listing
type ProductFilter struct {
	// ActiveOnly restricts the listing to active products
	ActiveOnly bool
	Search     string
	Limit      int
}

// ProductRepository reads products through a connection that already carries
// the tenant context
type ProductRepository interface {
	List(ctx context.Context, db *gorm.DB, tenantID string, filter ProductFilter) ([]Product, error)
}
