package persistence

import (
	"context"

	"github.com/revalya/tenantaccess/internal/domain/catalog"
	"github.com/revalya/tenantaccess/internal/infrastructure/persistence/models"
	tenantdb "github.com/revalya/tenantaccess/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// GormProductRepository reads products on a tenant-bound session
type GormProductRepository struct{}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository() *GormProductRepository {
	return &GormProductRepository{}
}

// List returns the tenant's products ordered by code
func (r *GormProductRepository) List(ctx context.Context, db *gorm.DB, tenantID string, filter catalog.ProductFilter) ([]catalog.Product, error) {
	query := db.WithContext(ctx).Model(&models.ProductModel{}).Scopes(tenantdb.Scope(tenantID))

	if filter.ActiveOnly {
		query = query.Where("status = ?", catalog.ProductStatusActive)
	}
	if filter.Search != "" {
		keyword := "%" + filter.Search + "%"
		query = query.Where("(name ILIKE ? OR code ILIKE ?)", keyword, keyword)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var rows []models.ProductModel
	if err := query.Order("code ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}

	products := make([]catalog.Product, len(rows))
	for i := range rows {
		products[i] = rows[i].ToDomain()
	}
	return products, nil
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
