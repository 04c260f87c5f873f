package catalog

import (
	"context"
	"strings"

	"github.com/revalya/tenantaccess/internal/application/access"
	"github.com/revalya/tenantaccess/internal/domain/catalog"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"gorm.io/gorm"
)

// ProductService serves tenant product listings through secure queries
type ProductService struct {
	exec *access.Executor
	repo catalog.ProductRepository
}

// NewProductService creates a new ProductService
func NewProductService(exec *access.Executor, repo catalog.ProductRepository) *ProductService {
	return &ProductService{exec: exec, repo: repo}
}

// ListKey returns the cache key of a listing, before the tenant suffix
func ListKey(filter catalog.ProductFilter) cache.Key {
	key := cache.Key{"products", "list", activeFilter(filter.ActiveOnly)}
	if search := strings.TrimSpace(filter.Search); search != "" {
		key = append(key, "q:"+strings.ToLower(search))
	}
	if filter.Limit > 0 {
		key = append(key, filter.Limit)
	}
	return key
}

func activeFilter(activeOnly bool) string {
	if activeOnly {
		return "active"
	}
	return "all"
}

// List returns the session tenant's products. A denied session yields an
// idle result with no data and no error.
func (s *ProductService) List(ctx context.Context, sess tenant.Session, filter catalog.ProductFilter, opts ...access.Option) access.QueryResult[[]catalog.Product] {
	opts = append([]access.Option{access.WithName("products.list")}, opts...)
	q := access.NewQuery(s.exec, ListKey(filter), func(ctx context.Context, db *gorm.DB, tenantID string) ([]catalog.Product, error) {
		return s.repo.List(ctx, db, tenantID, filter)
	}, opts...)
	return q.Fetch(ctx, sess)
}
