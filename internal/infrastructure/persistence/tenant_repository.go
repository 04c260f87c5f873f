package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTenantRepository resolves tenants from the tenants table
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GormTenantRepository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// ResolveTenant finds a tenant by id, or by slug when ref is not a UUID
func (r *GormTenantRepository) ResolveTenant(ctx context.Context, ref string) (*tenant.Tenant, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, tenant.ErrTenantNotFound
	}

	query := r.db.WithContext(ctx)
	if id, err := uuid.Parse(ref); err == nil {
		query = query.Where("id = ?", id)
	} else {
		query = query.Where("LOWER(slug) = ?", strings.ToLower(ref))
	}

	var model models.TenantModel
	if err := query.Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ tenant.Resolver = (*GormTenantRepository)(nil)
