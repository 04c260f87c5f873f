package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/domain/billing"
	"github.com/revalya/tenantaccess/internal/infrastructure/persistence/models"
	tenantdb "github.com/revalya/tenantaccess/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormBillingPeriodRepository writes billing periods on a tenant-bound session
type GormBillingPeriodRepository struct {
	now func() time.Time
}

// NewGormBillingPeriodRepository creates a new GormBillingPeriodRepository
func NewGormBillingPeriodRepository() *GormBillingPeriodRepository {
	return &GormBillingPeriodRepository{now: time.Now}
}

// Create inserts a pending period. The order number comes back from the
// insert trigger; a concurrent insert can make it collide, in which case the
// driver's unique violation is returned as is.
func (r *GormBillingPeriodRepository) Create(ctx context.Context, db *gorm.DB, tenantID string, actorID *uuid.UUID, in billing.NewBillingPeriod) (*billing.BillingPeriod, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	tid, err := uuid.Parse(tenantID)
	if err != nil {
		return nil, tenantdb.ErrInvalidTenantID
	}

	model := models.BillingPeriodModel{
		ID:            uuid.New(),
		TenantID:      tid,
		ContractID:    in.ContractID,
		PeriodStart:   in.PeriodStart,
		PeriodEnd:     in.PeriodEnd,
		BillDate:      in.BillDate,
		AmountPlanned: in.AmountPlanned,
		Status:        billing.PeriodStatusPending,
		ActorID:       actorID,
		CreatedAt:     r.now(),
	}
	if err := db.WithContext(ctx).Clauses(clause.Returning{}).Create(&model).Error; err != nil {
		return nil, fmt.Errorf("insert billing period: %w", err)
	}

	period := model.ToDomain()
	return &period, nil
}

// ListByContract returns the contract's periods in order number order
func (r *GormBillingPeriodRepository) ListByContract(ctx context.Context, db *gorm.DB, tenantID string, contractID uuid.UUID) ([]billing.BillingPeriod, error) {
	var rows []models.BillingPeriodModel
	err := db.WithContext(ctx).
		Scopes(tenantdb.Scope(tenantID)).
		Where("contract_id = ?", contractID).
		Order("order_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	periods := make([]billing.BillingPeriod, len(rows))
	for i := range rows {
		periods[i] = rows[i].ToDomain()
	}
	return periods, nil
}

var _ billing.BillingPeriodRepository = (*GormBillingPeriodRepository)(nil)
