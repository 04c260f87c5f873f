package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BillingPeriodRepository persists billing periods through a connection that
// already carries the tenant context
type BillingPeriodRepository interface {
	// Create inserts a period and returns it with the store-assigned order number
	Create(ctx context.Context, db *gorm.DB, tenantID string, actorID *uuid.UUID, in NewBillingPeriod) (*BillingPeriod, error)
	ListByContract(ctx context.Context, db *gorm.DB, tenantID string, contractID uuid.UUID) ([]BillingPeriod, error)
}
