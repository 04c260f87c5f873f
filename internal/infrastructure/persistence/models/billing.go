package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// BillingPeriodModel is the persistence model for a contract billing period.
// OrderNumber is read-only: an insert trigger assigns it.
type BillingPeriodModel struct {
	ID            uuid.UUID            `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	ContractID    uuid.UUID            `gorm:"type:uuid;not null;index"`
	OrderNumber   int64                `gorm:"<-:false"`
	PeriodStart   time.Time            `gorm:"type:date;not null"`
	PeriodEnd     time.Time            `gorm:"type:date;not null"`
	BillDate      time.Time            `gorm:"type:date;not null"`
	AmountPlanned decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Status        billing.PeriodStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`
	ActorID       *uuid.UUID           `gorm:"type:uuid"`
	CreatedAt     time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillingPeriodModel) TableName() string {
	return "contract_billing_periods"
}

// ToDomain converts the model to a domain billing period
func (m *BillingPeriodModel) ToDomain() billing.BillingPeriod {
	return billing.BillingPeriod{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ContractID:    m.ContractID,
		OrderNumber:   m.OrderNumber,
		PeriodStart:   m.PeriodStart,
		PeriodEnd:     m.PeriodEnd,
		BillDate:      m.BillDate,
		AmountPlanned: m.AmountPlanned,
		Status:        m.Status,
		ActorID:       m.ActorID,
		CreatedAt:     m.CreatedAt,
	}
}
