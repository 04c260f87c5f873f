package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PeriodStatus is the lifecycle state of a billing period
type PeriodStatus string

const (
	PeriodStatusPending   PeriodStatus = "PENDING"
	PeriodStatusDueToday  PeriodStatus = "DUE_TODAY"
	PeriodStatusBilled    PeriodStatus = "BILLED"
	PeriodStatusPaid      PeriodStatus = "PAID"
	PeriodStatusOverdue   PeriodStatus = "OVERDUE"
	PeriodStatusCancelled PeriodStatus = "CANCELLED"
)

// IsValid reports whether the status is a known value
func (s PeriodStatus) IsValid() bool {
	switch s {
	case PeriodStatusPending, PeriodStatusDueToday, PeriodStatusBilled,
		PeriodStatusPaid, PeriodStatusOverdue, PeriodStatusCancelled:
		return true
	}
	return false
}

// BillingPeriod is one billable slice of a contract.
// OrderNumber is assigned by the database on insert and is unique per tenant.
type BillingPeriod struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	ContractID    uuid.UUID       `json:"contract_id"`
	OrderNumber   int64           `json:"order_number"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	BillDate      time.Time       `json:"bill_date"`
	AmountPlanned decimal.Decimal `json:"amount_planned"`
	Status        PeriodStatus    `json:"status"`
	ActorID       *uuid.UUID      `json:"actor_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OwnerTenantID returns the tenant the period belongs to
func (p BillingPeriod) OwnerTenantID() string {
	return p.TenantID.String()
}

// NewBillingPeriod carries the caller-supplied fields of a billing period
type NewBillingPeriod struct {
	ContractID    uuid.UUID       `json:"contract_id"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	BillDate      time.Time       `json:"bill_date"`
	AmountPlanned decimal.Decimal `json:"amount_planned"`
}

// Validate checks the request before it reaches the store
func (n NewBillingPeriod) Validate() error {
	if n.ContractID == uuid.Nil {
		return shared.NewDomainError("INVALID_CONTRACT", "Contract ID cannot be empty")
	}
	if n.PeriodStart.IsZero() || n.PeriodEnd.IsZero() {
		return shared.NewDomainError("INVALID_PERIOD", "Period start and end are required")
	}
	if n.PeriodEnd.Before(n.PeriodStart) {
		return shared.NewDomainError("INVALID_PERIOD", "Period end cannot be before period start")
	}
	if n.BillDate.IsZero() {
		return shared.NewDomainError("INVALID_BILL_DATE", "Bill date is required")
	}
	if n.AmountPlanned.IsNegative() {
		return shared.NewDomainError("INVALID_AMOUNT", "Planned amount cannot be negative")
	}
	return nil
}
