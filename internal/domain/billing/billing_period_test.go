package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewBillingPeriod_Validate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := NewBillingPeriod{
		ContractID:    uuid.New(),
		PeriodStart:   start,
		PeriodEnd:     start.AddDate(0, 1, -1),
		BillDate:      start.AddDate(0, 1, 0),
		AmountPlanned: decimal.NewFromInt(100),
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*NewBillingPeriod)
	}{
		{"missing contract", func(n *NewBillingPeriod) { n.ContractID = uuid.Nil }},
		{"missing start", func(n *NewBillingPeriod) { n.PeriodStart = time.Time{} }},
		{"end before start", func(n *NewBillingPeriod) { n.PeriodEnd = start.AddDate(0, 0, -1) }},
		{"missing bill date", func(n *NewBillingPeriod) { n.BillDate = time.Time{} }},
		{"negative amount", func(n *NewBillingPeriod) { n.AmountPlanned = decimal.NewFromInt(-5) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid
			tt.mutate(&n)
			assert.Error(t, n.Validate())
		})
	}
}

func TestPeriodStatus_IsValid(t *testing.T) {
	assert.True(t, PeriodStatusPending.IsValid())
	assert.True(t, PeriodStatusCancelled.IsValid())
	assert.False(t, PeriodStatus("UNKNOWN").IsValid())
}
