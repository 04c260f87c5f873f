package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/application/access"
	"github.com/revalya/tenantaccess/internal/domain/billing"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"gorm.io/gorm"
)

// PeriodsKey prefixes every cached billing period listing
var PeriodsKey = cache.Key{"billing-periods"}

type createPeriodVars struct {
	actorID *uuid.UUID
	in      billing.NewBillingPeriod
}

// PeriodService creates and lists contract billing periods. Creation races
// on the store-assigned order number and is retried by the executor.
type PeriodService struct {
	exec   *access.Executor
	repo   billing.BillingPeriodRepository
	create *access.Mutation[createPeriodVars, *billing.BillingPeriod]
}

// NewPeriodService creates a new PeriodService
func NewPeriodService(exec *access.Executor, repo billing.BillingPeriodRepository, opts ...access.Option) *PeriodService {
	s := &PeriodService{exec: exec, repo: repo}
	opts = append([]access.Option{
		access.WithName("billing_periods.create"),
		access.WithInvalidate(PeriodsKey),
	}, opts...)
	s.create = access.NewMutation(exec, func(ctx context.Context, db *gorm.DB, tenantID string, vars createPeriodVars) (*billing.BillingPeriod, error) {
		return s.repo.Create(ctx, db, tenantID, vars.actorID, vars.in)
	}, opts...)
	return s
}

// Create inserts a billing period for the session tenant. Invalid input is
// rejected before any tenant context is applied.
func (s *PeriodService) Create(ctx context.Context, sess tenant.Session, in billing.NewBillingPeriod) (*billing.BillingPeriod, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	vars := createPeriodVars{in: in}
	if id, err := uuid.Parse(sess.Actor.UserID); err == nil {
		vars.actorID = &id
	}
	return s.create.Mutate(ctx, sess, vars)
}

// List returns the periods of a contract ordered by order number
func (s *PeriodService) List(ctx context.Context, sess tenant.Session, contractID uuid.UUID, opts ...access.Option) access.QueryResult[[]billing.BillingPeriod] {
	opts = append([]access.Option{access.WithName("billing_periods.list")}, opts...)
	key := append(cache.Key{}, PeriodsKey...)
	key = append(key, contractID.String())
	q := access.NewQuery(s.exec, key, func(ctx context.Context, db *gorm.DB, tenantID string) ([]billing.BillingPeriod, error) {
		return s.repo.ListByContract(ctx, db, tenantID, contractID)
	}, opts...)
	return q.Fetch(ctx, sess)
}
