package access

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/revalya/tenantaccess/internal/infrastructure/audit"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type createPeriod struct {
	Amount int
}

// sequenceBody fails with errs in order, then succeeds
func sequenceBody(calls *int32, errs ...error) MutationFunc[createPeriod, row] {
	return func(_ context.Context, _ *gorm.DB, tenantID string, vars createPeriod) (row, error) {
		n := int(atomic.AddInt32(calls, 1))
		if n <= len(errs) && errs[n-1] != nil {
			return row{}, errs[n-1]
		}
		return row{ID: vars.Amount, TenantID: tenantID}, nil
	}
}

func TestMutation_Success(t *testing.T) {
	env := newTestEnv(t)
	var calls int32
	m := NewMutation(env.exec, sequenceBody(&calls), WithName("billing.create"))

	out, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{Amount: 7})

	require.NoError(t, err)
	assert.Equal(t, row{ID: 7, TenantID: "acme"}, out)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, env.delays)
	applies, successes, clears := env.applier.counts()
	assert.Equal(t, 1, applies)
	assert.Equal(t, successes, clears)

	assert.Equal(t, 1, env.logs.FilterField(zap.String("kind", string(audit.KindMutationSuccess))).Len())
	assert.Zero(t, env.publisher.calls, "nothing to invalidate")
}

func TestMutation_InvalidatesDeclaredKeys(t *testing.T) {
	env := newTestEnv(t)
	env.cache.Set(cache.Key{"billing_periods", "acme"}, []row{}, 0)
	env.cache.Set(cache.Key{"products", "acme"}, []row{}, 0)
	var calls int32
	m := NewMutation(env.exec, sequenceBody(&calls), WithInvalidate(cache.Key{"billing_periods"}))

	_, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{})
	require.NoError(t, err)

	periods, ok := env.cache.Get(cache.Key{"billing_periods", "acme"})
	require.True(t, ok)
	assert.True(t, periods.Stale)
	products, ok := env.cache.Get(cache.Key{"products", "acme"})
	require.True(t, ok)
	assert.False(t, products.Stale)

	assert.Equal(t, 1, env.publisher.calls)
	assert.Equal(t, []cache.Key{{"billing_periods"}, {"billing_periods", "acme"}}, env.publisher.keys)
	assert.Equal(t, 1, env.logs.FilterField(zap.String("kind", string(audit.KindCacheInvalidated))).Len())
}

func TestMutation_PublishFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.err = errBoom
	var calls int32
	m := NewMutation(env.exec, sequenceBody(&calls), WithInvalidate(cache.Key{"billing_periods"}))

	_, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{})

	assert.NoError(t, err)
	assert.Equal(t, 1, env.publisher.calls)
}

func TestMutation_RetriesSequenceConflict(t *testing.T) {
	metrics := &fakeMetrics{}
	env := newTestEnv(t, withDeps(func(d *Dependencies) { d.Metrics = metrics }))
	var calls int32
	m := NewMutation(env.exec, sequenceBody(&calls, orderNumberConflict()), WithName("billing.create"))

	out, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{Amount: 3})

	require.NoError(t, err)
	assert.Equal(t, "acme", out.TenantID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{80 * time.Millisecond}, env.delays)
	applies, successes, clears := env.applier.counts()
	assert.Equal(t, 2, applies)
	assert.Equal(t, 2, successes)
	assert.Equal(t, 2, clears)
	assert.Equal(t, []string{"billing.create"}, metrics.retries)

	retries := env.logs.FilterField(zap.String("kind", string(audit.KindMutationRetry))).All()
	require.Len(t, retries, 1)
	assert.EqualValues(t, 1, retries[0].ContextMap()["attempt"])
}

func TestMutation_RetryExhausted(t *testing.T) {
	env := newTestEnv(t)
	var calls int32
	conflict := orderNumberConflict()
	m := NewMutation(env.exec, sequenceBody(&calls, conflict, conflict, conflict, conflict))

	_, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{})

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, conflict)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{80 * time.Millisecond, 160 * time.Millisecond}, env.delays)
	_, successes, clears := env.applier.counts()
	assert.Equal(t, 3, successes)
	assert.Equal(t, 3, clears)
	assert.Zero(t, env.logs.FilterField(zap.String("kind", string(audit.KindMutationSuccess))).Len())
	assert.Equal(t, 1, env.logs.FilterField(zap.String("kind", string(audit.KindMutationFailed))).Len())
}

func TestMutation_NonRetryableErrorsFailOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"plain error", errBoom},
		{"duplicate on another constraint", &pgconn.PgError{Code: "23505", ConstraintName: "products_code_key"}},
		{"other sql state", &pgconn.PgError{Code: "40001", ConstraintName: "idx_contract_billing_periods_order_number_tenant"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			var calls int32
			m := NewMutation(env.exec, sequenceBody(&calls, tt.err))

			_, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{})

			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
			assert.Empty(t, env.delays)
			_, successes, clears := env.applier.counts()
			assert.Equal(t, successes, clears)
		})
	}
}

func TestMutation_DeniedNeverRunsBody(t *testing.T) {
	env := newTestEnv(t)
	var calls int32
	m := NewMutation(env.exec, sequenceBody(&calls), WithRequiredRole("owner"))

	_, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{})
	var denied *AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonInsufficientPermission, denied.Reason)

	_, err = NewMutation(env.exec, sequenceBody(&calls)).Mutate(context.Background(), inactiveSession("acme"), createPeriod{})
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonTenantInactive, denied.Reason)

	assert.Zero(t, atomic.LoadInt32(&calls))
	applies, _, _ := env.applier.counts()
	assert.Zero(t, applies)
}

func TestMutation_RechecksTenantBeforeEveryAttempt(t *testing.T) {
	env := newTestEnv(t)
	sess := activeSession("acme")
	var calls int32
	m := NewMutation(env.exec, func(context.Context, *gorm.DB, string, createPeriod) (row, error) {
		atomic.AddInt32(&calls, 1)
		sess.Tenant.Active = false
		return row{}, orderNumberConflict()
	})

	_, err := m.Mutate(context.Background(), sess, createPeriod{})

	var denied *AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, ReasonTenantInactive, denied.Reason)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{80 * time.Millisecond}, env.delays)
	_, successes, clears := env.applier.counts()
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, clears)
}

func TestMutation_ContextApplyFailureIsNotRetried(t *testing.T) {
	env := newTestEnv(t)
	env.applier.applyOK = false
	var calls int32
	m := NewMutation(env.exec, sequenceBody(&calls))

	_, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{})

	assert.ErrorIs(t, err, ErrContextApplyFailed)
	assert.Zero(t, atomic.LoadInt32(&calls))
	applies, _, clears := env.applier.counts()
	assert.Equal(t, 1, applies)
	assert.Zero(t, clears)
	assert.Zero(t, env.logs.FilterField(zap.String("kind", string(audit.KindMutationFailed))).Len())
}

func TestMutation_ForeignResultIsSecurityViolation(t *testing.T) {
	env := newTestEnv(t)
	m := NewMutation(env.exec, func(context.Context, *gorm.DB, string, createPeriod) (*row, error) {
		return &row{ID: 9, TenantID: "globex"}, nil
	}, WithInvalidate(cache.Key{"billing_periods"}))

	out, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{})

	var violation *SecurityViolationError
	require.ErrorAs(t, err, &violation)
	assert.Nil(t, out)
	assert.Equal(t, "globex", violation.FoundTenant)
	assert.Zero(t, env.publisher.calls)
	assert.Empty(t, env.delays)
	assert.Equal(t, 1, env.logs.FilterField(zap.String("kind", string(audit.KindSecurityViolation))).Len())
	assert.Zero(t, env.logs.FilterField(zap.String("kind", string(audit.KindSessionInvalidated))).Len())
}

func TestMutation_ViolationInvalidatesSession(t *testing.T) {
	invalidator := &fakeInvalidator{}
	env := newTestEnv(t,
		withConfig(func(c *Config) { c.ViolationPolicy = ViolationInvalidateSession }),
		withDeps(func(d *Dependencies) { d.SessionInvalidator = invalidator }),
	)
	m := NewMutation(env.exec, func(context.Context, *gorm.DB, string, createPeriod) (row, error) {
		return row{TenantID: "globex"}, nil
	})
	sess := activeSession("acme")
	sess.Actor.SessionID = "token-1"

	_, err := m.Mutate(context.Background(), sess, createPeriod{})

	assert.ErrorIs(t, err, ErrSecurityViolation)
	require.Len(t, invalidator.sessions, 1)
	assert.Equal(t, "token-1", invalidator.sessions[0].Actor.SessionID)
	assert.Contains(t, invalidator.reasons[0], SecurityViolationPrefix)
	assert.Equal(t, 1, env.logs.FilterField(zap.String("kind", string(audit.KindSessionInvalidated))).Len())
}

func TestMutation_CancelledDuringBackoff(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls int32
	m := NewMutation(env.exec, func(context.Context, *gorm.DB, string, createPeriod) (row, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return row{}, orderNumberConflict()
	})

	_, err := m.Mutate(ctx, activeSession("acme"), createPeriod{})

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	_, successes, clears := env.applier.counts()
	assert.Equal(t, successes, clears)
}

func TestMutation_PerMutationRetryPolicy(t *testing.T) {
	env := newTestEnv(t)
	var calls int32
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 1
	m := NewMutation(env.exec, sequenceBody(&calls, orderNumberConflict()), WithRetryPolicy(policy))

	_, err := m.Mutate(context.Background(), activeSession("acme"), createPeriod{})

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 1, exhausted.Attempts)
	assert.Empty(t, env.delays)
}
