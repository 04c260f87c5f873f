package access

import (
	"context"

	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/audit"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MutationFunc writes tenant data. db is bound to ctx and to the connection
// that carries the tenant context.
type MutationFunc[V, T any] func(ctx context.Context, db *gorm.DB, tenantID string, vars V) (T, error)

// MutationState names the steps of a mutation, used in logs
type MutationState string

const (
	StateStart           MutationState = "START"
	StateValidateTenant  MutationState = "VALIDATE_TENANT"
	StateApplyContext    MutationState = "APPLY_CONTEXT"
	StateRunBody         MutationState = "RUN_BODY"
	StateValidateResult  MutationState = "VALIDATE_RESULT"
	StateClearContext    MutationState = "CLEAR_CONTEXT"
	StateWaitBackoff     MutationState = "WAIT_BACKOFF"
	StateInvalidateCache MutationState = "INVALIDATE_CACHE"
	StateDone            MutationState = "DONE"
	StateFail            MutationState = "FAIL"
)

// Mutation is a guarded write with retry on sequence-number conflicts
type Mutation[V, T any] struct {
	exec *Executor
	body MutationFunc[V, T]
	opts operationOptions
}

// NewMutation describes a write
func NewMutation[V, T any](exec *Executor, body MutationFunc[V, T], opts ...Option) *Mutation[V, T] {
	return &Mutation[V, T]{
		exec: exec,
		body: body,
		opts: newOperationOptions("mutation", exec.cfg.StaleTime, exec.cfg.GCTime, opts),
	}
}

func (m *Mutation[V, T]) policy() RetryPolicy {
	if m.opts.retry != nil {
		return *m.opts.retry
	}
	return m.exec.cfg.Retry
}

// Mutate runs the body for the session's tenant. The tenant is re-checked and
// the context applied fresh before every attempt. Retryable conflicts are
// retried with linear backoff; every other error is returned after the
// attempt's context has been cleared.
func (m *Mutation[V, T]) Mutate(ctx context.Context, sess tenant.Session, vars V) (T, error) {
	e := m.exec
	start := e.clock.Now()
	policy := m.policy()
	maxAttempts := policy.maxAttempts()
	tenantID := sess.TenantID()
	var zero T

	ctx, span := e.tracer.Start(ctx, "access.mutation")
	span.SetAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("operation", m.opts.name),
	)
	defer span.End()

	step := func(state MutationState, attempt int) {
		logger.L(ctx).Debug("mutation state",
			zap.String("operation", m.opts.name),
			zap.String("state", string(state)),
			zap.Int("attempt", attempt))
	}
	step(StateStart, 0)

	fail := func(err error, attempt int) (T, error) {
		step(StateFail, attempt)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if !alreadyAudited(err) {
			e.audit.Throttled(ctx, audit.Entry{
				Kind:      audit.KindMutationFailed,
				TenantID:  tenantID,
				Operation: m.opts.name,
				Message:   "mutation failed",
				Fields:    []zap.Field{zap.Int("attempt", attempt), zap.Error(err)},
			})
		}
		e.record(ctx, "mutation", m.opts.name, outcomeOf(err), start)
		return zero, err
	}

	for attempt := 1; ; attempt++ {
		step(StateValidateTenant, attempt)
		decision := e.guard.Check(ctx, sess, true, m.opts.requiredRole)
		if !decision.Allowed {
			return fail(decision.Err(), attempt)
		}

		e.audit.Throttled(ctx, audit.Entry{
			Kind:      audit.KindMutationAttempt,
			TenantID:  tenantID,
			Operation: m.opts.name,
			Message:   "mutation attempt",
			Fields:    []zap.Field{zap.Int("attempt", attempt)},
		})

		var result T
		step(StateApplyContext, attempt)
		err := e.scoped(ctx, sess, m.opts.name, func(ctx context.Context, db *gorm.DB) error {
			step(StateRunBody, attempt)
			out, err := m.body(ctx, db, tenantID, vars)
			if err != nil {
				return err
			}
			step(StateValidateResult, attempt)
			if err := e.checkOwnership(ctx, sess, m.opts.name, out); err != nil {
				return err
			}
			result = out
			return nil
		})
		step(StateClearContext, attempt)
		if err == nil {
			step(StateInvalidateCache, attempt)
			m.invalidate(ctx, tenantID)
			e.audit.Throttled(ctx, audit.Entry{
				Kind:      audit.KindMutationSuccess,
				TenantID:  tenantID,
				Operation: m.opts.name,
				Message:   "mutation succeeded",
				Fields:    []zap.Field{zap.Int("attempts", attempt)},
			})
			e.record(ctx, "mutation", m.opts.name, "success", start)
			step(StateDone, attempt)
			return result, nil
		}

		if policy.Classify(err) != Retryable {
			return fail(err, attempt)
		}
		if attempt >= maxAttempts {
			return fail(&RetryExhaustedError{Attempts: attempt, Last: err}, attempt)
		}

		delay := policy.DelayForAttempt(attempt)
		e.audit.Throttled(ctx, audit.Entry{
			Kind:      audit.KindMutationRetry,
			TenantID:  tenantID,
			Operation: m.opts.name,
			Message:   "retrying mutation after sequence conflict",
			Fields: []zap.Field{
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			},
		})
		if e.metrics != nil {
			e.metrics.RecordRetry(ctx, m.opts.name)
		}
		step(StateWaitBackoff, attempt)
		if err := e.sleep(ctx, delay); err != nil {
			return fail(err, attempt)
		}
	}
}

// invalidate marks every declared key stale locally, bare and tenant
// suffixed, and announces them to other instances
func (m *Mutation[V, T]) invalidate(ctx context.Context, tenantID string) {
	if len(m.opts.invalidate) == 0 {
		return
	}
	e := m.exec
	keys := make([]cache.Key, 0, 2*len(m.opts.invalidate))
	for _, k := range m.opts.invalidate {
		keys = append(keys, k, k.WithTenant(tenantID))
	}

	n := 0
	for _, k := range keys {
		n += e.cache.Invalidate(k)
	}
	if e.publisher != nil {
		if err := e.publisher.Publish(context.WithoutCancel(ctx), keys...); err != nil {
			logger.L(ctx).Warn("Failed to publish cache invalidation", zap.Error(err))
		}
	}
	e.audit.Throttled(ctx, audit.Entry{
		Kind:      audit.KindCacheInvalidated,
		TenantID:  tenantID,
		Operation: m.opts.name,
		Message:   "cache invalidated",
		Fields:    []zap.Field{zap.Int("keys", len(keys)), zap.Int("entries", n)},
	})
}
