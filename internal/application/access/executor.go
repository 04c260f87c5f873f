package access

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/audit"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ContextApplier sets and clears the tenant context of a database session.
// Both calls must be idempotent.
type ContextApplier interface {
	// Apply reports false when the store refused the context without an error
	Apply(ctx context.Context, db *gorm.DB, tenantID, userID string) (bool, error)
	Clear(ctx context.Context, db *gorm.DB) error
}

// Metrics records guarded operations
type Metrics interface {
	RecordOperation(ctx context.Context, kind, operation, outcome string, d time.Duration)
	RecordRetry(ctx context.Context, operation string)
}

// InvalidationPublisher announces invalidated keys to other instances
type InvalidationPublisher interface {
	Publish(ctx context.Context, keys ...cache.Key) error
}

// Dependencies are the collaborators of an Executor.
// Only Applier is required.
type Dependencies struct {
	// DB is handed to operation bodies; nil is allowed in tests
	DB                 *gorm.DB
	Applier            ContextApplier
	Cache              *cache.QueryCache
	Publisher          InvalidationPublisher
	Audit              *audit.Logger
	Metrics            Metrics
	SessionInvalidator SessionInvalidator
	Clock              clock.Clock
	Tracer             trace.Tracer
}

// Config holds the executor settings
type Config struct {
	// PinConnection runs apply, body and clear on one pooled connection
	PinConnection bool
	// StrictClear fails an otherwise successful operation when clear fails
	StrictClear     bool
	ViolationPolicy ViolationPolicy
	Retry           RetryPolicy
	StaleTime       time.Duration
	GCTime          time.Duration
}

// DefaultConfig returns the executor defaults
func DefaultConfig() Config {
	return Config{
		PinConnection:   true,
		ViolationPolicy: ViolationAbort,
		Retry:           DefaultRetryPolicy(),
		StaleTime:       DefaultStaleTime,
		GCTime:          DefaultGCTime,
	}
}

// ErrNoApplier is returned by NewExecutor when no context applier is given
var ErrNoApplier = errors.New("access: context applier is required")

// Executor runs guarded queries and mutations
type Executor struct {
	db          *gorm.DB
	applier     ContextApplier
	guard       *Guard
	cache       *cache.QueryCache
	ownsCache   bool
	publisher   InvalidationPublisher
	audit       *audit.Logger
	metrics     Metrics
	invalidator SessionInvalidator
	clock       clock.Clock
	tracer      trace.Tracer
	cfg         Config
	flight      singleflight.Group

	// sleep waits between mutation attempts
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor. A cache is created when none is given and
// released by Close.
func NewExecutor(deps Dependencies, cfg Config) (*Executor, error) {
	if deps.Applier == nil {
		return nil, ErrNoApplier
	}
	if _, err := ParseViolationPolicy(string(cfg.ViolationPolicy)); err != nil {
		return nil, err
	}
	defaults := DefaultConfig()
	if cfg.ViolationPolicy == "" {
		cfg.ViolationPolicy = ViolationAbort
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = defaults.Retry
	}
	if cfg.StaleTime <= 0 {
		cfg.StaleTime = defaults.StaleTime
	}
	if cfg.GCTime <= 0 {
		cfg.GCTime = defaults.GCTime
	}

	e := &Executor{
		db:          deps.DB,
		applier:     deps.Applier,
		cache:       deps.Cache,
		publisher:   deps.Publisher,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		invalidator: deps.SessionInvalidator,
		clock:       deps.Clock,
		tracer:      deps.Tracer,
		cfg:         cfg,
	}
	if e.audit == nil {
		e.audit = audit.NewNop()
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("github.com/revalya/tenantaccess/access")
	}
	if e.cache == nil {
		e.cache = cache.NewQueryCache(cache.WithClock(e.clock), cache.WithGCTime(cfg.GCTime))
		e.ownsCache = true
	}
	e.guard = NewGuard(e.audit)
	e.sleep = e.sleepClock
	return e, nil
}

// Guard returns the guard used by the executor
func (e *Executor) Guard() *Guard {
	return e.guard
}

// Cache returns the query cache
func (e *Executor) Cache() *cache.QueryCache {
	return e.cache
}

// Close releases a cache created by the executor
func (e *Executor) Close() error {
	if e.ownsCache {
		return e.cache.Close()
	}
	return nil
}

func (e *Executor) sleepClock(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := e.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// scoped runs fn between a context apply and a context clear. The clear runs
// exactly once for every successful apply, on every exit path including
// panics and cancellation. A clear failure never replaces fn's error.
func (e *Executor) scoped(ctx context.Context, sess tenant.Session, operation string, fn func(ctx context.Context, db *gorm.DB) error) error {
	tenantID := sess.TenantID()
	ctx = logger.WithTenantID(ctx, tenantID)
	if sess.Actor.UserID != "" {
		ctx = logger.WithUserID(ctx, sess.Actor.UserID)
	}

	if e.db == nil {
		return e.applyRunClear(ctx, nil, sess, operation, fn)
	}
	db := e.db.WithContext(ctx)
	if !e.cfg.PinConnection {
		return e.applyRunClear(ctx, db, sess, operation, fn)
	}

	var runErr error
	connErr := db.Connection(func(conn *gorm.DB) error {
		runErr = e.applyRunClear(ctx, conn, sess, operation, fn)
		return runErr
	})
	if runErr != nil {
		return runErr
	}
	return connErr
}

func (e *Executor) applyRunClear(ctx context.Context, db *gorm.DB, sess tenant.Session, operation string, fn func(ctx context.Context, db *gorm.DB) error) (err error) {
	tenantID := sess.TenantID()

	ok, applyErr := e.applier.Apply(ctx, db, tenantID, sess.Actor.UserID)
	if applyErr != nil || !ok {
		fields := []zap.Field{zap.Bool("applied", ok)}
		if applyErr != nil {
			fields = append(fields, zap.Error(applyErr))
		}
		e.audit.Log(ctx, audit.Entry{
			Kind:      audit.KindContextApplyFailed,
			TenantID:  tenantID,
			Operation: operation,
			Message:   "tenant context apply failed",
			Fields:    fields,
		})
		return &ContextApplyFailedError{TenantID: tenantID, Cause: applyErr}
	}

	defer func() {
		clearErr := e.applier.Clear(context.WithoutCancel(ctx), db)
		if clearErr == nil {
			return
		}
		e.audit.Log(ctx, audit.Entry{
			Kind:      audit.KindContextClearFailed,
			TenantID:  tenantID,
			Operation: operation,
			Message:   "tenant context clear failed",
			Fields:    []zap.Field{zap.Error(clearErr)},
		})
		if err == nil && e.cfg.StrictClear {
			err = multierror.Append(err, clearErr)
		}
	}()

	return fn(ctx, db)
}

// checkOwnership returns a *SecurityViolationError when result holds a record
// of another tenant, after applying the violation policy
func (e *Executor) checkOwnership(ctx context.Context, sess tenant.Session, operation string, result any) error {
	tenantID := sess.TenantID()
	found, bad := foreignOwner(result, tenantID)
	if !bad {
		return nil
	}

	violation := &SecurityViolationError{Operation: operation, ExpectedTenant: tenantID, FoundTenant: found}
	e.audit.Log(ctx, audit.Entry{
		Kind:      audit.KindSecurityViolation,
		TenantID:  tenantID,
		Operation: operation,
		Message:   violation.Error(),
		Fields: []zap.Field{
			zap.String("found_tenant_id", found),
			zap.String("user_id", sess.Actor.UserID),
		},
	})

	if e.cfg.ViolationPolicy == ViolationInvalidateSession && e.invalidator != nil {
		if err := e.invalidator.InvalidateSession(context.WithoutCancel(ctx), sess, violation.Error()); err != nil {
			logger.L(ctx).Error("Failed to invalidate session after security violation", zap.Error(err))
		} else {
			e.audit.Log(ctx, audit.Entry{
				Kind:      audit.KindSessionInvalidated,
				TenantID:  tenantID,
				Operation: operation,
				Message:   "session invalidated after security violation",
				Fields:    []zap.Field{zap.String("user_id", sess.Actor.UserID)},
			})
		}
	}
	return violation
}

// revalidate repeats the tenant checks inside the execution path
func revalidate(sess tenant.Session) error {
	if !sess.Tenant.HasID() {
		return &AccessDeniedError{Reason: ReasonTenantNotDefined}
	}
	if !sess.Tenant.Active {
		return &AccessDeniedError{Reason: ReasonTenantInactive}
	}
	return nil
}

func (e *Executor) record(ctx context.Context, kind, operation, outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordOperation(ctx, kind, operation, outcome, e.clock.Now().Sub(start))
}

// alreadyAudited reports whether err was logged where it was detected
func alreadyAudited(err error) bool {
	var applyErr *ContextApplyFailedError
	var violation *SecurityViolationError
	return errors.As(err, &applyErr) || errors.As(err, &violation)
}

func outcomeOf(err error) string {
	var denied *AccessDeniedError
	var applyErr *ContextApplyFailedError
	var violation *SecurityViolationError
	var exhausted *RetryExhaustedError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &denied):
		return "denied"
	case errors.As(err, &applyErr):
		return "context_apply_failed"
	case errors.As(err, &violation):
		return "security_violation"
	case errors.As(err, &exhausted):
		return "retry_exhausted"
	default:
		return "error"
	}
}
