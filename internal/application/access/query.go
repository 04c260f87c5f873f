package access

import (
	"context"
	"fmt"

	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/audit"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// QueryFunc reads tenant data. db is bound to ctx and to the connection that
// carries the tenant context; bodies still filter by tenantID explicitly.
type QueryFunc[T any] func(ctx context.Context, db *gorm.DB, tenantID string) (T, error)

// QueryStatus is the state of a query result
type QueryStatus string

const (
	// StatusIdle means the query did not run: it was disabled, denied, or its
	// result was discarded
	StatusIdle    QueryStatus = "idle"
	StatusSuccess QueryStatus = "success"
	StatusError   QueryStatus = "error"
)

// QueryResult is what Fetch returns
type QueryResult[T any] struct {
	Data T
	// IsLoading is always false once Fetch returns; it is kept so results
	// can be serialized for clients that render loading states.
	IsLoading bool
	Err       error
	Status    QueryStatus
	FromCache bool
	Decision  Decision
	// Key is the tenant-suffixed cache key, nil when no tenant was resolved
	Key cache.Key
}

// Query is a guarded, cached read
type Query[T any] struct {
	exec *Executor
	key  cache.Key
	body QueryFunc[T]
	opts operationOptions
}

// NewQuery describes a read. key must not contain the tenant id; it is
// appended for every session.
func NewQuery[T any](exec *Executor, key cache.Key, body QueryFunc[T], opts ...Option) *Query[T] {
	return &Query[T]{
		exec: exec,
		key:  append(cache.Key(nil), key...),
		body: body,
		opts: newOperationOptions("query:"+key.String(), exec.cfg.StaleTime, exec.cfg.GCTime, opts),
	}
}

// EffectiveKey returns the cache key used for the session's tenant
func (q *Query[T]) EffectiveKey(sess tenant.Session) cache.Key {
	return q.key.WithTenant(sess.TenantID())
}

// Fetch returns the cached result when it is fresh, otherwise runs the body
// under the session's tenant context. Concurrent fetches of the same key for
// the same tenant share one execution.
func (q *Query[T]) Fetch(ctx context.Context, sess tenant.Session) QueryResult[T] {
	return q.fetch(ctx, sess, q.opts.refetchOnMount)
}

// Refocus is Fetch for a client that regained focus. It bypasses a fresh
// cached result only when the query was built WithRefetchOnFocus.
func (q *Query[T]) Refocus(ctx context.Context, sess tenant.Session) QueryResult[T] {
	return q.fetch(ctx, sess, q.opts.refetchOnFocus)
}

func (q *Query[T]) fetch(ctx context.Context, sess tenant.Session, bypassCache bool) QueryResult[T] {
	e := q.exec
	start := e.clock.Now()

	decision := e.guard.Check(ctx, sess, true, q.opts.requiredRole)
	res := QueryResult[T]{Decision: decision, Status: StatusIdle}
	if !decision.Allowed || !q.opts.enabled {
		return res
	}

	key := q.EffectiveKey(sess)
	res.Key = key

	if !bypassCache {
		if entry, ok := e.cache.Get(key); ok && e.cache.IsFresh(entry, q.opts.staleTime) {
			if data, ok := entry.Value.(T); ok {
				res.Data = data
				res.Status = StatusSuccess
				res.FromCache = true
				e.record(ctx, "query", q.opts.name, "cache_hit", start)
				return res
			}
		}
	}

	ctx, span := e.tracer.Start(ctx, "access.query")
	span.SetAttributes(
		attribute.String("tenant_id", sess.TenantID()),
		attribute.String("operation", q.opts.name),
	)
	defer span.End()

	// The shared execution outlives any single caller; each caller decides
	// for itself whether it still wants the result.
	shared := context.WithoutCancel(ctx)
	ch := e.flight.DoChan(key.String(), func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &bodyPanic{value: r}
			}
		}()
		return q.execute(shared, sess, key)
	})

	var v any
	var err error
	select {
	case <-ctx.Done():
		e.record(ctx, "query", q.opts.name, "discarded", start)
		return res
	case r := <-ch:
		v, err = r.Val, r.Err
	}
	if p, ok := err.(*bodyPanic); ok {
		panic(p.value)
	}

	if ctx.Err() != nil || (q.opts.stillEnabled != nil && !q.opts.stillEnabled()) {
		e.record(ctx, "query", q.opts.name, "discarded", start)
		return res
	}

	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.Err = err
		res.Status = StatusError
	default:
		res.Data, _ = v.(T)
		res.Status = StatusSuccess
	}
	e.record(ctx, "query", q.opts.name, outcomeOf(err), start)
	return res
}

// bodyPanic carries a panic out of a shared execution so it is raised in
// every waiting caller instead of on the singleflight goroutine
type bodyPanic struct {
	value any
}

func (p *bodyPanic) Error() string { return fmt.Sprintf("access: query body panicked: %v", p.value) }

func (q *Query[T]) execute(ctx context.Context, sess tenant.Session, key cache.Key) (T, error) {
	e := q.exec
	var out T

	if err := revalidate(sess); err != nil {
		return out, err
	}

	tenantID := sess.TenantID()
	err := e.scoped(ctx, sess, q.opts.name, func(ctx context.Context, db *gorm.DB) error {
		data, err := q.body(ctx, db, tenantID)
		if err != nil {
			return err
		}
		if err := e.checkOwnership(ctx, sess, q.opts.name, data); err != nil {
			return err
		}
		out = data
		return nil
	})
	if err != nil {
		if !alreadyAudited(err) {
			e.audit.Throttled(ctx, audit.Entry{
				Kind:      audit.KindQueryFailed,
				TenantID:  tenantID,
				Operation: q.opts.name,
				Message:   "query failed",
				Fields:    []zap.Field{zap.Error(err)},
			})
		}
		var zero T
		return zero, err
	}

	e.cache.Set(key, out, q.opts.gcTime)
	e.audit.Throttled(ctx, audit.Entry{
		Kind:      audit.KindQueryExecuted,
		TenantID:  tenantID,
		Operation: q.opts.name,
		Message:   "query executed",
		Fields:    []zap.Field{zap.String("key", key.String())},
	})
	return out, nil
}

// Subscribe calls fn whenever the session's cached result changes.
// The returned function cancels the subscription.
func (q *Query[T]) Subscribe(sess tenant.Session, fn func(data T, stale bool)) (func(), error) {
	if !sess.Tenant.HasID() {
		return nil, &AccessDeniedError{Reason: ReasonTenantNotDefined}
	}
	return q.exec.cache.Subscribe(q.EffectiveKey(sess), func(_ cache.Key, entry cache.Entry, removed bool) {
		if removed {
			return
		}
		if data, ok := entry.Value.(T); ok {
			fn(data, entry.Stale)
		}
	}), nil
}

// Invalidate marks the session's cached result stale
func (q *Query[T]) Invalidate(sess tenant.Session) int {
	if !sess.Tenant.HasID() {
		return 0
	}
	return q.exec.cache.Invalidate(q.EffectiveKey(sess))
}
