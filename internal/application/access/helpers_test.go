package access

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/audit"
	"github.com/revalya/tenantaccess/internal/infrastructure/cache"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

// fakeApplier counts context calls and tracks whether a context is active
type fakeApplier struct {
	mu         sync.Mutex
	applyOK    bool
	applyErr   error
	clearErr   error
	applies    int
	successes  int
	clears     int
	active     string
	appliedFor []string
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{applyOK: true}
}

func (f *fakeApplier) Apply(_ context.Context, _ *gorm.DB, tenantID, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applies++
	if f.applyErr != nil || !f.applyOK {
		return f.applyOK, f.applyErr
	}
	f.successes++
	f.active = tenantID
	f.appliedFor = append(f.appliedFor, tenantID)
	return true, nil
}

func (f *fakeApplier) Clear(context.Context, *gorm.DB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	f.active = ""
	return f.clearErr
}

func (f *fakeApplier) counts() (applies, successes, clears int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applies, f.successes, f.clears
}

func (f *fakeApplier) activeTenant() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// row is a tenant-owned record used as body output
type row struct {
	ID       int
	TenantID string
}

func (r row) OwnerTenantID() string { return r.TenantID }

// pgLikeError mimics a driver error exposing its SQLSTATE
type pgLikeError struct {
	code    string
	message string
}

func (e *pgLikeError) Error() string    { return e.message }
func (e *pgLikeError) SQLState() string { return e.code }

func orderNumberConflict() error {
	return &pgLikeError{
		code:    "23505",
		message: `duplicate key value violates unique constraint "idx_contract_billing_periods_order_number_tenant"`,
	}
}

type fakePublisher struct {
	mu    sync.Mutex
	keys  []cache.Key
	err   error
	calls int
}

func (p *fakePublisher) Publish(_ context.Context, keys ...cache.Key) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.keys = append(p.keys, keys...)
	return p.err
}

type fakeInvalidator struct {
	mu       sync.Mutex
	sessions []tenant.Session
	reasons  []string
}

func (f *fakeInvalidator) InvalidateSession(_ context.Context, sess tenant.Session, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sess)
	f.reasons = append(f.reasons, reason)
	return nil
}

type testEnv struct {
	exec      *Executor
	applier   *fakeApplier
	cache     *cache.QueryCache
	clock     *clock.Mock
	logs      *observer.ObservedLogs
	publisher *fakePublisher
	delays    []time.Duration
}

type envOption func(*Dependencies, *Config)

func withConfig(fn func(*Config)) envOption {
	return func(_ *Dependencies, c *Config) { fn(c) }
}

func withDeps(fn func(*Dependencies)) envOption {
	return func(d *Dependencies, _ *Config) { fn(d) }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	mock := clock.NewMock()
	core, logs := observer.New(zapcore.DebugLevel)
	auditLogger, err := audit.New(zap.New(core), audit.WithClock(mock))
	require.NoError(t, err)

	qc := cache.NewQueryCache(cache.WithClock(mock), cache.WithSweepInterval(time.Hour))
	t.Cleanup(func() { _ = qc.Close() })

	env := &testEnv{
		applier:   newFakeApplier(),
		cache:     qc,
		clock:     mock,
		logs:      logs,
		publisher: &fakePublisher{},
	}
	deps := Dependencies{
		Applier:   env.applier,
		Cache:     qc,
		Publisher: env.publisher,
		Audit:     auditLogger,
		Clock:     mock,
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&deps, &cfg)
	}

	exec, err := NewExecutor(deps, cfg)
	require.NoError(t, err)
	exec.sleep = func(ctx context.Context, d time.Duration) error {
		env.delays = append(env.delays, d)
		return ctx.Err()
	}
	env.exec = exec
	return env
}

func activeSession(id string) tenant.Session {
	return tenant.NewSession(&tenant.Tenant{ID: id, Slug: id, Active: true}, tenant.Actor{UserID: "user-" + id, Role: "admin"})
}

func inactiveSession(id string) tenant.Session {
	return tenant.NewSession(&tenant.Tenant{ID: id, Slug: id, Active: false}, tenant.Actor{UserID: "user-" + id})
}

var errBoom = errors.New("boom")
