package audit

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"github.com/revalya/tenantaccess/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Entry is one audit event
type Entry struct {
	Kind      Kind
	TenantID  string
	Operation string
	Message   string
	Fields    []zap.Field
}

// Logger writes audit events to zap and counts them in OpenTelemetry
type Logger struct {
	base     *zap.Logger
	throttle *Throttle
	events   *telemetry.Counter
}

type options struct {
	window time.Duration
	clock  clock.Clock
	meter  metric.Meter
}

// Option configures a Logger
type Option func(*options)

// WithWindow sets the throttle window
func WithWindow(d time.Duration) Option {
	return func(o *options) {
		o.window = d
	}
}

// WithClock sets the clock used by the throttle
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithMeter enables the audit event counter
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// New creates an audit logger writing to base
func New(base *zap.Logger, opts ...Option) (*Logger, error) {
	o := options{window: DefaultWindow}
	for _, opt := range opts {
		opt(&o)
	}
	if base == nil {
		base = zap.NewNop()
	}

	l := &Logger{
		base:     base.Named("audit"),
		throttle: NewThrottle(o.window, o.clock),
	}
	if o.meter != nil {
		counter, err := telemetry.NewCounter(o.meter,
			"tenantaccess_audit_events_total",
			"Audit events by kind",
			"{event}",
		)
		if err != nil {
			return nil, err
		}
		l.events = counter
	}
	return l, nil
}

// NewNop returns a logger that discards everything
func NewNop() *Logger {
	return &Logger{base: zap.NewNop(), throttle: NewThrottle(0, nil)}
}

// Log writes the event unconditionally
func (l *Logger) Log(ctx context.Context, e Entry) {
	l.count(ctx, e.Kind, false)
	l.write(ctx, e, 0)
}

// Throttled writes the event unless the same kind was written within the
// throttle window. Critical kinds are never suppressed.
func (l *Logger) Throttled(ctx context.Context, e Entry) {
	if e.Kind.Critical() {
		l.Log(ctx, e)
		return
	}
	ok, suppressed := l.throttle.Allow(e.Kind)
	l.count(ctx, e.Kind, !ok)
	if !ok {
		return
	}
	l.write(ctx, e, suppressed)
}

func (l *Logger) write(ctx context.Context, e Entry, suppressed int) {
	fields := make([]zap.Field, 0, len(e.Fields)+5)
	fields = append(fields,
		zap.String("kind", string(e.Kind)),
		zap.String("tenant_id", e.TenantID),
		zap.String("operation", e.Operation),
		zap.String("outcome", e.Kind.Outcome()),
	)
	if suppressed > 0 {
		fields = append(fields, zap.Int("suppressed", suppressed))
	}
	fields = append(fields, e.Fields...)

	zl := l.base
	if reqID := logger.GetRequestID(ctx); reqID != "" {
		zl = zl.With(zap.String("request_id", reqID))
	}
	if ce := zl.Check(e.Kind.Level(), e.Message); ce != nil {
		ce.Write(fields...)
	}
}

func (l *Logger) count(ctx context.Context, kind Kind, throttled bool) {
	if l.events == nil {
		return
	}
	l.events.Inc(ctx,
		telemetry.AttrKind.String(string(kind)),
		attribute.Bool("throttled", throttled),
	)
}
