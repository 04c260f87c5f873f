package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// Statement kinds attached to every SQL log line
const (
	StatementTenantContext = "tenant_context"
	StatementRead          = "read"
	StatementWrite         = "write"
)

const sqlStateUniqueViolation = "23505"

// GormLogger writes gorm statements to zap. Each line carries the tenant,
// user and request ids of the ctx the statement ran under, and a statement
// kind so tenant context calls can be told apart from data access.
type GormLogger struct {
	logger *zap.Logger
	level  gormlogger.LogLevel
	slow   time.Duration
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which a statement is logged as
// slow. Zero disables slow statement logging.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slow = threshold
	}
}

// NewGormLogger creates a gorm logger writing to zl under the "gorm" name
func NewGormLogger(zl *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger: zl.Named("gorm"),
		level:  level,
		slow:   200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		Enrich(ctx, l.logger).Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		Enrich(ctx, l.logger).Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		Enrich(ctx, l.logger).Sugar().Errorf(msg, data...)
	}
}

// Trace logs one executed statement. Record-not-found is not an error here.
// Unique violations are logged as conflicts at warn level: the order number
// conflicts they signal are retried by the mutation executor.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	zl := Enrich(ctx, l.logger)
	fields := []zap.Field{
		zap.String("statement", StatementKind(sql)),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && isUniqueViolation(err):
		if l.level >= gormlogger.Warn {
			zl.Warn("SQL conflict", append(fields, zap.Error(err))...)
		}
	case err != nil:
		if l.level >= gormlogger.Error {
			zl.Error("SQL error", append(fields, zap.Error(err))...)
		}
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		zl.Warn("Slow SQL", append(fields, zap.Duration("threshold", l.slow))...)
	case l.level >= gormlogger.Info:
		zl.Debug("SQL", fields...)
	}
}

// StatementKind classifies a rendered statement
func StatementKind(sql string) string {
	s := strings.ToLower(strings.TrimSpace(sql))
	switch {
	case strings.Contains(s, "set_tenant_context_simple"),
		strings.Contains(s, "clear_tenant_context"),
		strings.Contains(s, "set_config("):
		return StatementTenantContext
	case strings.HasPrefix(s, "select"), strings.HasPrefix(s, "with"):
		return StatementRead
	default:
		return StatementWrite
	}
}

// isUniqueViolation matches both pgconn and lib/pq errors, which expose
// their SQLSTATE through SQLState
func isUniqueViolation(err error) bool {
	var coded interface{ SQLState() string }
	return errors.As(err, &coded) && coded.SQLState() == sqlStateUniqueViolation
}

// MapGormLogLevel maps a configured log level to a GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
