package telemetry

import (
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled bool
	// LogFullSQL keeps bind variables in the recorded statements
	LogFullSQL bool
	DBName     string
	// TracerProvider overrides the global provider
	TracerProvider trace.TracerProvider
}

// RegisterDBTracing installs the otelgorm plugin and tags every statement
// span with the tenant the statement ran for.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, log *zap.Logger) error {
	if !cfg.Enabled {
		log.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	// Registered after the plugin so each hook runs after otelgorm opened the span
	cb := db.Callback()
	hooks := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
	}{
		{"query", cb.Query().Before("gorm:query").Register},
		{"row", cb.Row().Before("gorm:row").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register},
		{"create", cb.Create().Before("gorm:create").Register},
		{"update", cb.Update().Before("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register},
	}
	for _, h := range hooks {
		if err := h.register("tenantaccess:span_tenant_"+h.name, tagTenant); err != nil {
			return err
		}
	}

	log.Info("Database tracing enabled", zap.Bool("log_full_sql", cfg.LogFullSQL))
	return nil
}

func tagTenant(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	if tenantID := logger.GetTenantID(ctx); tenantID != "" {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("tenant_id", tenantID))
	}
}
