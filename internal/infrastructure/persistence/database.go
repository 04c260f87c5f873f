package persistence

import (
	"fmt"
	"time"

	"github.com/revalya/tenantaccess/internal/infrastructure/config"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	tenantdb "github.com/revalya/tenantaccess/internal/infrastructure/persistence/tenant"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Tables without a tenant_id column
var tenantExemptTables = []string{"tenants"}

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the connection pool, logs statements through zap and
// registers the tenant filter callbacks
func NewDatabase(cfg *config.DatabaseConfig, zl *zap.Logger, logLevel gormlogger.LogLevel) (*Database, error) {
	gl := logger.NewGormLogger(zl, logLevel, logger.WithSlowThreshold(cfg.SlowThreshold))

	// Prepared statements stay off: pinned connections bypass gorm's statement cache.
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gl,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &Database{DB: db}
	if err := d.EnableTenantFilter(); err != nil {
		return nil, err
	}
	return d, nil
}

// EnableTenantFilter registers the callbacks that add the tenant filter from
// the statement context
func (d *Database) EnableTenantFilter() error {
	if err := tenantdb.EnableAutoTenantFilter(d.DB, tenantExemptTables...); err != nil {
		return fmt.Errorf("failed to register tenant callbacks: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Stats returns database connection pool statistics
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics.
// Pinned tenant operations hold a connection each, so InUse tracks them.
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}
