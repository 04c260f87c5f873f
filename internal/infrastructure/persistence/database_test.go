package persistence

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	tenantA   = "7f0c1a52-8d7e-4d5a-9c63-2f4a4b0a1e01"
	contractA = "5d1e8c0a-7b9f-4e2d-a3c6-1f0b2e4d6a08"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	mock.ExpectPing()
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectPing()
	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	db, _, _ := newMockDatabase(t)

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_TenantFilter(t *testing.T) {
	db, mock, _ := newMockDatabase(t)
	require.NoError(t, db.EnableTenantFilter())

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products" WHERE "products"."tenant_id" = $1`)).
		WithArgs(tenantA).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "tenants" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ctx := logger.WithTenantID(context.Background(), tenantA)
	var products []struct{ ID string }
	require.NoError(t, db.DB.WithContext(ctx).Table("products").Find(&products).Error)

	var tenants []struct{ ID string }
	require.NoError(t, db.DB.WithContext(context.Background()).Table("tenants").Where("id = ?", tenantA).Find(&tenants).Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
