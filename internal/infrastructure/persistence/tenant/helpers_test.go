package tenant

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type productRow struct {
	ID       string
	TenantID string
	Name     string
}

func (productRow) TableName() string { return "products" }

type tenantRow struct {
	ID   string
	Slug string
}

func (tenantRow) TableName() string { return "tenants" }

const (
	tenantA = "7f0c1a52-8d7e-4d5a-9c63-2f4a4b0a1e01"
	userA   = "0b6e7c2e-3f1d-4b8a-8a5e-9d9e0f1c2b03"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func tenantContext(tenantID string) context.Context {
	return logger.WithTenantID(context.Background(), tenantID)
}
