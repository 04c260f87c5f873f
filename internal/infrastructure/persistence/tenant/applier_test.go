package tenant

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyRPC, s)

	s, err = ParseStrategy("set_config")
	require.NoError(t, err)
	assert.Equal(t, StrategySetConfig, s)

	_, err = ParseStrategy("guc")
	assert.Error(t, err)
}

func TestGormContextApplier_RPC(t *testing.T) {
	applySQL := regexp.QuoteMeta("SELECT set_tenant_context_simple($1, $2)")

	t.Run("applies tenant and user", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(applySQL).
			WithArgs(tenantA, userA).
			WillReturnRows(sqlmock.NewRows([]string{"set_tenant_context_simple"}).AddRow([]byte(`{"success": true}`)))

		ok, err := NewGormContextApplier(StrategyRPC).Apply(context.Background(), db, tenantA, userA)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("passes null user when none is known", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(applySQL).
			WithArgs(tenantA, nil).
			WillReturnRows(sqlmock.NewRows([]string{"set_tenant_context_simple"}).AddRow([]byte(`{"success": true}`)))

		ok, err := NewGormContextApplier("").Apply(context.Background(), db, tenantA, "")

		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports refusal without error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectQuery(applySQL).
			WillReturnRows(sqlmock.NewRows([]string{"set_tenant_context_simple"}).
				AddRow([]byte(`{"success": false, "error": "tenant inactive"}`)))

		ok, err := NewGormContextApplier(StrategyRPC).Apply(context.Background(), db, tenantA, userA)

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("returns database errors", func(t *testing.T) {
		db, mock := setupMockDB(t)
		dbErr := errors.New("connection reset")
		mock.ExpectQuery(applySQL).WillReturnError(dbErr)

		ok, err := NewGormContextApplier(StrategyRPC).Apply(context.Background(), db, tenantA, userA)

		assert.False(t, ok)
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("clears through the rpc", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("SELECT clear_tenant_context()")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, NewGormContextApplier(StrategyRPC).Clear(context.Background(), db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormContextApplier_SetConfig(t *testing.T) {
	t.Run("applies settings", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("SELECT set_config($1, $2, false), set_config($3, $4, false)")).
			WithArgs(SettingTenantID, tenantA, SettingUserID, userA).
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := NewGormContextApplier(StrategySetConfig).Apply(context.Background(), db, tenantA, userA)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clears settings", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("SELECT set_config($1, '', false), set_config($2, '', false)")).
			WithArgs(SettingTenantID, SettingUserID).
			WillReturnResult(sqlmock.NewResult(0, 0))

		require.NoError(t, NewGormContextApplier(StrategySetConfig).Clear(context.Background(), db))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clear error is wrapped", func(t *testing.T) {
		db, mock := setupMockDB(t)
		dbErr := errors.New("broken pipe")
		mock.ExpectExec("set_config").WillReturnError(dbErr)

		err := NewGormContextApplier(StrategySetConfig).Clear(context.Background(), db)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestGormContextApplier_RejectsBadInput(t *testing.T) {
	db, mock := setupMockDB(t)
	a := NewGormContextApplier(StrategyRPC)

	ok, err := a.Apply(context.Background(), db, "not-a-uuid", userA)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidTenantID)

	ok, err = a.Apply(context.Background(), db, tenantA, "user-1")
	assert.False(t, ok)
	assert.Error(t, err)

	ok, err = a.Apply(context.Background(), nil, tenantA, userA)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNoConnection)
	assert.ErrorIs(t, a.Clear(context.Background(), nil), ErrNoConnection)

	assert.NoError(t, mock.ExpectationsWereMet())
}
