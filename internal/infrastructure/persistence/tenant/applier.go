package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Strategy selects how the tenant context reaches the database session
type Strategy string

const (
	// StrategyRPC calls set_tenant_context_simple and clear_tenant_context
	StrategyRPC Strategy = "rpc"
	// StrategySetConfig writes the session settings directly with set_config
	StrategySetConfig Strategy = "set_config"
)

// Session settings read by the row level security policies
const (
	SettingTenantID = "app.current_tenant_id"
	SettingUserID   = "app.current_user_id"
)

// ErrNoConnection is returned when the applier is called without a database
var ErrNoConnection = errors.New("tenant context: no database connection")

// ParseStrategy parses a configured strategy; empty means rpc
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyRPC:
		return StrategyRPC, nil
	case StrategySetConfig:
		return StrategySetConfig, nil
	}
	return "", fmt.Errorf("unknown tenant context strategy %q", s)
}

// GormContextApplier sets and clears the tenant context of the connection a
// gorm session runs on. Both calls can be repeated safely.
type GormContextApplier struct {
	strategy Strategy
}

// NewGormContextApplier creates an applier for the given strategy
func NewGormContextApplier(strategy Strategy) *GormContextApplier {
	if strategy == "" {
		strategy = StrategyRPC
	}
	return &GormContextApplier{strategy: strategy}
}

// Strategy returns the configured strategy
func (a *GormContextApplier) Strategy() Strategy {
	return a.strategy
}

type rpcResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Apply sets the tenant and user of the session. It reports false when the
// database refused the context.
func (a *GormContextApplier) Apply(ctx context.Context, db *gorm.DB, tenantID, userID string) (bool, error) {
	if db == nil {
		return false, ErrNoConnection
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		return false, ErrInvalidTenantID
	}
	var user any
	if userID != "" {
		if _, err := uuid.Parse(userID); err != nil {
			return false, fmt.Errorf("invalid user id %q: %w", userID, err)
		}
		user = userID
	}

	db = db.WithContext(ctx)
	if a.strategy == StrategySetConfig {
		err := db.Exec("SELECT set_config(?, ?, false), set_config(?, ?, false)",
			SettingTenantID, tenantID, SettingUserID, userID).Error
		if err != nil {
			return false, fmt.Errorf("set tenant context: %w", err)
		}
		return true, nil
	}

	var raw []byte
	if err := db.Raw("SELECT set_tenant_context_simple(?, ?)", tenantID, user).Row().Scan(&raw); err != nil {
		return false, fmt.Errorf("set tenant context: %w", err)
	}
	var res rpcResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return false, fmt.Errorf("decode tenant context result: %w", err)
	}
	if !res.Success {
		logger.L(ctx).Warn("Tenant context refused by database",
			zap.String("tenant_id", tenantID),
			zap.String("reason", res.Error))
		return false, nil
	}
	return true, nil
}

// Clear resets the session's tenant and user
func (a *GormContextApplier) Clear(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return ErrNoConnection
	}
	db = db.WithContext(ctx)
	var err error
	if a.strategy == StrategySetConfig {
		err = db.Exec("SELECT set_config(?, '', false), set_config(?, '', false)",
			SettingTenantID, SettingUserID).Error
	} else {
		err = db.Exec("SELECT clear_tenant_context()").Error
	}
	if err != nil {
		return fmt.Errorf("clear tenant context: %w", err)
	}
	return nil
}
