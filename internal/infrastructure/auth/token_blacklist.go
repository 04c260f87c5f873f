package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"go.uber.org/zap"
)

// ErrNoSessionID is returned when a session without a token id is revoked
var ErrNoSessionID = errors.New("session has no token id")

// TokenBlacklist invalidates access tokens before they expire
type TokenBlacklist interface {
	// AddToBlacklist adds a token's JTI to the blacklist.
	// ttl should be the remaining time until the token expires.
	AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error

	// IsBlacklisted checks if a token's JTI is in the blacklist
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// RedisTokenBlacklist implements TokenBlacklist using Redis
type RedisTokenBlacklist struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisTokenBlacklist creates a token blacklist on an existing Redis client
func NewRedisTokenBlacklist(client redis.UniversalClient) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{
		client:    client,
		keyPrefix: "tenantaccess:token:blacklist:",
	}
}

func (b *RedisTokenBlacklist) jtiKey(jti string) string {
	return b.keyPrefix + jti
}

// AddToBlacklist adds a token's JTI to the blacklist
func (b *RedisTokenBlacklist) AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return ErrNoSessionID
	}
	if err := b.client.Set(ctx, b.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to add token to blacklist: %w", err)
	}
	return nil
}

// IsBlacklisted checks if a token's JTI is in the blacklist
func (b *RedisTokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	exists, err := b.client.Exists(ctx, b.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return exists > 0, nil
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)

// SessionRevoker revokes the token a session was authenticated with. It
// backs the invalidate_session security violation policy.
type SessionRevoker struct {
	blacklist TokenBlacklist
	ttl       time.Duration
	logger    *zap.Logger
}

// NewSessionRevoker creates a revoker. ttl should cover the longest token
// lifetime so a revoked token stays rejected until it would have expired.
func NewSessionRevoker(blacklist TokenBlacklist, ttl time.Duration, logger *zap.Logger) *SessionRevoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionRevoker{blacklist: blacklist, ttl: ttl, logger: logger}
}

// InvalidateSession blacklists the session's token id
func (r *SessionRevoker) InvalidateSession(ctx context.Context, sess tenant.Session, reason string) error {
	jti := sess.Actor.SessionID
	if jti == "" {
		return ErrNoSessionID
	}
	if err := r.blacklist.AddToBlacklist(ctx, jti, r.ttl); err != nil {
		return err
	}
	r.logger.Warn("session revoked",
		zap.String("user_id", sess.Actor.UserID),
		zap.String("session_id", jti),
		zap.String("reason", reason),
	)
	return nil
}
