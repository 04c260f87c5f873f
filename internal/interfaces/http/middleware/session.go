package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/revalya/tenantaccess/internal/domain/tenant"
	"github.com/revalya/tenantaccess/internal/infrastructure/logger"
	"github.com/revalya/tenantaccess/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// SessionKey is the gin.Context key holding the resolved tenant.Session
const SessionKey = "tenant_session"

// Session resolves the tenant named by the token's tenant claim and stores a
// tenant.Session for handlers. It must run after JWTAuthMiddleware.
//
// An unknown tenant still yields a session, with no tenant, so the access
// layer answers with a denied decision instead of the middleware. Resolver
// failures answer 503.
func Session(resolver tenant.Resolver, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		t, err := resolver.ResolveTenant(ctx, claims.TenantID)
		switch {
		case errors.Is(err, tenant.ErrTenantNotFound):
			t = nil
		case err != nil:
			logger.Enrich(ctx, log).Error("Failed to resolve tenant",
				zap.String("tenant_ref", claims.TenantID),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeTenantUnavailable,
					"Tenant could not be resolved", GetRequestID(c)))
			return
		}

		sess := tenant.NewSession(t, claims.Actor())
		c.Set(SessionKey, sess)
		if id := sess.TenantID(); id != "" {
			c.Request = c.Request.WithContext(logger.WithTenantID(ctx, id))
		}

		c.Next()
	}
}

// GetSession returns the session stored by Session.
// Without one it returns an empty session, which the access layer denies.
func GetSession(c *gin.Context) tenant.Session {
	if v, ok := c.Get(SessionKey); ok {
		if sess, ok := v.(tenant.Session); ok {
			return sess
		}
	}
	return tenant.Session{}
}
