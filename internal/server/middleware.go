package server

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	obscontext "github.com/smallbiznis/gapline/internal/observability/context"
	"github.com/smallbiznis/gapline/internal/observability/logger"
	tenantdomain "github.com/smallbiznis/gapline/internal/tenant/domain"
	"github.com/smallbiznis/gapline/internal/tenantcontext"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	"go.uber.org/zap"
)

// tenantClaims accepts tenant_id as a JSON number or a numeric string; snowflake ids
// overflow JavaScript integers, so issuers usually send strings.
type tenantClaims struct {
	TenantID json.Number `json:"tenant_id"`
	jwt.RegisteredClaims
}

// TenantContext resolves the tenant from an HS256 bearer token and loads its plan and
// subscription status. Every failure answers 401 without saying why.
func (s *Server) TenantContext() gin.HandlerFunc {
	secret := []byte(strings.TrimSpace(s.cfg.AuthJWTSecret))
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		if len(secret) == 0 {
			logger.FromContext(c.Request.Context()).Error("AUTH_JWT_SECRET is not set; rejecting request")
			AbortWithError(c, ErrUnauthorized)
			return
		}

		raw, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims := &tenantClaims{}
		token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		tenantID, err := parseTenantClaim(claims.TenantID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := c.Request.Context()
		tenant, err := s.tenantSvc.Get(ctx, tenantID)
		if err != nil {
			if errors.Is(err, tenantdomain.ErrNotFound) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		ctx = tenantcontext.WithTenant(ctx, tenantcontext.Tenant{
			ID:                 tenant.ID,
			PlanType:           tenant.PlanType,
			SubscriptionStatus: tenant.SubscriptionStatus,
		})
		ctx = obscontext.WithTenant(ctx, tenant.ID.String(), string(tenant.PlanType))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func parseTenantClaim(raw json.Number) (snowflake.ID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw.String()), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrUnauthorized
	}
	return snowflake.ID(id), nil
}

// tenantStore returns the store of the request's tenant. Routes behind TenantContext
// always have one; the check guards against wiring mistakes.
func (s *Server) tenantStore(c *gin.Context) (*tenantstore.Store, tenantcontext.Tenant, bool) {
	tenant, ok := tenantcontext.FromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return nil, tenantcontext.Tenant{}, false
	}
	return s.stores.For(tenant.ID), tenant, true
}

func requestLogger(c *gin.Context) *zap.Logger {
	return logger.FromContext(c.Request.Context())
}
