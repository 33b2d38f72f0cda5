package server

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
	"github.com/smallbiznis/gapline/internal/observability/logger"
	"github.com/smallbiznis/gapline/internal/tenantcontext"
	"go.uber.org/zap"
)

const (
	rateLimitReasonTenantRate       = "tenant-rate"
	rateLimitReasonActionInProgress = "action-in-progress"
)

// AIActionRateLimit bounds AI bursts per tenant and lets only one run of the same action
// per tenant proceed at a time. An empty action is read from the :action route param.
func (s *Server) AIActionRateLimit(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil || !s.limiter.Enabled() {
			c.Next()
			return
		}

		tenantID, ok := tenantcontext.TenantIDFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		name := action
		if name == "" {
			name = c.Param("action")
		}
		cost, known := creditdomain.LookupAction(name)
		if !known {
			AbortWithError(c, newValidationError("action", "invalid_action", "unknown ai action"))
			return
		}
		name = string(cost.Action)

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()

		result, err := s.limiter.Allow(ctx, tenantID, cost.Cost)
		if err != nil {
			logger.FromContext(ctx).Warn("ai action rate limit check failed", zap.Error(err))
			AbortWithError(c, err)
			return
		}
		if !result.Allowed {
			s.denyAIAction(c, endpoint, rateLimitReasonTenantRate, result.RetryAfter)
			AbortWithError(c, ErrRateLimited)
			return
		}

		token, locked, err := s.limiter.TryLockAction(ctx, tenantID, name)
		if err != nil {
			logger.FromContext(ctx).Warn("ai action lock failed", zap.Error(err))
			AbortWithError(c, err)
			return
		}
		if !locked {
			s.denyAIAction(c, endpoint, rateLimitReasonActionInProgress, time.Second)
			AbortWithError(c, ErrActionInProgress)
			return
		}
		defer func() {
			// The request context may already be cancelled; the lock must still go.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := s.limiter.ReleaseAction(releaseCtx, tenantID, name, token); err != nil {
				logger.FromContext(ctx).Warn("ai action unlock failed", zap.Error(err))
			}
		}()

		c.Set(contextAIActionKey, name)
		s.obsMetrics.RecordRateLimit(ctx, endpoint, "")
		c.Next()
	}
}

func (s *Server) denyAIAction(c *gin.Context, endpoint, reason string, retryAfter time.Duration) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("ai action rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimit(ctx, endpoint, reason)

	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
	c.Header("X-Rate-Limited-Reason", reason)
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
