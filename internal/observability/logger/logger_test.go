package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/gapline/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsTenantFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithTenant(ctx, "42", "starter")
	WithContext(ctx, base).Info("hello")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "42", fields["tenant_id"])
	assert.Equal(t, "starter", fields["plan_type"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextWithoutFieldsReturnsBase(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("bare")
	assert.Empty(t, logs.All()[0].Context)
}

func TestAccessLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, accessLevel("/health", http.StatusOK))
	assert.Equal(t, zapcore.InfoLevel, accessLevel("/api/accounts", http.StatusOK))
	assert.Equal(t, zapcore.WarnLevel, accessLevel("/api/playbooks", http.StatusForbidden))
	assert.Equal(t, zapcore.WarnLevel, accessLevel("/api/playbooks/generate", http.StatusPaymentRequired))
	assert.Equal(t, zapcore.WarnLevel, accessLevel("/api/ai/actions/:action", http.StatusTooManyRequests))
	assert.Equal(t, zapcore.ErrorLevel, accessLevel("/api/credits/usage", http.StatusInternalServerError))
}

func TestGinMiddlewareEchoesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/api/ping", func(c *gin.Context) {
		c.Set("ai_action", "draft_email")
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	req.Header.Set(requestIDHeader, "abc")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "abc", rec.Header().Get(requestIDHeader))
	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/ping", fields["route"])
	assert.Equal(t, "draft_email", fields["ai_action"])
	assert.Equal(t, "abc", fields["request_id"])
}
