package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/gapline/internal/clock"
	"github.com/smallbiznis/gapline/internal/config"
	creditrepository "github.com/smallbiznis/gapline/internal/credit/repository"
	creditservice "github.com/smallbiznis/gapline/internal/credit/service"
	featurelimitservice "github.com/smallbiznis/gapline/internal/featurelimit/service"
	"github.com/smallbiznis/gapline/internal/migration"
	"github.com/smallbiznis/gapline/internal/observability"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/smallbiznis/gapline/internal/providers/pdf"
	tenantdomain "github.com/smallbiznis/gapline/internal/tenant/domain"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	"github.com/smallbiznis/gapline/internal/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testJWTSecret = "test-secret"

type mockTenantService struct {
	mock.Mock
}

func (m *mockTenantService) Create(ctx context.Context, req tenantdomain.CreateTenantRequest) (tenantdomain.Tenant, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(tenantdomain.Tenant), args.Error(1)
}

func (m *mockTenantService) Get(ctx context.Context, id snowflake.ID) (tenantdomain.Tenant, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(tenantdomain.Tenant), args.Error(1)
}

func (m *mockTenantService) Exists(ctx context.Context, id snowflake.ID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockTenantService) UpdateSubscription(ctx context.Context, req tenantdomain.UpdateSubscriptionRequest) (tenantdomain.Tenant, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(tenantdomain.Tenant), args.Error(1)
}

type mockPlans struct {
	mock.Mock
}

func (m *mockPlans) Plan(planType plandomain.Type) (plandomain.Plan, error) {
	args := m.Called(planType)
	return args.Get(0).(plandomain.Plan), args.Error(1)
}

type testServer struct {
	engine  *gin.Engine
	db      *gorm.DB
	tenants *mockTenantService
	stores  *tenantstore.Factory
}

func newTestServer(t *testing.T, plans plandomain.Registry, tenants ...tenantdomain.Tenant) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	require.NoError(t, migration.AutoMigrate(db))

	tenantSvc := &mockTenantService{}
	for _, tenant := range tenants {
		require.NoError(t, db.Create(&tenant).Error)
		tenantSvc.On("Get", mock.Anything, tenant.ID).Return(tenant, nil).Maybe()
		tenantSvc.On("Exists", mock.Anything, tenant.ID).Return(true, nil).Maybe()
	}
	tenantSvc.On("Get", mock.Anything, mock.Anything).Return(tenantdomain.Tenant{}, tenantdomain.ErrNotFound).Maybe()
	tenantSvc.On("Exists", mock.Anything, mock.Anything).Return(false, nil).Maybe()

	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	stores := tenantstore.NewFactory(tenantstore.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Tenants: tenantSvc,
	})

	engine := NewEngine(observability.Config{}, nil)
	NewServer(ServerParams{
		Gin:       engine,
		Cfg:       config.Config{AuthJWTSecret: testJWTSecret},
		Log:       zap.NewNop(),
		Clock:     clk,
		TenantSvc: tenantSvc,
		Stores:    stores,
		FeatureSvc: featurelimitservice.New(featurelimitservice.Params{
			Log:    zap.NewNop(),
			Plans:  plans,
			Stores: stores,
		}),
		CreditSvc: creditservice.New(creditservice.Params{
			DB:     db,
			Log:    zap.NewNop(),
			GenID:  node,
			Clock:  clk,
			Plans:  plans,
			Stores: stores,
			Repo:   creditrepository.Provide(),
		}),
		PDF: pdf.New(),
	})

	return testServer{engine: engine, db: db, tenants: tenantSvc, stores: stores}
}

func tenantRecord(id int64, planType plandomain.Type, status plandomain.SubscriptionStatus) tenantdomain.Tenant {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return tenantdomain.Tenant{
		ID:                 snowflake.ID(id),
		Name:               "Tenant " + snowflake.ID(id).String(),
		Slug:               "tenant-" + snowflake.ID(id).String(),
		PlanType:           planType,
		SubscriptionStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func tokenFor(t *testing.T, tenantID int64) string {
	return signToken(t, testJWTSecret, jwt.MapClaims{
		"tenant_id": snowflake.ID(tenantID).String(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
}

func (ts testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	payload, ok := body["error"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return payload["type"].(string)
}

func dataID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	data, ok := decode(t, rec)["data"].(map[string]any)
	require.True(t, ok, rec.Body.String())
	return jsonID(data["id"])
}

// jsonID normalizes snowflake ids, which marshal as JSON strings.
func jsonID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return snowflake.ID(int64(id)).String()
	default:
		return ""
	}
}
