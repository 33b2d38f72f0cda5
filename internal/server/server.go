package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/gapline/internal/clock"
	"github.com/smallbiznis/gapline/internal/config"
	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
	featurelimitdomain "github.com/smallbiznis/gapline/internal/featurelimit/domain"
	"github.com/smallbiznis/gapline/internal/observability"
	obsmiddleware "github.com/smallbiznis/gapline/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/gapline/internal/observability/metrics"
	obstracing "github.com/smallbiznis/gapline/internal/observability/tracing"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/smallbiznis/gapline/internal/providers/pdf"
	"github.com/smallbiznis/gapline/internal/ratelimit"
	tenantdomain "github.com/smallbiznis/gapline/internal/tenant/domain"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	clock      clock.Clock
	tenantSvc  tenantdomain.Service
	stores     *tenantstore.Factory
	featureSvc featurelimitdomain.Service
	creditSvc  creditdomain.Service
	pdf        pdf.Provider
	limiter    *ratelimit.AIActionLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	TenantSvc  tenantdomain.Service
	Stores     *tenantstore.Factory
	FeatureSvc featurelimitdomain.Service
	CreditSvc  creditdomain.Service
	PDF        pdf.Provider
	Limiter    *ratelimit.AIActionLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		clock:      p.Clock,
		tenantSvc:  p.TenantSvc,
		stores:     p.Stores,
		featureSvc: p.FeatureSvc,
		creditSvc:  p.CreditSvc,
		pdf:        p.PDF,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	if strings.TrimSpace(p.Cfg.AuthJWTSecret) == "" {
		svc.log.Warn("AUTH_JWT_SECRET is empty; every /api request will be rejected")
	}
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.TenantContext())

	// -------- Accounts --------
	api.GET("/accounts", s.ListAccounts)
	api.POST("/accounts", s.RequireFeatureLimit(plandomain.FeatureAccounts), s.CreateAccount)
	api.POST("/accounts/metrics", s.BatchAccountMetrics)
	api.GET("/accounts/:id", s.GetAccount)
	api.PATCH("/accounts/:id", s.UpdateAccount)
	api.DELETE("/accounts/:id", s.DeleteAccount)

	// -------- Tasks --------
	api.GET("/tasks", s.ListTasks)
	api.POST("/tasks", s.CreateTask)
	api.PATCH("/tasks/:id", s.UpdateTask)
	api.DELETE("/tasks/:id", s.DeleteTask)

	// -------- Playbooks --------
	api.GET("/playbooks", s.ListPlaybooks)
	api.POST("/playbooks", s.RequireFeatureLimit(plandomain.FeaturePlaybooks), s.CreatePlaybook)
	api.POST("/playbooks/generate",
		s.RequireActiveSubscription(),
		s.RequireFeatureLimit(plandomain.FeaturePlaybooks),
		s.AIActionRateLimit(string(creditdomain.ActionGeneratePlaybook)),
		s.RequireCredits(string(creditdomain.ActionGeneratePlaybook)),
		s.GeneratePlaybook,
	)
	api.DELETE("/playbooks/:id", s.DeletePlaybook)

	// -------- Segment profiles (ICPs) --------
	api.GET("/segment-profiles", s.ListSegmentProfiles)
	api.POST("/segment-profiles", s.RequireFeatureLimit(plandomain.FeatureICPs), s.CreateSegmentProfile)
	api.DELETE("/segment-profiles/:id", s.DeleteSegmentProfile)

	// -------- Rev-share program --------
	api.GET("/program/accounts", s.ListProgramAccounts)
	api.POST("/program/accounts", s.RequireFeatureLimit(plandomain.FeatureEnrolledAccounts), s.EnrollProgramAccount)

	// -------- Categories --------
	api.GET("/categories", s.ListCustomCategories)
	api.POST("/categories", s.CreateCustomCategory)

	// -------- Settings --------
	api.GET("/settings/:key", s.GetSetting)
	api.PUT("/settings/:key", s.PutSetting)
	api.GET("/scoring-weights", s.GetScoringWeights)
	api.PUT("/scoring-weights", s.RequirePlan(plandomain.TypeGrowth), s.PutScoringWeights)

	// -------- Credits & usage --------
	api.GET("/credits/usage", s.GetCreditUsage)
	api.GET("/credits/check", s.CheckCredits)
	api.GET("/credits/statement", s.GetCreditStatement)
	api.GET("/usage/features", s.GetFeatureUsage)

	// AI output is produced elsewhere; this route only meters it.
	api.POST("/ai/actions/:action", s.RequireActiveSubscription(), s.AIActionRateLimit(""), s.RecordAIAction)

	// -------- Billing --------
	api.POST("/billing/subscription", s.UpdateSubscription)
}
