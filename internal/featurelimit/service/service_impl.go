package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/featurelimit/domain"
	"github.com/smallbiznis/gapline/internal/observability/metrics"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type counter func(*tenantstore.Store, context.Context) (int64, error)

var counters = map[plandomain.FeatureKey]counter{
	plandomain.FeaturePlaybooks:        (*tenantstore.Store).CountPlaybooks,
	plandomain.FeatureICPs:             (*tenantstore.Store).CountSegmentProfiles,
	plandomain.FeatureEnrolledAccounts: (*tenantstore.Store).CountProgramAccounts,
	plandomain.FeatureAccounts:         (*tenantstore.Store).CountAccounts,
	plandomain.FeatureUsers:            (*tenantstore.Store).CountUsers,
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Plans    plandomain.Registry
	Stores   *tenantstore.Factory
	Metrics  *metrics.Metrics         `optional:"true"`
	Metering *metrics.MeteringMetrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	plans    plandomain.Registry
	stores   *tenantstore.Factory
	metrics  *metrics.Metrics
	metering *metrics.MeteringMetrics
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("featurelimit.service"),
		plans:    p.Plans,
		stores:   p.Stores,
		metrics:  p.Metrics,
		metering: p.Metering,
	}
}

func (s *Service) CheckFeatureLimit(ctx context.Context, tenantID snowflake.ID, planType string, feature string) (domain.LimitResult, error) {
	key, ok := plandomain.ParseFeature(feature)
	if !ok {
		return domain.LimitResult{}, fmt.Errorf("%w: %s", plandomain.ErrInvalidFeature, feature)
	}
	plan, err := s.resolvePlan(planType)
	if err != nil {
		return domain.LimitResult{}, err
	}

	result, err := s.check(ctx, s.stores.For(tenantID), plan, key)
	if err != nil {
		return domain.LimitResult{}, err
	}

	s.metrics.RecordFeatureCheck(ctx, string(plan.Type), string(key), result.Allowed)
	if !result.Allowed {
		s.metering.IncFeatureDenied(string(key), string(plan.Type))
		s.log.Info("feature limit reached",
			zap.String("tenant_id", tenantID.String()),
			zap.String("feature", string(key)),
			zap.String("plan_type", string(plan.Type)),
			zap.Int("limit", result.Limit),
			zap.Int64("current", result.Current),
		)
	}
	return result, nil
}

// GetFeatureUsage reports every limited feature for the tenant in one call.
func (s *Service) GetFeatureUsage(ctx context.Context, tenantID snowflake.ID, planType string) (domain.FeatureUsage, error) {
	plan, err := s.resolvePlan(planType)
	if err != nil {
		return domain.FeatureUsage{}, err
	}

	store := s.stores.For(tenantID)
	keys := plandomain.FeatureKeys()
	usage := domain.FeatureUsage{
		PlanType: plan.Type,
		Features: make([]domain.LimitResult, 0, len(keys)),
	}
	for _, key := range keys {
		result, err := s.check(ctx, store, plan, key)
		if err != nil {
			return domain.FeatureUsage{}, err
		}
		usage.Features = append(usage.Features, result)
	}
	return usage, nil
}

func (s *Service) check(ctx context.Context, store *tenantstore.Store, plan plandomain.Plan, key plandomain.FeatureKey) (domain.LimitResult, error) {
	count, ok := counters[key]
	if !ok {
		return domain.LimitResult{}, fmt.Errorf("%w: %s", plandomain.ErrInvalidFeature, key)
	}
	current, err := count(store, ctx)
	if err != nil {
		return domain.LimitResult{}, fmt.Errorf("count %s: %w", key, err)
	}

	limit := plan.Limits.Limit(key)
	return domain.LimitResult{
		Allowed:  domain.Allowed(limit, current),
		Limit:    limit,
		Current:  current,
		Feature:  key,
		PlanType: plan.Type,
	}, nil
}

func (s *Service) resolvePlan(planType string) (plandomain.Plan, error) {
	parsed, ok := plandomain.ParseType(planType)
	if !ok {
		return plandomain.Plan{}, fmt.Errorf("%w: %q", plandomain.ErrUnknownPlan, planType)
	}
	return s.plans.Plan(parsed)
}
