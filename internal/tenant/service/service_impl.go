package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/gapline/internal/clock"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/smallbiznis/gapline/internal/tenant/domain"
	"github.com/smallbiznis/gapline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("tenant.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTenantRequest) (domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Tenant{}, domain.ErrInvalidName
	}

	planType := plandomain.TypeFree
	if strings.TrimSpace(req.PlanType) != "" {
		parsed, ok := plandomain.ParseType(req.PlanType)
		if !ok {
			return domain.Tenant{}, domain.ErrInvalidPlan
		}
		planType = parsed
	}

	baseSlug := slug.Make(name)
	if baseSlug == "" {
		return domain.Tenant{}, domain.ErrInvalidName
	}

	now := s.clock.Now().UTC()
	tenant := domain.Tenant{
		ID:                 s.genID.Generate(),
		Name:               name,
		Slug:               baseSlug,
		PlanType:           planType,
		SubscriptionStatus: plandomain.StatusNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := s.repo.Insert(ctx, s.db, &tenant)
	if db.IsDuplicateKeyErr(err) {
		// Slug collision: disambiguate with the id suffix once.
		tenant.Slug = fmt.Sprintf("%s-%s", baseSlug, tenant.ID.Base36())
		err = s.repo.Insert(ctx, s.db, &tenant)
		if db.IsDuplicateKeyErr(err) {
			return domain.Tenant{}, domain.ErrSlugTaken
		}
	}
	if err != nil {
		return domain.Tenant{}, err
	}

	s.log.Info("tenant created",
		zap.String("tenant_id", tenant.ID.String()),
		zap.String("plan_type", string(tenant.PlanType)),
	)
	return tenant, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Tenant, error) {
	if id <= 0 {
		return domain.Tenant{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Tenant{}, err
	}
	if item == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Exists(ctx context.Context, id snowflake.ID) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	return s.repo.Exists(ctx, s.db, id)
}

func (s *Service) UpdateSubscription(ctx context.Context, req domain.UpdateSubscriptionRequest) (domain.Tenant, error) {
	current, err := s.Get(ctx, req.TenantID)
	if err != nil {
		return domain.Tenant{}, err
	}

	updated := current
	if strings.TrimSpace(req.PlanType) != "" {
		planType, ok := plandomain.ParseType(req.PlanType)
		if !ok {
			return domain.Tenant{}, domain.ErrInvalidPlan
		}
		updated.PlanType = planType
	}
	if strings.TrimSpace(req.Status) != "" {
		status, ok := plandomain.ParseStatus(req.Status)
		if !ok {
			return domain.Tenant{}, domain.ErrInvalidStatus
		}
		updated.SubscriptionStatus = status
	}
	if req.BillingPeriodEnd != nil {
		end := req.BillingPeriodEnd.UTC()
		updated.BillingPeriodEnd = &end
	}
	updated.UpdatedAt = s.clock.Now().UTC()

	ok, err := s.repo.UpdateSubscription(ctx, s.db, &updated)
	if err != nil {
		return domain.Tenant{}, err
	}
	if !ok {
		return domain.Tenant{}, domain.ErrNotFound
	}

	if updated.PlanType != current.PlanType || updated.SubscriptionStatus != current.SubscriptionStatus {
		s.log.Info("tenant subscription changed",
			zap.String("tenant_id", updated.ID.String()),
			zap.String("from_plan", string(current.PlanType)),
			zap.String("to_plan", string(updated.PlanType)),
			zap.String("from_status", string(current.SubscriptionStatus)),
			zap.String("to_status", string(updated.SubscriptionStatus)),
		)
	}
	return updated, nil
}
