package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/clock"
	"github.com/smallbiznis/gapline/internal/credit/domain"
	"github.com/smallbiznis/gapline/internal/observability/metrics"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	pkgdb "github.com/smallbiznis/gapline/pkg/db"
	"github.com/smallbiznis/gapline/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	recentWindow         = 25
	recentLimit          = 20
	maxReconcileAttempts = 3
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Plans    plandomain.Registry
	Stores   *tenantstore.Factory
	Repo     domain.Repository
	Metrics  *metrics.Metrics         `optional:"true"`
	Metering *metrics.MeteringMetrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	plans    plandomain.Registry
	stores   *tenantstore.Factory
	repo     domain.Repository
	metrics  *metrics.Metrics
	metering *metrics.MeteringMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("credit.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		plans:    p.Plans,
		stores:   p.Stores,
		repo:     p.Repo,
		metrics:  p.Metrics,
		metering: p.Metering,
	}
}

func (s *Service) CheckCredits(ctx context.Context, tenantID snowflake.ID, planType string, action string) (domain.CheckResult, error) {
	cost, plan, err := s.prepare(ctx, tenantID, planType, action)
	if err != nil {
		return domain.CheckResult{}, err
	}

	now := s.clock.Now().UTC()
	period := domain.BillingPeriod(now)
	if plan.UnlimitedCredits() {
		return domain.CheckResult{
			Allowed:          true,
			Unlimited:        true,
			CreditsRemaining: plandomain.Unlimited,
			CreditsRequired:  cost.Cost,
			TotalAllowance:   plandomain.Unlimited,
			BillingPeriod:    period,
			Action:           cost.Action,
		}, nil
	}

	var ledger *domain.CreditLedger
	err = s.inTenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		var err error
		ledger, err = s.ledger(ctx, tx, tenantID, plan, period, now)
		return err
	})
	if err != nil {
		s.metering.IncLedgerError("check", err)
		return domain.CheckResult{}, fmt.Errorf("check credits: %w", err)
	}

	return domain.CheckResult{
		Allowed:          ledger.CreditsRemaining >= cost.Cost,
		CreditsRemaining: ledger.CreditsRemaining,
		CreditsRequired:  cost.Cost,
		TotalAllowance:   ledger.TotalAllowance,
		BillingPeriod:    period,
		Action:           cost.Action,
	}, nil
}

// DeductCredits charges a completed AI action. Running out of credits, including
// losing a race for the last ones, is reported in the result with a nil error.
func (s *Service) DeductCredits(ctx context.Context, tenantID snowflake.ID, planType string, action string, meta *domain.Metadata) (domain.DeductResult, error) {
	start := time.Now()
	cost, plan, err := s.prepare(ctx, tenantID, planType, action)
	if err != nil {
		return domain.DeductResult{}, err
	}

	now := s.clock.Now().UTC()
	period := domain.BillingPeriod(now)
	record := s.newTransaction(tenantID, cost, period, meta, now)

	var (
		charged   bool
		remaining int
	)
	err = s.inTenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		if _, err := s.ledger(ctx, tx, tenantID, plan, period, now); err != nil {
			return err
		}

		if plan.UnlimitedCredits() {
			if err := s.repo.AddUsed(ctx, tx, tenantID, period, cost.Cost, now); err != nil {
				return err
			}
			charged = true
			remaining = plandomain.Unlimited
			return s.repo.InsertTransaction(ctx, tx, record)
		}

		ok, err := s.repo.Deduct(ctx, tx, tenantID, period, cost.Cost, now)
		if err != nil {
			return err
		}
		if ok {
			if err := s.repo.InsertTransaction(ctx, tx, record); err != nil {
				return err
			}
		}
		current, err := s.repo.FindLedger(ctx, tx, tenantID, period)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrLedgerMissing
		}
		charged = ok
		remaining = current.CreditsRemaining
		return nil
	})
	if err != nil {
		s.metering.IncLedgerError("deduct", err)
		s.metering.ObserveDeduct(string(cost.Action), metrics.DeductOutcomeError, 0, time.Since(start))
		s.metrics.RecordAIAction(ctx, string(plan.Type), string(cost.Action), metrics.DeductOutcomeError)
		s.log.Error("credit deduction failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("action", string(cost.Action)),
			zap.Error(err),
		)
		return domain.DeductResult{}, fmt.Errorf("deduct credits: %w", err)
	}

	outcome := metrics.DeductOutcomeCharged
	switch {
	case plan.UnlimitedCredits():
		outcome = metrics.DeductOutcomeUnlimited
	case !charged:
		outcome = metrics.DeductOutcomeInsufficient
	}
	credits := cost.Cost
	if !charged {
		credits = 0
	}
	s.metering.ObserveDeduct(string(cost.Action), outcome, credits, time.Since(start))
	s.metrics.RecordAIAction(ctx, string(plan.Type), string(cost.Action), outcome)

	if !charged {
		s.log.Info("insufficient credits",
			zap.String("tenant_id", tenantID.String()),
			zap.String("action", string(cost.Action)),
			zap.Int("required", cost.Cost),
			zap.Int("remaining", remaining),
		)
		return domain.DeductResult{
			Success:          false,
			CreditsRemaining: remaining,
			Error:            domain.InsufficientMessage(cost.Cost, remaining),
		}, nil
	}
	return domain.DeductResult{
		Success:          true,
		CreditsRemaining: remaining,
		CreditsCharged:   cost.Cost,
	}, nil
}

func (s *Service) GetCreditUsage(ctx context.Context, tenantID snowflake.ID, planType string) (domain.Usage, error) {
	plan, err := s.resolvePlan(planType)
	if err != nil {
		return domain.Usage{}, err
	}
	if err := s.stores.For(tenantID).Validate(ctx); err != nil {
		return domain.Usage{}, err
	}

	now := s.clock.Now().UTC()
	period := domain.BillingPeriod(now)

	var (
		ledger *domain.CreditLedger
		totals []domain.ActionTotal
		recent []domain.CreditTransaction
	)
	err = s.inTenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		var err error
		if ledger, err = s.ledger(ctx, tx, tenantID, plan, period, now); err != nil {
			return err
		}
		if totals, err = s.repo.TotalsByAction(ctx, tx, tenantID, period); err != nil {
			return err
		}
		recent, err = s.repo.ListTransactions(ctx, tx, tenantID, period, recentWindow)
		return err
	})
	if err != nil {
		s.metering.IncLedgerError("usage", err)
		return domain.Usage{}, fmt.Errorf("credit usage: %w", err)
	}

	unlimited := plan.UnlimitedCredits()
	usage := domain.Usage{
		BillingPeriod:      period,
		TotalAllowance:     plan.CreditAllowance,
		CreditsUsed:        ledger.CreditsUsed,
		CreditsRemaining:   ledger.CreditsRemaining,
		Unlimited:          unlimited,
		PercentUsed:        domain.PercentUsed(ledger.CreditsUsed, plan.CreditAllowance),
		ActionBreakdown:    make(map[domain.ActionType]domain.ActionUsage, len(totals)),
		RecentTransactions: recent,
		ActionCosts:        domain.ActionCosts(),
	}
	if unlimited {
		usage.CreditsRemaining = plandomain.Unlimited
	}
	for _, total := range totals {
		label := string(total.ActionType)
		if cost, ok := domain.LookupAction(string(total.ActionType)); ok {
			label = cost.Label
		}
		usage.ActionBreakdown[total.ActionType] = domain.ActionUsage{
			Label:       label,
			Count:       total.Count,
			CreditsUsed: total.Credits,
		}
	}
	if len(usage.RecentTransactions) > recentLimit {
		usage.RecentTransactions = usage.RecentTransactions[:recentLimit]
	}
	if usage.RecentTransactions == nil {
		usage.RecentTransactions = []domain.CreditTransaction{}
	}
	return usage, nil
}

// ledger gets or creates the period's ledger, then reconciles it with the plan's
// current allowance. Reconciliation swaps balances only if no one changed them
// since the read; a lost swap re-reads and tries again.
func (s *Service) ledger(ctx context.Context, db *gorm.DB, tenantID snowflake.ID, plan plandomain.Plan, period string, now time.Time) (*domain.CreditLedger, error) {
	seed := &domain.CreditLedger{
		ID:               s.genID.Generate(),
		TenantID:         tenantID,
		BillingPeriod:    period,
		TotalAllowance:   plan.CreditAllowance,
		CreditsRemaining: plan.CreditAllowance,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := s.repo.InsertLedgerIfAbsent(ctx, db, seed)
	if err != nil {
		return nil, err
	}
	if created {
		s.metering.IncLedgerCreated()
		s.log.Info("credit ledger opened",
			zap.String("tenant_id", tenantID.String()),
			zap.String("billing_period", period),
			zap.Int("allowance", plan.CreditAllowance),
		)
	}

	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
		current, err := s.repo.FindLedger(ctx, db, tenantID, period)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrLedgerMissing
		}

		next, direction := domain.Reconcile(*current, plan.CreditAllowance)
		if direction == domain.ReconcileNone {
			return current, nil
		}
		swapped, err := s.repo.SwapLedger(ctx, db, *current, next, now)
		if err != nil {
			return nil, err
		}
		if swapped {
			s.metering.IncReconciliation(direction)
			s.log.Info("credit ledger reconciled",
				zap.String("tenant_id", tenantID.String()),
				zap.String("billing_period", period),
				zap.String("direction", direction),
				zap.Int("from_allowance", current.TotalAllowance),
				zap.Int("to_allowance", next.TotalAllowance),
				zap.Int("credits_remaining", next.CreditsRemaining),
			)
			next.UpdatedAt = now
			return &next, nil
		}
	}
	return nil, domain.ErrLedgerContention
}

func (s *Service) inTenantTx(ctx context.Context, tenantID snowflake.ID, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if pkgdb.IsPostgres(tx) {
			if err := rls.WithTenant(tx, int64(tenantID)); err != nil {
				return err
			}
		}
		return fn(tx)
	})
}

func (s *Service) prepare(ctx context.Context, tenantID snowflake.ID, planType string, action string) (domain.ActionCost, plandomain.Plan, error) {
	cost, ok := domain.LookupAction(action)
	if !ok {
		return domain.ActionCost{}, plandomain.Plan{}, fmt.Errorf("%w: %s", domain.ErrInvalidAction, action)
	}
	plan, err := s.resolvePlan(planType)
	if err != nil {
		return domain.ActionCost{}, plandomain.Plan{}, err
	}
	if err := s.stores.For(tenantID).Validate(ctx); err != nil {
		return domain.ActionCost{}, plandomain.Plan{}, err
	}
	return cost, plan, nil
}

func (s *Service) resolvePlan(planType string) (plandomain.Plan, error) {
	parsed, ok := plandomain.ParseType(planType)
	if !ok {
		return plandomain.Plan{}, fmt.Errorf("%w: %q", plandomain.ErrUnknownPlan, planType)
	}
	return s.plans.Plan(parsed)
}

func (s *Service) newTransaction(tenantID snowflake.ID, cost domain.ActionCost, period string, meta *domain.Metadata, now time.Time) *domain.CreditTransaction {
	record := &domain.CreditTransaction{
		ID:             s.genID.Generate(),
		TenantID:       tenantID,
		ActionType:     cost.Action,
		CreditsCharged: cost.Cost,
		BillingPeriod:  period,
		CreatedAt:      now,
	}
	if meta == nil {
		return record
	}
	record.AccountID = meta.AccountID
	if desc := strings.TrimSpace(meta.Description); desc != "" {
		record.Description = &desc
	}
	if len(meta.Attributes) > 0 {
		record.Metadata = datatypes.JSONMap(meta.Attributes)
	}
	return record
}
