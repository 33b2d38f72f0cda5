package tenantstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/gapline/internal/tenantstore/domain"
	pkgdb "github.com/smallbiznis/gapline/pkg/db"
	"github.com/smallbiznis/gapline/pkg/db/option"
	"github.com/smallbiznis/gapline/pkg/db/pagination"
	"gorm.io/gorm"
)

var accountSortColumns = map[string]struct{}{
	"name":       {},
	"created_at": {},
	"status":     {},
}

// ListAccounts pages accounts newest first using an opaque cursor.
func (s *Store) ListAccounts(ctx context.Context, filter domain.AccountFilter, page pagination.Pagination) ([]*domain.Account, *pagination.PageInfo, error) {
	opts := []option.QueryOption{}
	if status := strings.TrimSpace(filter.Status); status != "" {
		opts = append(opts, option.WithWhere("status", status))
	}
	if segment := strings.TrimSpace(filter.Segment); segment != "" {
		opts = append(opts, option.WithWhere("segment", segment))
	}
	if filter.TerritoryManagerID != nil {
		opts = append(opts, option.WithWhere("territory_manager_id", *filter.TerritoryManagerID))
	}
	cursor, err := option.ApplyPagination(page)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts,
		option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB { return db.Order("id desc") }),
		cursor,
	)

	items, err := s.Accounts().List(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	size := page.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}
	if size > pagination.MaxPageSize {
		size = pagination.MaxPageSize
	}
	info := pagination.BuildCursorPageInfo(items, size, func(a *domain.Account) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        a.ID.String(),
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > size {
		items = items[:size]
	}
	return items, info, nil
}

// SortedAccounts lists every account ordered by an allowlisted column.
func (s *Store) SortedAccounts(ctx context.Context, sortBy string, desc bool) ([]*domain.Account, error) {
	return s.Accounts().List(ctx, option.WithSortBy(sortBy, desc, accountSortColumns, "created_at desc, id desc"))
}

// AccountMetricsByAccountIDs fetches metrics for many accounts in one query, keyed by
// account id. Accounts without metrics or owned by another tenant are absent.
func (s *Store) AccountMetricsByAccountIDs(ctx context.Context, accountIDs []snowflake.ID) (map[snowflake.ID]*domain.AccountMetric, error) {
	return s.AccountMetrics().GetManyBy(ctx, "account_id", accountIDs)
}

func (s *Store) UpsertAccountMetric(ctx context.Context, accountID snowflake.ID, metric domain.AccountMetric) (row *domain.AccountMetric, err error) {
	fields := map[string]any{
		"annual_revenue":       metric.AnnualRevenue,
		"estimated_potential":  metric.EstimatedPotential,
		"gap_revenue":          metric.GapRevenue,
		"opportunity_score":    metric.OpportunityScore,
		"category_penetration": metric.CategoryPenetration,
		"last_order_at":        metric.LastOrderAt,
	}
	err = s.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.Accounts().Get(ctx, accountID); err != nil {
			return err
		}
		row, err = upsert(ctx, tx.AccountMetrics(), option.WithWhere("account_id", accountID), fields, func() *domain.AccountMetric {
			created := metric
			created.ID = 0
			created.AccountID = accountID
			return &created
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

const taskOrder = "created_at desc, id desc"

// ListTasksPage returns one page of tasks and the total matching the filter.
func (s *Store) ListTasksPage(ctx context.Context, filter domain.TaskFilter, req pagination.PageRequest) (pagination.Page[*domain.Task], error) {
	var filters []option.QueryOption
	if status := strings.TrimSpace(filter.Status); status != "" {
		filters = append(filters, option.WithWhere("status", status))
	}
	if filter.AccountID != nil {
		filters = append(filters, option.WithWhere("account_id", *filter.AccountID))
	}
	return s.Tasks().Page(ctx, req, taskOrder, filters...)
}

func (s *Store) GetSetting(ctx context.Context, key string) (*domain.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrInvalidKey
	}
	return s.Settings().FindOne(ctx, option.WithWhere("key", key))
}

// UpsertSetting keeps one row per key per tenant.
func (s *Store) UpsertSetting(ctx context.Context, key, value string) (*domain.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, domain.ErrInvalidKey
	}
	return upsert(ctx, s.Settings(), option.WithWhere("key", key), map[string]any{"value": value}, func() *domain.Setting {
		return &domain.Setting{Key: key, Value: value}
	})
}

func (s *Store) GetScoringWeights(ctx context.Context) (*domain.ScoringWeights, error) {
	return s.ScoringWeights().FindOne(ctx)
}

// UpsertScoringWeights keeps a single weights row per tenant.
func (s *Store) UpsertScoringWeights(ctx context.Context, in domain.WeightsInput) (*domain.ScoringWeights, error) {
	if !in.Valid() {
		return nil, domain.ErrInvalidWeights
	}
	fields := map[string]any{
		"revenue_weight":     in.RevenueWeight,
		"gap_weight":         in.GapWeight,
		"penetration_weight": in.PenetrationWeight,
		"recency_weight":     in.RecencyWeight,
	}
	noFilter := option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB { return db })
	return upsert(ctx, s.ScoringWeights(), noFilter, fields, func() *domain.ScoringWeights {
		return &domain.ScoringWeights{
			RevenueWeight:     in.RevenueWeight,
			GapWeight:         in.GapWeight,
			PenetrationWeight: in.PenetrationWeight,
			RecencyWeight:     in.RecencyWeight,
		}
	})
}

// EnrollAccount adds an owned account to the revenue-share program.
func (s *Store) EnrollAccount(ctx context.Context, accountID snowflake.ID, tierID *snowflake.ID) (*domain.ProgramAccount, error) {
	row := &domain.ProgramAccount{
		AccountID:  accountID,
		TierID:     tierID,
		Status:     "active",
		EnrolledAt: time.Now().UTC(),
	}
	err := s.Transaction(ctx, func(tx *Store) error {
		if _, err := tx.Accounts().Get(ctx, accountID); err != nil {
			return err
		}
		if tierID != nil {
			if _, err := tx.RevShareTiers().Get(ctx, *tierID); err != nil {
				return err
			}
		}
		return tx.ProgramAccounts().Create(ctx, row)
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyEnrolled
		}
		return nil, err
	}
	return row, nil
}

func (s *Store) ProgramAccountsByAccountIDs(ctx context.Context, accountIDs []snowflake.ID) (map[snowflake.ID]*domain.ProgramAccount, error) {
	return s.ProgramAccounts().GetManyBy(ctx, "account_id", accountIDs)
}

// CreateCustomCategory derives the slug from name. Slugs are unique per tenant.
func (s *Store) CreateCustomCategory(ctx context.Context, name, color string) (*domain.CustomCategory, error) {
	name = strings.TrimSpace(name)
	categorySlug := slug.Make(name)
	if categorySlug == "" {
		return nil, domain.ErrInvalidName
	}
	row := &domain.CustomCategory{Name: name, Slug: categorySlug, Color: strings.TrimSpace(color)}
	if err := s.CustomCategories().Create(ctx, row); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCategoryExists
		}
		return nil, err
	}
	return row, nil
}

func (s *Store) CountPlaybooks(ctx context.Context) (int64, error) {
	return s.Playbooks().Count(ctx)
}

func (s *Store) CountSegmentProfiles(ctx context.Context) (int64, error) {
	return s.SegmentProfiles().Count(ctx)
}

func (s *Store) CountProgramAccounts(ctx context.Context) (int64, error) {
	return s.ProgramAccounts().Count(ctx)
}

func (s *Store) CountAccounts(ctx context.Context) (int64, error) {
	return s.Accounts().Count(ctx)
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.Users().Count(ctx)
}

// IsNotFound reports whether err is the store's not-found result.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
