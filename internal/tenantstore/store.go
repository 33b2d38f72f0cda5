// Package tenantstore is the only data access path for tenant-owned rows. A Store is
// bound to one tenant and every statement it issues carries that tenant's predicate.
package tenantstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/tenantstore/domain"
	pkgdb "github.com/smallbiznis/gapline/pkg/db"
	"github.com/smallbiznis/gapline/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TenantChecker confirms a tenant row exists.
type TenantChecker interface {
	Exists(ctx context.Context, id snowflake.ID) (bool, error)
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Tenants TenantChecker
}

type Factory struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	tenants TenantChecker
}

func NewFactory(p Params) *Factory {
	return &Factory{
		db:      p.DB,
		log:     p.Log.Named("tenantstore"),
		genID:   p.GenID,
		tenants: p.Tenants,
	}
}

// For binds a store to tenantID. Validation is deferred to the first operation.
func (f *Factory) For(tenantID snowflake.ID) *Store {
	return &Store{
		db:       f.db,
		log:      f.log,
		genID:    f.genID,
		tenants:  f.tenants,
		tenantID: tenantID,
		check:    &validation{},
	}
}

type validation struct {
	mu sync.Mutex
	ok bool
}

type Store struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	tenants  TenantChecker
	tenantID snowflake.ID
	check    *validation
	inTx     bool
}

func (s *Store) TenantID() snowflake.ID {
	return s.tenantID
}

// ensure fails every operation on a store bound to a malformed or unknown tenant,
// so a wrong id never reads as an empty tenant.
func (s *Store) ensure(ctx context.Context) error {
	if s.tenantID <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidTenantID, s.tenantID)
	}

	s.check.mu.Lock()
	defer s.check.mu.Unlock()
	if s.check.ok {
		return nil
	}

	exists, err := s.tenants.Exists(ctx, s.tenantID)
	if err != nil {
		return fmt.Errorf("validate tenant: %w", err)
	}
	if !exists {
		s.log.Error("store bound to unknown tenant", zap.String("tenant_id", s.tenantID.String()))
		return fmt.Errorf("%w: %s", domain.ErrTenantNotFound, s.tenantID)
	}
	s.check.ok = true
	return nil
}

// Validate fails like any store operation would for a malformed or unknown tenant.
// Repositories outside the store that write tenant rows call it first.
func (s *Store) Validate(ctx context.Context) error {
	return s.ensure(ctx)
}

// Transaction runs fn with a store bound to the same tenant on one transaction.
// On postgres the transaction also carries the row-level security tenant setting.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if pkgdb.IsPostgres(tx) {
			if err := rls.WithTenant(tx, int64(s.tenantID)); err != nil {
				return err
			}
		}
		txStore := *s
		txStore.db = tx
		txStore.inTx = true
		return fn(&txStore)
	})
}

// session runs fn where the tenant setting is visible to every statement. On postgres
// a store outside a transaction opens one, since the setting is transaction-local.
func (s *Store) session(ctx context.Context, fn func(s *Store) error) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	if s.inTx || !pkgdb.IsPostgres(s.db) {
		return fn(s)
	}
	return s.Transaction(ctx, fn)
}

const insertSavePoint = "tenantstore_insert"

// isolate runs fn behind a savepoint when the store is on a transaction, so a failed
// statement leaves the transaction usable on postgres.
func (s *Store) isolate(ctx context.Context, fn func() error) error {
	if !s.inTx {
		return fn()
	}
	db := s.db.WithContext(ctx)
	if err := db.SavePoint(insertSavePoint).Error; err != nil {
		return err
	}
	if err := fn(); err != nil {
		if rbErr := db.RollbackTo(insertSavePoint).Error; rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %w", rbErr)
		}
		return err
	}
	return nil
}
