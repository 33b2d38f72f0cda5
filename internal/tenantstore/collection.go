package tenantstore

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/tenantstore/domain"
	pkgdb "github.com/smallbiznis/gapline/pkg/db"
	"github.com/smallbiznis/gapline/pkg/db/option"
	"github.com/smallbiznis/gapline/pkg/db/pagination"
	"github.com/smallbiznis/gapline/pkg/repository"
)

// Collection is the CRUD surface of one entity type under the store's tenant.
type Collection[T any, P repository.Entity[T]] struct {
	store *Store
	repo  *repository.Scoped[T, P]
}

func collection[T any, P repository.Entity[T]](s *Store) Collection[T, P] {
	return Collection[T, P]{
		store: s,
		repo:  repository.NewScoped[T, P](s.db, s.genID, s.tenantID),
	}
}

// run calls fn with the collection bound to the store's session.
func (c Collection[T, P]) run(ctx context.Context, fn func(c Collection[T, P]) error) error {
	return c.store.session(ctx, func(s *Store) error {
		if s == c.store {
			return fn(c)
		}
		return fn(collection[T, P](s))
	})
}

func (c Collection[T, P]) List(ctx context.Context, opts ...option.QueryOption) (items []*T, err error) {
	err = c.run(ctx, func(c Collection[T, P]) error {
		items, err = c.repo.Find(ctx, opts...)
		return err
	})
	return items, err
}

// Get returns ErrNotFound for absent rows and for rows of other tenants alike.
func (c Collection[T, P]) Get(ctx context.Context, id snowflake.ID) (item *T, err error) {
	err = c.run(ctx, func(c Collection[T, P]) error {
		item, err = c.repo.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

// FindOne returns ErrNotFound when nothing matches.
func (c Collection[T, P]) FindOne(ctx context.Context, opts ...option.QueryOption) (item *T, err error) {
	err = c.run(ctx, func(c Collection[T, P]) error {
		item, err = c.repo.FindOne(ctx, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (c Collection[T, P]) GetMany(ctx context.Context, ids []snowflake.ID) (items map[snowflake.ID]*T, err error) {
	err = c.run(ctx, func(c Collection[T, P]) error {
		items, err = c.repo.GetMany(ctx, ids)
		return err
	})
	return items, err
}

// GetManyBy keys rows by column, which must hold one row per id.
func (c Collection[T, P]) GetManyBy(ctx context.Context, column string, ids []snowflake.ID) (items map[snowflake.ID]*T, err error) {
	err = c.run(ctx, func(c Collection[T, P]) error {
		items, err = c.repo.GetManyBy(ctx, column, ids)
		return err
	})
	return items, err
}

func (c Collection[T, P]) Create(ctx context.Context, item P) error {
	return c.run(ctx, func(c Collection[T, P]) error {
		return c.repo.Create(ctx, item)
	})
}

func (c Collection[T, P]) CreateMany(ctx context.Context, items []P) error {
	return c.run(ctx, func(c Collection[T, P]) error {
		return c.repo.BatchCreate(ctx, items)
	})
}

// Update applies fields and returns the row as stored afterwards.
func (c Collection[T, P]) Update(ctx context.Context, id snowflake.ID, fields map[string]any) (item *T, err error) {
	err = c.run(ctx, func(c Collection[T, P]) error {
		if err := c.repo.Update(ctx, id, fields); err != nil {
			return err
		}
		item, err = c.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (c Collection[T, P]) Delete(ctx context.Context, id snowflake.ID) error {
	return c.run(ctx, func(c Collection[T, P]) error {
		return c.repo.Delete(ctx, id)
	})
}

func (c Collection[T, P]) Count(ctx context.Context, opts ...option.QueryOption) (count int64, err error) {
	err = c.run(ctx, func(c Collection[T, P]) error {
		count, err = c.repo.Count(ctx, opts...)
		return err
	})
	return count, err
}

func (c Collection[T, P]) Page(ctx context.Context, req pagination.PageRequest, order string, filters ...option.QueryOption) (pagination.Page[*T], error) {
	var (
		items []*T
		total int64
	)
	err := c.run(ctx, func(c Collection[T, P]) error {
		var err error
		items, total, err = c.repo.Page(ctx, req, order, filters...)
		return err
	})
	if err != nil {
		return pagination.Page[*T]{}, err
	}
	return pagination.NewPage(items, req, total), nil
}

// upsert updates the row matched by lookup, inserting build() when none exists. A
// unique violation on insert means a concurrent caller created the row first; the
// row is looked up again and updated once. A second conflict is returned. The insert
// sits behind a savepoint on a transaction so the retry can run after the violation.
func upsert[T any, P repository.Entity[T]](ctx context.Context, c Collection[T, P], lookup option.QueryOption, fields map[string]any, build func() P) (result *T, err error) {
	err = c.run(ctx, func(c Collection[T, P]) error {
		result, err = upsertIn(ctx, c, lookup, fields, build)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func upsertIn[T any, P repository.Entity[T]](ctx context.Context, c Collection[T, P], lookup option.QueryOption, fields map[string]any, build func() P) (*T, error) {
	existing, err := c.repo.FindOne(ctx, lookup)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return c.Update(ctx, P(existing).Base().ID, fields)
	}

	item := build()
	err = c.store.isolate(ctx, func() error {
		return c.repo.Create(ctx, item)
	})
	if err == nil {
		return (*T)(item), nil
	}
	if !pkgdb.IsDuplicateKeyErr(err) {
		return nil, err
	}

	existing, lookupErr := c.repo.FindOne(ctx, lookup)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing == nil {
		return nil, err
	}
	updated, updateErr := c.Update(ctx, P(existing).Base().ID, fields)
	if errors.Is(updateErr, domain.ErrNotFound) {
		return nil, err
	}
	return updated, updateErr
}
