// Package repository provides a generic repository whose every statement is
// constrained to a single tenant.
package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/pkg/db/option"
	"github.com/smallbiznis/gapline/pkg/db/pagination"
	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not_found")
	ErrUnknownColumn = errors.New("unknown_column")
)

// protectedColumns can never be written through Update.
var protectedColumns = []string{"id", "tenant_id", "created_at"}

type Scoped[T any, P Entity[T]] struct {
	db       *gorm.DB
	genID    *snowflake.Node
	tenantID snowflake.ID
}

func NewScoped[T any, P Entity[T]](db *gorm.DB, genID *snowflake.Node, tenantID snowflake.ID) *Scoped[T, P] {
	return &Scoped[T, P]{db: db, genID: genID, tenantID: tenantID}
}

// WithTx rebinds the repository to tx, keeping the tenant.
func (r *Scoped[T, P]) WithTx(tx *gorm.DB) *Scoped[T, P] {
	return &Scoped[T, P]{db: tx, genID: r.genID, tenantID: r.tenantID}
}

func (r *Scoped[T, P]) TenantID() snowflake.ID {
	return r.tenantID
}

// scope is the single place the tenant predicate is attached.
func (r *Scoped[T, P]) scope(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(new(T)).Where("tenant_id = ?", r.tenantID)
}

func (r *Scoped[T, P]) Find(ctx context.Context, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	stmt := r.scope(ctx)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	if err := stmt.Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// FindOne returns nil when no row matches.
func (r *Scoped[T, P]) FindOne(ctx context.Context, opts ...option.QueryOption) (*T, error) {
	var result T
	stmt := r.scope(ctx)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	err := stmt.Limit(1).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

// Get returns nil when id is absent or owned by another tenant.
func (r *Scoped[T, P]) Get(ctx context.Context, id snowflake.ID) (*T, error) {
	return r.FindOne(ctx, option.WithWhere("id", id))
}

// GetMany resolves ids in one query; ids that are absent or foreign are left out of the map.
func (r *Scoped[T, P]) GetMany(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]*T, error) {
	return r.GetManyBy(ctx, "id", ids)
}

// GetManyBy is GetMany keyed by an arbitrary id column, e.g. account_id.
func (r *Scoped[T, P]) GetManyBy(ctx context.Context, column string, ids []snowflake.ID) (map[snowflake.ID]*T, error) {
	out := make(map[snowflake.ID]*T, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}

	var rows []*T
	if err := r.scope(ctx).Where(column+" IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[keyOf[T, P](P(row), column)] = row
	}
	return out, nil
}

// Create stamps the bound tenant over whatever the payload carries.
func (r *Scoped[T, P]) Create(ctx context.Context, entity P) error {
	r.stamp(entity, time.Now().UTC())
	return r.db.WithContext(ctx).Create(entity).Error
}

func (r *Scoped[T, P]) BatchCreate(ctx context.Context, entities []P) error {
	if len(entities) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, entity := range entities {
		r.stamp(entity, now)
	}
	return r.db.WithContext(ctx).Create(entities).Error
}

// Update writes fields to the row matching id and the tenant in one statement. Keys
// may be column or field names; both spellings of a protected column are dropped.
func (r *Scoped[T, P]) Update(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	values, err := r.columns(fields)
	if err != nil {
		return err
	}
	values["updated_at"] = time.Now().UTC()

	res := r.scope(ctx).Where("id = ?", id).Omit(protectedColumns...).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// columns resolves update keys to column names and drops protected ones.
func (r *Scoped[T, P]) columns(fields map[string]any) (map[string]any, error) {
	stmt := &gorm.Statement{DB: r.db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, err
	}
	values := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		field := stmt.Schema.LookUpField(key)
		if field == nil || field.DBName == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, key)
		}
		if slices.Contains(protectedColumns, field.DBName) {
			continue
		}
		values[field.DBName] = value
	}
	return values, nil
}

func (r *Scoped[T, P]) Delete(ctx context.Context, id snowflake.ID) error {
	res := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", r.tenantID, id).
		Delete(new(T))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Scoped[T, P]) Count(ctx context.Context, opts ...option.QueryOption) (int64, error) {
	var count int64
	stmt := r.scope(ctx)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	if err := stmt.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Page returns one page plus the total under the same predicate and filters.
func (r *Scoped[T, P]) Page(ctx context.Context, req pagination.PageRequest, order string, filters ...option.QueryOption) ([]*T, int64, error) {
	total, err := r.Count(ctx, filters...)
	if err != nil {
		return nil, 0, err
	}

	opts := append([]option.QueryOption{}, filters...)
	opts = append(opts, option.QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Order(order)
	}), option.WithPage(req))

	items, err := r.Find(ctx, opts...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Scoped[T, P]) stamp(entity P, now time.Time) {
	base := entity.Base()
	base.TenantID = r.tenantID
	if base.ID == 0 && r.genID != nil {
		base.ID = r.genID.Generate()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// keyOf reads the map key for GetManyBy. Rows keyed by something other than
// their own id implement Keyed.
func keyOf[T any, P Entity[T]](row P, column string) snowflake.ID {
	if column != "id" {
		if keyed, ok := any(row).(Keyed); ok {
			return keyed.KeyFor(column)
		}
	}
	return row.Base().ID
}

// Keyed exposes secondary id columns for batch lookups.
type Keyed interface {
	KeyFor(column string) snowflake.ID
}

func uniqueIDs(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
