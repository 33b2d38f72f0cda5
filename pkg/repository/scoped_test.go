package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gapline/internal/testutil"
	"github.com/smallbiznis/gapline/pkg/db/option"
	"github.com/smallbiznis/gapline/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type note struct {
	Model
	AccountID snowflake.ID `gorm:"index"`
	Body      string
}

func (n *note) KeyFor(column string) snowflake.ID {
	if column == "account_id" {
		return n.AccountID
	}
	return n.ID
}

const (
	tenantA snowflake.ID = 1
	tenantB snowflake.ID = 2
)

func setup(t *testing.T) (*Scoped[note, *note], *Scoped[note, *note]) {
	t.Helper()
	db := testutil.OpenDB(t, &note{})
	node := testutil.Node(t)
	return NewScoped[note](db, node, tenantA), NewScoped[note](db, node, tenantB)
}

func TestCreateStampsBoundTenant(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	n := &note{Model: Model{TenantID: tenantB}, Body: "hello"}
	require.NoError(t, a.Create(ctx, n))
	assert.Equal(t, tenantA, n.TenantID)
	assert.NotZero(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestForeignRowsResolveAsNotFound(t *testing.T) {
	a, b := setup(t)
	ctx := context.Background()

	n := &note{Body: "owned by a"}
	require.NoError(t, a.Create(ctx, n))

	got, err := b.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	list, err := b.Find(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, b.Update(ctx, n.ID, map[string]any{"body": "hijacked"}), ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, n.ID), ErrNotFound)

	got, err = a.Get(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "owned by a", got.Body)
}

func TestUpdateIgnoresProtectedColumns(t *testing.T) {
	a, b := setup(t)
	ctx := context.Background()

	n := &note{Body: "v1"}
	require.NoError(t, a.Create(ctx, n))
	createdAt := n.CreatedAt

	require.NoError(t, a.Update(ctx, n.ID, map[string]any{
		"body":      "v2",
		"tenant_id": tenantB,
		"id":        snowflake.ID(999),
	}))
	require.NoError(t, a.Update(ctx, n.ID, map[string]any{
		"Body":      "v3",
		"TenantID":  tenantB,
		"ID":        snowflake.ID(777),
		"CreatedAt": createdAt.AddDate(-1, 0, 0),
	}))

	got, err := a.Get(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v3", got.Body)
	assert.Equal(t, tenantA, got.TenantID)
	assert.WithinDuration(t, createdAt, got.CreatedAt, time.Second)

	for _, id := range []snowflake.ID{n.ID, 777, 999} {
		foreign, err := b.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, foreign)
	}
	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpdateRejectsUnknownColumns(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	n := &note{Body: "v1"}
	require.NoError(t, a.Create(ctx, n))

	err := a.Update(ctx, n.ID, map[string]any{"body": "v2", "owner": "someone"})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	got, err := a.Get(ctx, n.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v1", got.Body)
}

func TestGetManyReturnsOnlyResolvableIDs(t *testing.T) {
	a, b := setup(t)
	ctx := context.Background()

	mine := &note{AccountID: 10, Body: "mine"}
	theirs := &note{AccountID: 11, Body: "theirs"}
	require.NoError(t, a.Create(ctx, mine))
	require.NoError(t, b.Create(ctx, theirs))

	got, err := a.GetMany(ctx, []snowflake.ID{mine.ID, theirs.ID, 123456})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, mine.ID)

	byAccount, err := a.GetManyBy(ctx, "account_id", []snowflake.ID{10, 11, 10})
	require.NoError(t, err)
	assert.Len(t, byAccount, 1)
	assert.Equal(t, "mine", byAccount[10].Body)

	empty, err := a.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPageCountsUnderSamePredicate(t *testing.T) {
	a, b := setup(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, a.Create(ctx, &note{Body: "a"}))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Create(ctx, &note{Body: "b"}))
	}

	items, total, err := a.Page(ctx, pagination.PageRequest{Page: 2, PageSize: 2}, "id asc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 2)

	items, total, err = a.Page(ctx, pagination.PageRequest{Page: 3, PageSize: 2}, "id asc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 1)

	count, err := b.Count(ctx, option.WithWhere("body", "b"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestBatchCreateStampsEveryRow(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	rows := []*note{{Body: "x", Model: Model{TenantID: tenantB}}, {Body: "y"}}
	require.NoError(t, a.BatchCreate(ctx, rows))
	for _, row := range rows {
		assert.Equal(t, tenantA, row.TenantID)
	}
	count, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMutationsCarryTenantPredicate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB, DriverName: "postgres"}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	repo := NewScoped[note](db, nil, tenantA)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "notes" SET "body"=$1,"updated_at"=$2 WHERE tenant_id = $3 AND id = $4`)).
		WithArgs("v2", sqlmock.AnyArg(), tenantA, snowflake.ID(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "notes" WHERE tenant_id = $1 AND id = $2`)).
		WithArgs(tenantA, snowflake.ID(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.ErrorIs(t, repo.Update(context.Background(), 7, map[string]any{"body": "v2", "TenantID": tenantB}), ErrNotFound)
	assert.NoError(t, repo.Delete(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}
