package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationAndTableFromSQL(t *testing.T) {
	cases := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT * FROM "accounts" WHERE tenant_id = $1`, "SELECT", "accounts"},
		{`INSERT INTO credit_transactions (id) VALUES ($1)`, "INSERT", "credit_transactions"},
		{`UPDATE credit_ledgers SET credits_remaining = credits_remaining - $1`, "UPDATE", "credit_ledgers"},
		{`WITH x AS (SELECT 1) DELETE FROM tasks`, "SELECT", "tasks"},
		{``, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.operation, operationFromSQL(tc.sql), tc.sql)
		assert.Equal(t, tc.table, tableFromSQL(tc.sql), tc.sql)
	}
}

func TestGormLoggerTraceLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        10 * time.Millisecond,
		IgnoreRecordNotFound: true,
	})

	query := func() (string, int64) { return `SELECT * FROM accounts WHERE tenant_id = $1`, 1 }

	l.Trace(context.Background(), time.Now(), query, nil)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), query, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now(), query, errors.New("boom"))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "accounts", entry.ContextMap()["table"])
	assert.Equal(t, true, entry.ContextMap()["tenant_filtered"])

	l.Trace(context.Background(), time.Now().Add(-time.Second), query, nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[1].Level)
}

func TestGormLoggerParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(zap.NewNop(), DefaultGormLoggerConfig())
	sql, params := l.ParamsFilter(context.Background(), "SELECT 1 WHERE id = ?", 42)
	assert.Equal(t, "SELECT 1 WHERE id = ?", sql)
	assert.Nil(t, params)
}
