package logger

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

type GormLoggerConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{Level: gormlogger.Warn, SlowThreshold: 200 * time.Millisecond, IgnoreRecordNotFound: true}
}

// GormLogger writes GORM statements to zap with the request's tenant and trace fields.
// Bound parameters are never logged.
type GormLogger struct {
	base *zap.Logger
	cfg  GormLoggerConfig
}

func NewGormLogger(base *zap.Logger, cfg GormLoggerConfig) *GormLogger {
	if base == nil {
		base = zap.L()
	}
	return &GormLogger{base: base.Named("gorm"), cfg: cfg}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := &GormLogger{base: l.base, cfg: l.cfg}
	next.cfg.Level = level
	return next
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, msg, data)
}

var gormToZap = map[gormlogger.LogLevel]zapcore.Level{
	gormlogger.Info:  zapcore.InfoLevel,
	gormlogger.Warn:  zapcore.WarnLevel,
	gormlogger.Error: zapcore.ErrorLevel,
}

func (l *GormLogger) message(ctx context.Context, level gormlogger.LogLevel, msg string, data []interface{}) {
	if l.cfg.Level < level {
		return
	}
	ce := WithContext(ctx, l.base).Check(gormToZap[level], msg)
	if ce == nil {
		return
	}
	if len(data) > 0 {
		ce.Write(zap.Any("data", data))
		return
	}
	ce.Write()
}

// Trace reports failed statements at error and slow ones at warn. Routine statements
// are written at debug, and only when GORM runs at Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	level, ok := l.traceLevel(elapsed, err)
	if !ok {
		return
	}
	if level != zapcore.ErrorLevel {
		err = nil
	}
	l.logQuery(ctx, fc, elapsed, err, level)
}

func (l *GormLogger) traceLevel(elapsed time.Duration, err error) (zapcore.Level, bool) {
	failed := err != nil && !(l.cfg.IgnoreRecordNotFound && errors.Is(err, gormlogger.ErrRecordNotFound))
	slow := l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold
	switch {
	case l.cfg.Level <= gormlogger.Silent:
		return 0, false
	case failed && l.cfg.Level >= gormlogger.Error:
		return zapcore.ErrorLevel, true
	case slow && l.cfg.Level >= gormlogger.Warn:
		return zapcore.WarnLevel, true
	case l.cfg.Level >= gormlogger.Info:
		return zapcore.DebugLevel, true
	default:
		return 0, false
	}
}

// ParamsFilter drops bound values so the logged SQL keeps only placeholders.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) logQuery(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, level zapcore.Level) {
	sql, rows := fc()
	sql = strings.TrimSpace(sql)
	fields := []zap.Field{
		zap.String("sql", sql),
		zap.String("operation", operationFromSQL(sql)),
		zap.String("table", tableFromSQL(sql)),
		zap.Bool("tenant_filtered", hasTenantPredicate(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if ce := WithContext(ctx, l.base).Check(level, "gorm.query"); ce != nil {
		ce.Write(fields...)
	}
}

func operationFromSQL(sql string) string {
	tokens := strings.Fields(strings.ToUpper(sql))
	for _, token := range tokens {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE", "MERGE":
			return token
		case "WITH":
			continue
		}
	}
	return "UNKNOWN"
}

var tablePattern = regexp.MustCompile(`(?i)\b(?:from|into|update|join)\s+["` + "`" + `]?([a-z_][a-z0-9_]*)`)

func tableFromSQL(sql string) string {
	match := tablePattern.FindStringSubmatch(sql)
	if len(match) < 2 {
		return ""
	}
	return strings.ToLower(match[1])
}

func hasTenantPredicate(sql string) bool {
	return strings.Contains(strings.ToLower(sql), "tenant_id")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
