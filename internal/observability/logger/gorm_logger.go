package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLoggerConfig configures the GORM zap logger.
type GormLoggerConfig struct {
	Level                gormlogger.LogLevel
	SlowThreshold        time.Duration
	IgnoreRecordNotFound bool
}

func DefaultGormLoggerConfig() GormLoggerConfig {
	return GormLoggerConfig{
		Level:                gormlogger.Warn,
		SlowThreshold:        200 * time.Millisecond,
		IgnoreRecordNotFound: true,
	}
}

// GormLogger routes GORM output through the request-scoped zap logger.
// Bound parameters are never logged; payment amounts and phone numbers stay
// out of the query log.
type GormLogger struct {
	level                gormlogger.LogLevel
	slowThreshold        time.Duration
	ignoreRecordNotFound bool
}

func NewGormLogger(cfg GormLoggerConfig) *GormLogger {
	return &GormLogger{
		level:                cfg.Level,
		slowThreshold:        cfg.SlowThreshold,
		ignoreRecordNotFound: cfg.IgnoreRecordNotFound,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) message(ctx context.Context, min gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < min {
		return
	}
	fields := []zap.Field{zap.String("component", "gorm")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	if ce := FromContext(ctx).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Trace logs failed, slow and (at Info level) all statements.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error:
		if errors.Is(err, gormlogger.ErrRecordNotFound) && l.ignoreRecordNotFound {
			return
		}
		// Number collisions are retried by the allocator.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			l.logQuery(ctx, fc, elapsed, err, zapcore.WarnLevel)
			return
		}
		l.logQuery(ctx, fc, elapsed, err, zapcore.ErrorLevel)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logQuery(ctx, fc, elapsed, nil, zapcore.WarnLevel)
	case l.level >= gormlogger.Info:
		l.logQuery(ctx, fc, elapsed, nil, zapcore.DebugLevel)
	}
}

// ParamsFilter drops bound values.
func (l *GormLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *GormLogger) logQuery(ctx context.Context, fc func() (string, int64), elapsed time.Duration, err error, level zapcore.Level) {
	log := FromContext(ctx)
	ce := log.Check(level, "gorm.query")
	if ce == nil {
		return
	}

	sql, rows := fc()
	op, table := describeSQL(sql)
	fields := []zap.Field{
		zap.String("component", "gorm"),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.String("operation", op),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if table != "" {
		fields = append(fields, zap.String("table", table))
	}
	if l.slowThreshold > 0 && elapsed > l.slowThreshold {
		fields = append(fields, zap.Bool("slow", true))
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows_affected", rows))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

// describeSQL returns the statement verb and the first table it touches.
func describeSQL(sql string) (string, string) {
	tokens := strings.Fields(strings.TrimSpace(sql))
	op := "UNKNOWN"
	for i, raw := range tokens {
		token := strings.ToUpper(strings.Trim(raw, "();"))
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE":
			if op == "UNKNOWN" {
				op = token
			}
			if token == "UPDATE" {
				return op, tableName(tokens, i+1)
			}
		case "FROM", "INTO":
			if op != "UNKNOWN" {
				return op, tableName(tokens, i+1)
			}
		}
	}
	return op, ""
}

func tableName(tokens []string, i int) string {
	if i >= len(tokens) {
		return ""
	}
	return strings.Trim(tokens[i], "\"`();")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
