package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// queryLogger sends gorm output to slog. Failed statements log at error,
// statements slower than slow log at warn, and the rest only when the
// level is lowered to debug. Missing rows are an expected outcome for
// lookups and are never logged.
type queryLogger struct {
	log   *slog.Logger
	level slog.Level
	slow  time.Duration
}

func newQueryLogger(log *slog.Logger, slow time.Duration) *queryLogger {
	return &queryLogger{log: log, level: slog.LevelWarn, slow: slow}
}

var gormLevels = map[logger.LogLevel]slog.Level{
	logger.Silent: slog.LevelError + 4,
	logger.Error:  slog.LevelError,
	logger.Warn:   slog.LevelWarn,
	logger.Info:   slog.LevelDebug,
}

func (l *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	if lvl, ok := gormLevels[level]; ok {
		cp.level = lvl
	}
	return &cp
}

func (l *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.emit(ctx, slog.LevelInfo, fmt.Sprintf(msg, args...))
}

func (l *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.emit(ctx, slog.LevelWarn, fmt.Sprintf(msg, args...))
}

func (l *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.emit(ctx, slog.LevelError, fmt.Sprintf(msg, args...))
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	lvl, msg := slog.LevelDebug, "sql"
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		lvl, msg = slog.LevelError, "sql failed"
	case l.slow > 0 && elapsed > l.slow:
		lvl, msg = slog.LevelWarn, "sql slow"
	}
	if lvl < l.level {
		return
	}

	stmt, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", stmt),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if lvl == slog.LevelError {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.log.LogAttrs(ctx, lvl, msg, attrs...)
}

func (l *queryLogger) emit(ctx context.Context, lvl slog.Level, msg string) {
	if lvl >= l.level {
		l.log.Log(ctx, lvl, msg)
	}
}
