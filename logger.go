package direkte

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger reports index events through slog with a fixed set of attribute
// keys: column, path, blob, nrows, keys and bytes.
type Logger struct {
	*slog.Logger
}

// NewLogger returns a Logger writing to handler, or to a text handler on
// stderr when handler is nil.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger returns a Logger writing JSON lines at level and above to
// stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger returns a Logger writing key=value lines at level and
// above to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger returns a Logger that drops everything.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithColumn tags every event with the column name.
func (l *Logger) WithColumn(name string) *Logger {
	return &Logger{Logger: l.With(slog.String("column", name))}
}

// outcome logs ok at level, or fail at error level when err is set.
func (l *Logger) outcome(ctx context.Context, level slog.Level, ok, fail string, err error, attrs ...slog.Attr) {
	if err != nil {
		l.LogAttrs(ctx, slog.LevelError, fail, append(attrs, slog.Any("error", err))...)
		return
	}
	l.LogAttrs(ctx, level, ok, attrs...)
}

// LogBuild logs the construction of an index from a column.
func (l *Logger) LogBuild(ctx context.Context, nrows uint32, k int, elapsed time.Duration, err error) {
	l.outcome(ctx, slog.LevelDebug, "index built", "index build failed", err,
		slog.Any("nrows", nrows), slog.Int("keys", k), slog.Duration("elapsed", elapsed))
}

// LogRead logs attaching an index to its file.
func (l *Logger) LogRead(ctx context.Context, path string, k int, mapped bool, err error) {
	l.outcome(ctx, slog.LevelDebug, "index read", "index read failed", err,
		slog.String("path", path), slog.Int("keys", k), slog.Bool("mapped", mapped))
}

// LogWrite logs writing an index file.
func (l *Logger) LogWrite(ctx context.Context, path string, size int64, err error) {
	l.outcome(ctx, slog.LevelInfo, "index written", "index write failed", err,
		slog.String("path", path), slog.Int64("bytes", size))
}

// LogPublish logs uploading an index to a blob store.
func (l *Logger) LogPublish(ctx context.Context, name string, size int64, err error) {
	l.outcome(ctx, slog.LevelInfo, "index published", "publish failed", err,
		slog.String("blob", name), slog.Int64("bytes", size))
}

// LogAppend logs appending rows to an index.
func (l *Logger) LogAppend(ctx context.Context, added, total uint32, err error) {
	l.outcome(ctx, slog.LevelDebug, "rows appended", "append failed", err,
		slog.Any("added", added), slog.Any("nrows", total))
}

// LogRemap logs a key remapping.
func (l *Logger) LogRemap(ctx context.Context, keys int, err error) {
	l.outcome(ctx, slog.LevelDebug, "keys remapped", "key remap failed", err, slog.Int("keys", keys))
}

// LogOpenFallback records that an unusable index file is replaced by a
// rebuild from the column data.
func (l *Logger) LogOpenFallback(ctx context.Context, path string, err error) {
	l.LogAttrs(ctx, slog.LevelDebug, "index file unusable, rebuilding from column",
		slog.String("path", path), slog.Any("error", err))
}

// LogUnknownOperator records a range predicate answered with every row.
func (l *Logger) LogUnknownOperator(ctx context.Context, pred string) {
	l.LogAttrs(ctx, slog.LevelWarn, "unknown range operator, returning all rows", slog.String("predicate", pred))
}

// LogActivate records a bitmap that could not be decoded and reads as empty.
func (l *Logger) LogActivate(ctx context.Context, key int, err error) {
	l.LogAttrs(ctx, slog.LevelError, "bitmap activation failed", slog.Int("key", key), slog.Any("error", err))
}
