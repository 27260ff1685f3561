package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

var levels = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

// ParseLevel переводит DEBUG/INFO/WARN/ERROR (без учёта регистра) в slog.Level.
// Всё остальное — INFO.
func ParseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToUpper(strings.TrimSpace(level))]; ok {
		return l
	}
	return slog.LevelInfo
}

// LogLevel — уровень из LOG_LEVEL.
func LogLevel() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}

// NewLogger создаёт логгер, пишущий в w.
// format "text" — цветной вывод tint для терминала, иначе JSON.
// На DEBUG к записям добавляется место вызова.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	withSource := level <= slog.LevelDebug

	if format != "text" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: withSource,
		}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level,
		AddSource:   withSource,
		TimeFormat:  time.TimeOnly,
		ReplaceAttr: dropEmptyStrings,
	}))
}

func dropEmptyStrings(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
		return slog.Attr{}
	}
	return a
}

type loggerKey struct{}

// WithLogger кладёт logger в ctx; шаги и хранилище достают его через FromContext.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext — логгер из ctx или slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With("run_id", runID)
}

func WithStepID(logger *slog.Logger, stepID string) *slog.Logger {
	return logger.With("step_id", stepID)
}
