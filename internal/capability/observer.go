package capability

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
	"unicode/utf8"
)

// Execution describes one finished capability invocation.
type Execution struct {
	Name      string
	Arguments json.RawMessage
	Result    string
	Err       error
	Duration  time.Duration
}

// Observer is notified after every capability execution.
type Observer interface {
	Executed(ctx context.Context, e Execution)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Execution)

func (f ObserverFunc) Executed(ctx context.Context, e Execution) {
	f(ctx, e)
}

// maxLoggedResult bounds the result preview written to the log.
const maxLoggedResult = 200

// LogObserver writes one debug record per execution.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns an observer logging to l, or slog.Default() when l
// is nil.
func NewLogObserver(l *slog.Logger) *LogObserver {
	return &LogObserver{logger: l}
}

func (o *LogObserver) Executed(ctx context.Context, e Execution) {
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"tool", e.Name,
		"args", string(e.Arguments),
		"duration_ms", e.Duration.Milliseconds(),
		"result_bytes", len(e.Result),
		"result", preview(e.Result),
	}
	if e.Err != nil {
		logger.ErrorContext(ctx, "tool failed", append(attrs, "error", e.Err)...)
		return
	}
	logger.DebugContext(ctx, "tool executed", attrs...)
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= maxLoggedResult {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLoggedResult]) + "..."
}
