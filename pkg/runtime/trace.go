package runtime

import (
	"context"
	"log/slog"

	"github.com/ormasoftchile/goalrun/pkg/kernel/trace"
)

// TraceObserver appends every lifecycle event to a hash-chained JSONL trace.
type TraceObserver struct {
	w      *trace.Writer
	logger *slog.Logger
}

// NewTraceObserver wraps w. Write failures are logged, never returned to
// the emitter.
func NewTraceObserver(w *trace.Writer, logger *slog.Logger) *TraceObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &TraceObserver{w: w, logger: logger}
}

func (o *TraceObserver) OnEvent(ctx context.Context, ev Event) {
	id := ev.SessionID
	if id == "" {
		id = ev.ScheduleID
	}
	if err := o.w.EmitAt(ev.At, string(ev.Type), id, ev.Data()); err != nil {
		o.logger.ErrorContext(ctx, "trace write failed",
			slog.String("event", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}

// Close closes the underlying trace writer.
func (o *TraceObserver) Close() error {
	return o.w.Close()
}
