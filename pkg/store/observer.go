package store

import (
	"context"
	"log/slog"

	"github.com/ormasoftchile/goalrun/pkg/runtime"
)

// Observer records every lifecycle event into an EventStore. Write
// failures are logged and never interrupt the workflow.
type Observer struct {
	store  EventStore
	logger *slog.Logger
}

var _ runtime.Observer = (*Observer)(nil)

// NewObserver creates an observer writing to store.
func NewObserver(store EventStore, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

func (o *Observer) OnEvent(ctx context.Context, ev runtime.Event) {
	if err := o.store.AppendEvent(ctx, ev); err != nil {
		o.logger.WarnContext(ctx, "history append failed",
			slog.String("event", string(ev.Type)),
			slog.String("session_id", ev.SessionID),
			slog.Any("error", err),
		)
	}
}
