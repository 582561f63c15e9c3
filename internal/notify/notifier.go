// Package notify tells the print side that an order is ready.
package notify

import (
	"context"
	"log/slog"

	"photo-intake-bot/internal/pkg/model"

	"go.uber.org/atomic"
)

type Notifier interface {
	Notify(ctx context.Context, dispatch model.Dispatch) error
}

// Fanout delivers to a required primary notifier and then to best-effort secondaries.
// Only the primary decides whether a dispatch succeeded.
type Fanout struct {
	primary   Notifier
	secondary []Notifier
	sent      *atomic.Int64
	failed    *atomic.Int64
}

func NewFanout(primary Notifier, secondary ...Notifier) *Fanout {
	return &Fanout{
		primary:   primary,
		secondary: secondary,
		sent:      atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
	}
}

func (f *Fanout) Notify(ctx context.Context, dispatch model.Dispatch) error {
	if err := f.primary.Notify(ctx, dispatch); err != nil {
		f.failed.Inc()
		return err
	}
	f.sent.Inc()

	for _, n := range f.secondary {
		if err := n.Notify(ctx, dispatch); err != nil {
			slog.Warn("Secondary dispatch notification failed", "error", err, "order", dispatch.OrderNumber, "dispatch_id", dispatch.ID)
		}
	}
	return nil
}

type Stats struct {
	Sent   int64
	Failed int64
}

func (f *Fanout) Stats() Stats {
	return Stats{
		Sent:   f.sent.Load(),
		Failed: f.failed.Load(),
	}
}
