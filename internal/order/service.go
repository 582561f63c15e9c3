package order

import (
	"context"
	"log/slog"
	"time"

	"photo-intake-bot/internal/pkg/model"
)

// Journal keeps an audit trail of session lifecycle events.
type Journal interface {
	Record(ctx context.Context, event model.SessionEvent) error
	Dispatches(ctx context.Context, orderNumber string) (int, error)
	History(ctx context.Context, orderNumber string) ([]model.SessionEvent, error)
}

type DefaultJournal struct {
	repo Repo
}

func NewDefaultJournal(repo Repo) Journal {
	return &DefaultJournal{
		repo: repo,
	}
}

func (d *DefaultJournal) Record(ctx context.Context, event model.SessionEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := d.repo.InsertEvent(ctx, DBSessionEvent{
		OrderNumber: event.OrderNumber,
		UserID:      event.UserID,
		Kind:        event.Kind,
		Photos:      event.Photos,
		Required:    event.Required,
		CreatedAt:   event.CreatedAt,
	})
	if err != nil {
		slog.Error("Failed to record session event", "error", err, "order", event.OrderNumber, "kind", event.Kind)
		return err
	}
	return nil
}

func (d *DefaultJournal) Dispatches(ctx context.Context, orderNumber string) (int, error) {
	count, err := d.repo.CountEvents(ctx, orderNumber, model.EventDispatched)
	if err != nil {
		slog.Error("Failed to count dispatches", "error", err, "order", orderNumber)
		return 0, err
	}
	return count, nil
}

func (d *DefaultJournal) History(ctx context.Context, orderNumber string) ([]model.SessionEvent, error) {
	dbEvents, err := d.repo.ListEvents(ctx, orderNumber)
	if err != nil {
		slog.Error("Failed to read order history", "error", err, "order", orderNumber)
		return nil, err
	}

	events := make([]model.SessionEvent, len(dbEvents))
	for i, e := range dbEvents {
		events[i] = model.SessionEvent{
			OrderNumber: e.OrderNumber,
			UserID:      e.UserID,
			Kind:        e.Kind,
			Photos:      e.Photos,
			Required:    e.Required,
			CreatedAt:   e.CreatedAt,
		}
	}
	return events, nil
}

// NopJournal is used when no database is configured.
type NopJournal struct{}

func (NopJournal) Record(context.Context, model.SessionEvent) error { return nil }

func (NopJournal) Dispatches(context.Context, string) (int, error) { return 0, nil }

func (NopJournal) History(context.Context, string) ([]model.SessionEvent, error) { return nil, nil }
