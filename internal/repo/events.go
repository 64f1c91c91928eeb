package repo

import (
	"context"
	"time"

	"github.com/noah-isme/sales-api/internal/events"
)

// EventRepo appends domain events to the domain_events table.
type EventRepo struct {
	DB      Querier
	Timeout time.Duration
}

var _ events.EventStore = (*EventRepo)(nil)

func (r *EventRepo) InsertDomainEvent(ctx context.Context, ev events.Event) (events.Event, error) {
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING occurred_at`,
		ev.ID, ev.Topic, ev.AggregateID, []byte(payload), ev.OccurredAt.UTC()).Scan(&ev.OccurredAt)
	if err != nil {
		return events.Event{}, storeErr("insert domain event", err)
	}
	ev.OccurredAt = ev.OccurredAt.UTC()
	ev.Payload = payload
	return ev, nil
}

// ListByAggregate returns the events recorded for one aggregate, oldest first.
func (r *EventRepo) ListByAggregate(ctx context.Context, aggregateID string) ([]events.Event, error) {
	aid, err := parseUUID("aggregate", aggregateID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	rows, err := r.DB.Query(ctx, `
		SELECT id, topic, aggregate_id, payload, occurred_at
		FROM domain_events
		WHERE aggregate_id = $1
		ORDER BY occurred_at, id`, aid)
	if err != nil {
		return nil, storeErr("list domain events", err)
	}
	defer rows.Close()
	out := make([]events.Event, 0)
	for rows.Next() {
		var (
			ev      events.Event
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &payload, &ev.OccurredAt); err != nil {
			return nil, storeErr("scan domain event", err)
		}
		ev.Payload = payload
		ev.OccurredAt = ev.OccurredAt.UTC()
		out = append(out, ev)
	}
	return out, storeErr("list domain events", rows.Err())
}
