package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"thealttext/internal/domain"
)

// EventRepositoryPG implements domain.EventRepository using PostgreSQL.
type EventRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new event repository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepositoryPG {
	return &EventRepositoryPG{pool: pool}
}

// SaveEvent inserts the event record. Events are append-only.
func (r *EventRepositoryPG) SaveEvent(ctx context.Context, event *domain.DomainEvent) error {
	query := `
INSERT INTO events (id, type, owner_id, occurred_at, payload)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		string(event.Type),
		event.OwnerID,
		event.OccurredAt,
		[]byte(event.Payload),
	)
	return err
}

// SaveDelivery upserts the per-endpoint delivery record. The dispatcher calls
// this after every failed attempt and once on the terminal state.
func (r *EventRepositoryPG) SaveDelivery(ctx context.Context, delivery *domain.EventDelivery) error {
	query := `
INSERT INTO event_deliveries (event_id, endpoint_id, event_type, status, attempts, last_error, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (event_id, endpoint_id) DO UPDATE
SET status = EXCLUDED.status,
    attempts = EXCLUDED.attempts,
    last_error = EXCLUDED.last_error,
    updated_at = EXCLUDED.updated_at;
`
	_, err := r.pool.Exec(ctx, query,
		delivery.EventID,
		delivery.EndpointID,
		string(delivery.EventType),
		string(delivery.Status),
		delivery.Attempts,
		delivery.LastError,
		delivery.UpdatedAt,
	)
	return err
}

// ListExhausted returns the most recent deliveries that ran out of retries for
// an endpoint, so owners can inspect what they missed.
func (r *EventRepositoryPG) ListExhausted(ctx context.Context, endpointID string, limit int) ([]domain.EventDelivery, error) {
	query := `
SELECT event_id, endpoint_id, event_type, status, attempts, last_error, updated_at
FROM event_deliveries
WHERE endpoint_id = $1 AND status = 'exhausted'
ORDER BY updated_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, endpointID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []domain.EventDelivery
	for rows.Next() {
		var d domain.EventDelivery
		if err := rows.Scan(
			&d.EventID,
			&d.EndpointID,
			&d.EventType,
			&d.Status,
			&d.Attempts,
			&d.LastError,
			&d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return deliveries, nil
}
