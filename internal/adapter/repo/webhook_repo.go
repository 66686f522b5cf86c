package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thealttext/internal/domain"
)

// WebhookRepositoryPG implements domain.WebhookRepository using PostgreSQL.
type WebhookRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewWebhookRepository creates a new webhook endpoint repository.
func NewWebhookRepository(pool *pgxpool.Pool) *WebhookRepositoryPG {
	return &WebhookRepositoryPG{pool: pool}
}

// Create inserts a new endpoint registration.
func (r *WebhookRepositoryPG) Create(ctx context.Context, endpoint *domain.WebhookEndpoint) error {
	query := `
INSERT INTO webhook_endpoints (id, owner_id, url, secret, events, enabled)
VALUES ($1, $2, $3, $4, $5, $6);
`
	_, err := r.pool.Exec(ctx, query,
		endpoint.ID,
		endpoint.OwnerID,
		endpoint.URL,
		endpoint.Secret,
		eventStrings(endpoint.Events),
		endpoint.Enabled,
	)
	return err
}

// ListByOwner returns all endpoints registered by the owner.
func (r *WebhookRepositoryPG) ListByOwner(ctx context.Context, ownerID string) ([]domain.WebhookEndpoint, error) {
	query := `
SELECT id, owner_id, url, secret, events, enabled, created_at
FROM webhook_endpoints
WHERE owner_id = $1
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEndpoints(rows)
}

// ListForEvent returns the owner's enabled endpoints subscribed to the event type.
func (r *WebhookRepositoryPG) ListForEvent(ctx context.Context, ownerID string, eventType domain.EventType) ([]domain.WebhookEndpoint, error) {
	query := `
SELECT id, owner_id, url, secret, events, enabled, created_at
FROM webhook_endpoints
WHERE owner_id = $1 AND enabled AND $2 = ANY(events)
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, ownerID, string(eventType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEndpoints(rows)
}

// GetByID fetches an endpoint by its identifier.
func (r *WebhookRepositoryPG) GetByID(ctx context.Context, id string) (*domain.WebhookEndpoint, error) {
	query := `
SELECT id, owner_id, url, secret, events, enabled, created_at
FROM webhook_endpoints
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	endpoint, err := scanEndpoint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return endpoint, nil
}

// Delete removes an endpoint owned by the caller.
func (r *WebhookRepositoryPG) Delete(ctx context.Context, id, ownerID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1 AND owner_id = $2;`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanEndpoints(rows pgx.Rows) ([]domain.WebhookEndpoint, error) {
	var endpoints []domain.WebhookEndpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *endpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return endpoints, nil
}

func scanEndpoint(row pgx.Row) (*domain.WebhookEndpoint, error) {
	var endpoint domain.WebhookEndpoint
	var events []string
	if err := row.Scan(
		&endpoint.ID,
		&endpoint.OwnerID,
		&endpoint.URL,
		&endpoint.Secret,
		&events,
		&endpoint.Enabled,
		&endpoint.CreatedAt,
	); err != nil {
		return nil, err
	}
	endpoint.Events = eventTypes(events)
	return &endpoint, nil
}

func eventStrings(events []domain.EventType) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e)
	}
	return out
}

func eventTypes(events []string) []domain.EventType {
	out := make([]domain.EventType, len(events))
	for i, e := range events {
		out[i] = domain.EventType(e)
	}
	return out
}
