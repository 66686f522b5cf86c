package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"thealttext/internal/domain"
)

// UsageRepositoryPG implements domain.UsageRepository using PostgreSQL.
type UsageRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUsageRepository creates a new usage repository.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepositoryPG {
	return &UsageRepositoryPG{pool: pool}
}

// InsertAttempt appends one provider call record to the usage ledger.
func (r *UsageRepositoryPG) InsertAttempt(ctx context.Context, attempt *domain.ModelAttempt) error {
	query := `
INSERT INTO model_attempts (request_id, owner_id, provider, tier, outcome, error_message, started_at, latency_ms, cost_estimate, carbon_mg)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		attempt.RequestID,
		attempt.OwnerID,
		attempt.Provider,
		attempt.Tier,
		string(attempt.Outcome),
		attempt.Error,
		attempt.StartedAt,
		attempt.Latency.Milliseconds(),
		attempt.CostEstimate,
		attempt.CarbonMg,
	)
	return err
}
