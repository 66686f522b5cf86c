package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"thealttext/internal/domain"
)

// APIKeyRepositoryPG implements domain.APIKeyRepository using PostgreSQL.
// Only a SHA-256 digest of the key is stored; the raw key is shown to the
// owner once, at creation.
type APIKeyRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepositoryPG {
	return &APIKeyRepositoryPG{pool: pool}
}

// Create inserts a new key record.
func (r *APIKeyRepositoryPG) Create(ctx context.Context, key *domain.APIKey) error {
	query := `
INSERT INTO api_keys (id, owner_id, label, key_hash)
VALUES ($1, $2, $3, $4);
`
	_, err := r.pool.Exec(ctx, query, key.ID, key.OwnerID, key.Label, hashKey(key.Key))
	return err
}

// GetByKey resolves a raw key presented by a caller. The stored last_used_at
// marker is refreshed best-effort.
func (r *APIKeyRepositoryPG) GetByKey(ctx context.Context, raw string) (*domain.APIKey, error) {
	query := `
SELECT id, owner_id, label, created_at, revoked_at, last_used_at
FROM api_keys
WHERE key_hash = $1;
`
	digest := hashKey(raw)
	row := r.pool.QueryRow(ctx, query, digest)
	var key domain.APIKey
	if err := row.Scan(
		&key.ID,
		&key.OwnerID,
		&key.Label,
		&key.CreatedAt,
		&key.RevokedAt,
		&key.LastUsedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	key.Key = raw

	_, _ = r.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE key_hash = $1;`, digest)
	return &key, nil
}

// Revoke disables a key owned by the caller. Revoking twice is an error so
// callers can distinguish a stale id from a live one.
func (r *APIKeyRepositoryPG) Revoke(ctx context.Context, id, ownerID string) error {
	query := `
UPDATE api_keys
SET revoked_at = NOW()
WHERE id = $1 AND owner_id = $2 AND revoked_at IS NULL;
`
	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func hashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
