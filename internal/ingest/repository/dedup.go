package repository

import (
	"context"

	"crm_inbox_backend/internal/ingest/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DedupRepository claims (provider, provider_message_id) pairs exactly once.
// The insert's primary key is the whole concurrency story: two concurrent
// deliveries race on the same row and only one insert takes effect.
type DedupRepository struct {
	pool *pgxpool.Pool
}

// NewDedupRepository creates a new dedup repository.
func NewDedupRepository(pool *pgxpool.Pool) *DedupRepository {
	return &DedupRepository{pool: pool}
}

// Claim attempts to claim the pair. Returns false when the pair was already
// claimed, meaning this delivery is a retry or a concurrent duplicate.
func (r *DedupRepository) Claim(ctx context.Context, channel domain.Channel, providerMessageID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO dedup_claims (provider, provider_message_id)
		VALUES ($1, $2)
		ON CONFLICT (provider, provider_message_id) DO NOTHING
	`, string(channel), providerMessageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
