package repository

import (
	"context"

	"crm_inbox_backend/internal/ingest/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ContactRepository provides data access for contacts.
type ContactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository creates a new contact repository.
func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

const contactColumns = `id, identifier, display_name, email, nationality, source_channel, created_at, updated_at`

// Upsert creates or updates the contact keyed by its normalized identifier.
// On conflict, only empty stored fields are filled in; a populated display
// name or email is never overwritten by this path.
func (r *ContactRepository) Upsert(ctx context.Context, identifier, displayName, email string, channel domain.Channel) (domain.Contact, error) {
	var c domain.Contact
	err := r.pool.QueryRow(ctx, `
		INSERT INTO contacts (identifier, display_name, email, source_channel)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (identifier) DO UPDATE SET
			display_name = COALESCE(NULLIF(contacts.display_name, ''), EXCLUDED.display_name),
			email        = COALESCE(NULLIF(contacts.email, ''), EXCLUDED.email),
			updated_at   = now()
		RETURNING `+contactColumns+`
	`, identifier, displayName, email, string(channel)).Scan(
		&c.ID, &c.Identifier, &c.DisplayName, &c.Email, &c.Nationality, &c.SourceChannel, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

// FillExtractedFields fills nationality/display-name/email slots from
// extraction, again only where the stored value is empty.
func (r *ContactRepository) FillExtractedFields(ctx context.Context, contactID uuid.UUID, displayName, email, nationality string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contacts SET
			display_name = COALESCE(NULLIF(display_name, ''), $2),
			email        = COALESCE(NULLIF(email, ''), $3),
			nationality  = COALESCE(NULLIF(nationality, ''), $4),
			updated_at   = now()
		WHERE id = $1
	`, contactID, displayName, email, nationality)
	return err
}
