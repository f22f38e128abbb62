package repository

import (
	"context"
	"errors"
	"time"

	"crm_inbox_backend/internal/ingest/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository provides data access for recorded messages.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

const messageColumns = `id, conversation_id, lead_id, contact_id, channel, provider_message_id, direction, body, media_id, media_mime_type, media_filename, media_size, media_sha256, media_caption, raw_payload, sent_at, created_at`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(
		&m.ID, &m.ConversationID, &m.LeadID, &m.ContactID, &m.Channel,
		&m.ProviderMessageID, &m.Direction, &m.Body,
		&m.Media.MediaID, &m.Media.MimeType, &m.Media.Filename, &m.Media.Size, &m.Media.SHA256, &m.Media.Caption,
		&m.RawPayload, &m.SentAt, &m.CreatedAt,
	)
	return m, err
}

// GetByProviderID returns an existing message for the (channel, provider
// message id) pair, or nil when none exists.
func (r *MessageRepository) GetByProviderID(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.Message, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE channel = $1 AND provider_message_id = $2
	`, string(channel), providerMessageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Insert records one inbound message. When the unique constraint on
// (channel, provider_message_id) fires, a concurrent delivery won the race;
// the already-stored row is returned with created=false and nothing else
// happens. This is the second idempotency barrier after the dedup claim.
func (r *MessageRepository) Insert(ctx context.Context, msg domain.Message) (domain.Message, bool, error) {
	stored, err := scanMessage(r.pool.QueryRow(ctx, `
		INSERT INTO messages (
			conversation_id, lead_id, contact_id, channel, provider_message_id, direction, body,
			media_id, media_mime_type, media_filename, media_size, media_sha256, media_caption,
			raw_payload, sent_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+messageColumns+`
	`, msg.ConversationID, msg.LeadID, msg.ContactID, string(msg.Channel), msg.ProviderMessageID,
		string(msg.Direction), msg.Body,
		msg.Media.MediaID, msg.Media.MimeType, msg.Media.Filename, msg.Media.Size, msg.Media.SHA256, msg.Media.Caption,
		msg.RawPayload, msg.SentAt))
	if err == nil {
		return stored, true, nil
	}
	if !isUniqueViolation(err) {
		return domain.Message{}, false, err
	}
	existing, lookupErr := r.GetByProviderID(ctx, msg.Channel, msg.ProviderMessageID)
	if lookupErr != nil {
		return domain.Message{}, false, lookupErr
	}
	if existing == nil {
		return domain.Message{}, false, err
	}
	return *existing, false, nil
}

// GetByID returns a single message.
func (r *MessageRepository) GetByID(ctx context.Context, messageID uuid.UUID) (domain.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM messages WHERE id = $1
	`, messageID))
}

// ListByConversation returns the messages of one thread, oldest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY sent_at ASC, created_at ASC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LatestInboundAt returns the newest inbound message timestamp for a lead.
// Used by the background forecast recompute.
func (r *MessageRepository) LatestInboundAt(ctx context.Context, leadID uuid.UUID) (*time.Time, error) {
	var at *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(sent_at) FROM messages WHERE lead_id = $1 AND direction = 'INBOUND'
	`, leadID).Scan(&at)
	return at, err
}

// CountByLead returns the number of messages recorded against a lead.
func (r *MessageRepository) CountByLead(ctx context.Context, leadID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE lead_id = $1
	`, leadID).Scan(&n)
	return n, err
}
