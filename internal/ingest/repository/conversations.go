package repository

import (
	"context"
	"time"

	"crm_inbox_backend/internal/ingest/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository provides data access for conversation threads.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

const conversationColumns = `id, contact_id, channel, lead_id, status, last_inbound_at, last_outbound_at, unread_count, known_fields, last_question, external_thread_id, created_at, updated_at`

func scanConversation(row pgx.Row) (domain.Conversation, error) {
	var c domain.Conversation
	var known []byte
	err := row.Scan(
		&c.ID, &c.ContactID, &c.Channel, &c.LeadID, &c.Status,
		&c.LastInboundAt, &c.LastOutboundAt, &c.UnreadCount,
		&known, &c.LastQuestion, &c.ExternalThreadID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Conversation{}, err
	}
	c.KnownFields = unmarshalJSON(known)
	return c, nil
}

// Upsert creates or revives the single thread for a (contact, channel) pair.
// On conflict the thread is re-pointed at the current lead, reopened if it
// was closed, and its inbound marker advanced. GREATEST keeps out-of-order
// deliveries from moving timestamps backwards.
func (r *ConversationRepository) Upsert(ctx context.Context, contactID uuid.UUID, channel domain.Channel, leadID uuid.UUID, messageAt time.Time, externalThreadID string) (domain.Conversation, error) {
	return scanConversation(r.pool.QueryRow(ctx, `
		INSERT INTO conversations (contact_id, channel, lead_id, status, last_inbound_at, external_thread_id)
		VALUES ($1, $2, $3, 'open', $4, $5)
		ON CONFLICT (contact_id, channel) DO UPDATE SET
			lead_id            = EXCLUDED.lead_id,
			status             = 'open',
			last_inbound_at    = GREATEST(COALESCE(conversations.last_inbound_at, EXCLUDED.last_inbound_at), EXCLUDED.last_inbound_at),
			external_thread_id = COALESCE(NULLIF(conversations.external_thread_id, ''), EXCLUDED.external_thread_id),
			updated_at         = now()
		RETURNING `+conversationColumns+`
	`, contactID, string(channel), leadID, messageAt, externalThreadID))
}

// RelinkToLead points every conversation of the contact at the given lead.
// Called when the lead resolver reuses or creates a lead, so stale or
// orphaned threads converge on the active one.
func (r *ConversationRepository) RelinkToLead(ctx context.Context, contactID, leadID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations SET lead_id = $2, updated_at = now()
		WHERE contact_id = $1 AND lead_id <> $2
	`, contactID, leadID)
	return err
}

// IncrementUnread bumps the unread counter. Best-effort; callers log and
// continue on failure.
func (r *ConversationRepository) IncrementUnread(ctx context.Context, conversationID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations SET unread_count = unread_count + 1, updated_at = now() WHERE id = $1
	`, conversationID)
	return err
}

// UpdateKnownFields persists the merged extraction cache for the thread.
func (r *ConversationRepository) UpdateKnownFields(ctx context.Context, conversationID uuid.UUID, knownFields map[string]any) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations SET known_fields = $2, updated_at = now() WHERE id = $1
	`, conversationID, marshalJSON(knownFields))
	return err
}

// SetLastQuestion records the most recent follow-up question asked on the
// thread so it is not repeated.
func (r *ConversationRepository) SetLastQuestion(ctx context.Context, conversationID uuid.UUID, question string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations SET last_question = $2, updated_at = now() WHERE id = $1
	`, conversationID, question)
	return err
}

// GetByID returns a single conversation.
func (r *ConversationRepository) GetByID(ctx context.Context, conversationID uuid.UUID) (domain.Conversation, error) {
	return scanConversation(r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE id = $1
	`, conversationID))
}
