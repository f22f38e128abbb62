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

// LeadRepository provides data access for leads.
type LeadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository creates a new lead repository.
func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{pool: pool}
}

const leadColumns = `id, contact_id, stage, service_type, service_raw, business_activity, data_json, expiry_date, score, last_inbound_at, created_at, updated_at`

func scanLead(row pgx.Row) (domain.Lead, error) {
	var l domain.Lead
	var data []byte
	err := row.Scan(
		&l.ID, &l.ContactID, &l.Stage, &l.ServiceType, &l.ServiceRaw, &l.BusinessActivity,
		&data, &l.ExpiryDate, &l.Score, &l.LastInboundAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	l.Data = unmarshalJSON(data)
	return l, nil
}

// FindByProviderMessage returns the lead an already-recorded message points
// at, if any. Defensive idempotency for retries that somehow passed the
// dedup barrier.
func (r *LeadRepository) FindByProviderMessage(ctx context.Context, channel domain.Channel, providerMessageID string) (*domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+prefixedLeadColumns("l")+`
		FROM leads l
		JOIN messages m ON m.lead_id = l.id
		WHERE m.channel = $1 AND m.provider_message_id = $2
	`, string(channel), providerMessageID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindReusable returns the most recent open lead for the contact created at
// or after the cutoff. Leads in a closed stage or older than the cutoff never
// absorb new inbound activity.
func (r *LeadRepository) FindReusable(ctx context.Context, contactID uuid.UUID, createdAfter time.Time) (*domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE contact_id = $1
		  AND stage NOT IN ('COMPLETED_WON', 'LOST', 'ON_HOLD')
		  AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT 1
	`, contactID, createdAfter))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// Create inserts a fresh lead in stage NEW.
func (r *LeadRepository) Create(ctx context.Context, contactID uuid.UUID, lastInboundAt time.Time) (domain.Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (contact_id, stage, last_inbound_at)
		VALUES ($1, 'NEW', $2)
		RETURNING `+leadColumns+`
	`, contactID, lastInboundAt))
}

// TouchInbound bumps last_inbound_at to the message timestamp. GREATEST keeps
// out-of-order deliveries from moving the marker backwards.
func (r *LeadRepository) TouchInbound(ctx context.Context, leadID uuid.UUID, messageAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET last_inbound_at = GREATEST(COALESCE(last_inbound_at, $2), $2), updated_at = now()
		WHERE id = $1
	`, leadID, messageAt)
	return err
}

// UpdateMerged persists the merged data blob plus any refined scalar columns.
func (r *LeadRepository) UpdateMerged(ctx context.Context, leadID uuid.UUID, data map[string]any, serviceType, serviceRaw, businessActivity string, expiryDate *time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			data_json         = $2,
			service_type      = COALESCE(NULLIF($3, ''), service_type),
			service_raw       = COALESCE(NULLIF($4, ''), service_raw),
			business_activity = COALESCE(NULLIF($5, ''), business_activity),
			expiry_date       = COALESCE($6, expiry_date),
			updated_at        = now()
		WHERE id = $1
	`, leadID, marshalJSON(data), serviceType, serviceRaw, businessActivity, expiryDate)
	return err
}

// UpdateScore stores a recomputed forecast score. Best-effort path used by
// the background worker only.
func (r *LeadRepository) UpdateScore(ctx context.Context, leadID uuid.UUID, score float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET score = $2, updated_at = now() WHERE id = $1
	`, leadID, score)
	return err
}

// GetByID returns a single lead.
func (r *LeadRepository) GetByID(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads WHERE id = $1
	`, leadID))
}

func prefixedLeadColumns(alias string) string {
	return alias + ".id, " + alias + ".contact_id, " + alias + ".stage, " + alias + ".service_type, " +
		alias + ".service_raw, " + alias + ".business_activity, " + alias + ".data_json, " +
		alias + ".expiry_date, " + alias + ".score, " + alias + ".last_inbound_at, " +
		alias + ".created_at, " + alias + ".updated_at"
}
