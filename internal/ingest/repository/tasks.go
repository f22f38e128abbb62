package repository

import (
	"context"
	"time"

	"crm_inbox_backend/internal/ingest/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TaskRepository provides data access for follow-up tasks.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `id, lead_id, conversation_id, channel, task_type, trigger_key, title, due_at, status, created_at`

func scanTask(row pgx.Row) (domain.FollowupTask, error) {
	var t domain.FollowupTask
	err := row.Scan(
		&t.ID, &t.LeadID, &t.ConversationID, &t.Channel, &t.TaskType,
		&t.TriggerKey, &t.Title, &t.DueAt, &t.Status, &t.CreatedAt,
	)
	return t, err
}

// CreateIfAbsent inserts a task unless one with the same trigger key already
// exists. Returns created=false on the conflict path, so retried deliveries
// never duplicate follow-ups.
func (r *TaskRepository) CreateIfAbsent(ctx context.Context, task domain.FollowupTask) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO followup_tasks (lead_id, conversation_id, channel, task_type, trigger_key, title, due_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'open')
		ON CONFLICT (trigger_key) DO NOTHING
	`, task.LeadID, task.ConversationID, string(task.Channel), task.TaskType, task.TriggerKey, task.Title, task.DueAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByLead returns the tasks attached to a lead, newest first.
func (r *TaskRepository) ListByLead(ctx context.Context, leadID uuid.UUID) ([]domain.FollowupTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM followup_tasks
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FollowupTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListDue returns open tasks that became due before the cutoff. Used by the
// notification worker.
func (r *TaskRepository) ListDue(ctx context.Context, before time.Time, limit int) ([]domain.FollowupTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM followup_tasks
		WHERE status = 'open' AND due_at IS NOT NULL AND due_at <= $1
		ORDER BY due_at ASC
		LIMIT $2
	`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FollowupTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetByID returns a single task.
func (r *TaskRepository) GetByID(ctx context.Context, taskID uuid.UUID) (domain.FollowupTask, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM followup_tasks WHERE id = $1
	`, taskID))
}

// Complete marks a task done.
func (r *TaskRepository) Complete(ctx context.Context, taskID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE followup_tasks SET status = 'done' WHERE id = $1
	`, taskID)
	return err
}
