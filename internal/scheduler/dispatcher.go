package scheduler

import (
	"context"

	"crm_inbox_backend/internal/events"
	"crm_inbox_backend/platform/logger"
)

// Dispatcher bridges in-process domain events to queued background tasks.
// It runs in the API process; the worker process consumes what it enqueues.
// Dispatch failures are logged only — background work is best-effort and
// never blocks ingestion.
type Dispatcher struct {
	enqueuer TaskEnqueuer
	log      *logger.Logger
}

func NewDispatcher(enqueuer TaskEnqueuer, log *logger.Logger) *Dispatcher {
	return &Dispatcher{enqueuer: enqueuer, log: log}
}

// RegisterHandlers subscribes the dispatcher to the events that trigger
// background work.
func (d *Dispatcher) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.MessageIngested{}.EventName(), events.HandlerFunc(d.onMessageIngested))
	bus.Subscribe(events.FollowupTasksCreated{}.EventName(), events.HandlerFunc(d.onFollowupTasksCreated))
}

func (d *Dispatcher) onMessageIngested(ctx context.Context, event events.Event) error {
	e, ok := event.(events.MessageIngested)
	if !ok {
		return nil
	}
	if err := d.enqueuer.EnqueueLeadForecastRecompute(ctx, LeadForecastRecomputePayload{
		LeadID: e.LeadID.String(),
	}); err != nil {
		d.log.Warn("forecast recompute enqueue failed", "lead_id", e.LeadID.String(), "error", err)
	}
	return nil
}

func (d *Dispatcher) onFollowupTasksCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FollowupTasksCreated)
	if !ok {
		return nil
	}
	if err := d.enqueuer.EnqueueFollowupNotify(ctx, FollowupNotifyPayload{
		LeadID:         e.LeadID.String(),
		ConversationID: e.ConversationID.String(),
		Channel:        e.Channel,
		Count:          e.Count,
	}); err != nil {
		d.log.Warn("followup notify enqueue failed", "lead_id", e.LeadID.String(), "error", err)
	}
	return nil
}
