package scheduler

import (
	"context"
	"fmt"
	"time"

	"crm_inbox_backend/internal/events"
	"crm_inbox_backend/internal/ingest/repository"
	"crm_inbox_backend/platform/config"
	"crm_inbox_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	leads    *repository.LeadRepository
	messages *repository.MessageRepository
	bus      events.Bus
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		leads:    repository.NewLeadRepository(pool),
		messages: repository.NewMessageRepository(pool),
		bus:      bus,
		log:      log,
	}

	mux.HandleFunc(TaskLeadForecastRecompute, w.handleLeadForecastRecompute)
	mux.HandleFunc(TaskFollowupNotify, w.handleFollowupNotify)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleLeadForecastRecompute recomputes a lead's score from what the
// pipeline has captured so far. Deliberately a deterministic aggregate, not
// a model: completeness of captured fields plus engagement volume and
// recency.
func (w *Worker) handleLeadForecastRecompute(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadForecastRecomputePayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	lead, err := w.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}

	messageCount, err := w.messages.CountByLead(ctx, leadID)
	if err != nil {
		return err
	}

	score := 10.0
	if lead.ServiceType != "" {
		score += 25
	}
	if nationality, ok := lead.Data["nationality"].(string); ok && nationality != "" {
		score += 15
	}
	if lead.ExpiryDate != nil {
		score += 20
	}
	if messageCount > 10 {
		messageCount = 10
	}
	score += float64(messageCount) * 3

	// Stale leads decay: no inbound activity for two weeks halves the score.
	if lead.LastInboundAt != nil && time.Since(*lead.LastInboundAt) > 14*24*time.Hour {
		score /= 2
	}
	if score > 100 {
		score = 100
	}

	if err := w.leads.UpdateScore(ctx, leadID, score); err != nil {
		return err
	}

	w.log.Info("lead forecast recomputed", "lead_id", leadID.String(), "score", score)
	return nil
}

// handleFollowupNotify republishes the follow-up event on the worker's bus
// so the email notifier (subscribed in this process) delivers the digest.
func (w *Worker) handleFollowupNotify(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseFollowupNotifyPayload(task)
	if err != nil {
		return err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return err
	}

	conversationID, err := uuid.Parse(payload.ConversationID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.FollowupTasksCreated{
		BaseEvent:      events.NewBaseEvent(),
		LeadID:         leadID,
		ConversationID: conversationID,
		Channel:        payload.Channel,
		Count:          payload.Count,
	})
}
