package media

import (
	"context"
	"fmt"

	"crm_inbox_backend/internal/events"
	"crm_inbox_backend/internal/ingest/repository"
	"crm_inbox_backend/platform/logger"
)

// Archiver copies the raw payload of newly ingested messages with an
// unresolved media id into the archive bucket. Subscribed on the API bus;
// strictly best-effort.
type Archiver struct {
	store    *Store
	messages *repository.MessageRepository
	log      *logger.Logger
}

func NewArchiver(store *Store, messages *repository.MessageRepository, log *logger.Logger) *Archiver {
	return &Archiver{store: store, messages: messages, log: log}
}

// RegisterHandlers subscribes the archiver to ingestion events.
func (a *Archiver) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.MessageIngested{}.EventName(), events.HandlerFunc(a.onMessageIngested))
}

func (a *Archiver) onMessageIngested(ctx context.Context, event events.Event) error {
	e, ok := event.(events.MessageIngested)
	if !ok {
		return nil
	}

	msg, err := a.messages.GetByID(ctx, e.MessageID)
	if err != nil {
		a.log.Warn("archive lookup failed", "message_id", e.MessageID.String(), "error", err)
		return nil
	}
	if msg.Media.MediaID != "" || len(msg.RawPayload) == 0 {
		return nil
	}

	key := fmt.Sprintf("%s/%s.json", msg.Channel, msg.ID.String())
	if err := a.store.Put(ctx, key, msg.RawPayload, "application/json"); err != nil {
		a.log.Warn("raw payload archive failed", "message_id", msg.ID.String(), "error", err)
	}
	return nil
}
