package email

import (
	"context"
	"fmt"
	"html"
	"strings"

	"crm_inbox_backend/internal/events"
	"crm_inbox_backend/internal/ingest/repository"
	"crm_inbox_backend/platform/logger"
)

// Notifier emails a digest of freshly created follow-up tasks to the
// configured team address. Subscribed on the worker's bus; delivery failure
// is returned so asynq retries the task.
type Notifier struct {
	sender Sender
	tasks  *repository.TaskRepository
	to     string
	log    *logger.Logger
}

func NewNotifier(sender Sender, tasks *repository.TaskRepository, notifyAddress string, log *logger.Logger) *Notifier {
	return &Notifier{sender: sender, tasks: tasks, to: notifyAddress, log: log}
}

// RegisterHandlers subscribes the notifier to follow-up task events.
func (n *Notifier) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.FollowupTasksCreated{}.EventName(), events.HandlerFunc(n.onFollowupTasksCreated))
}

func (n *Notifier) onFollowupTasksCreated(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FollowupTasksCreated)
	if !ok {
		return nil
	}
	if n.sender == nil || n.to == "" {
		return nil
	}

	tasks, err := n.tasks.ListByLead(ctx, e.LeadID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("<h3>New follow-up tasks</h3><ul>")
	for _, t := range tasks {
		if t.Status != "open" {
			continue
		}
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(t.Title))
		if t.DueAt != nil {
			b.WriteString(" (due " + t.DueAt.Format("2006-01-02") + ")")
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	b.WriteString(fmt.Sprintf("<p>Lead %s, channel %s.</p>", e.LeadID.String(), html.EscapeString(e.Channel)))

	subject := fmt.Sprintf("%d new follow-up task(s) on lead %s", e.Count, e.LeadID.String()[:8])
	if err := n.sender.Send(ctx, n.to, subject, b.String()); err != nil {
		n.log.Warn("followup digest delivery failed", "lead_id", e.LeadID.String(), "error", err)
		return err
	}
	return nil
}
