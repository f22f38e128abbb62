package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm_inbox_backend/internal/events"
	"crm_inbox_backend/internal/extract"
	"crm_inbox_backend/internal/ingest/domain"
	"crm_inbox_backend/internal/ingest/transport"
	"crm_inbox_backend/platform/apperr"
	"crm_inbox_backend/platform/logger"

	"github.com/google/uuid"
)

// ErrDuplicateMessage signals that this delivery was already handled. Not an
// error condition for the caller; the handler reports success with
// wasDuplicate set.
var ErrDuplicateMessage = errors.New("duplicate message")

// Task types produced by the trigger stage.
const (
	TaskConfirmExpiry      = "CONFIRM_EXPIRY"
	TaskCollectNationality = "COLLECT_NATIONALITY"
	TaskQualifyService     = "QUALIFY_SERVICE"
)

// Pipeline runs the full ingestion flow for one inbound message. Stateless;
// safe for concurrent use from many handler goroutines and many processes.
type Pipeline struct {
	dedup         DedupStore
	contacts      ContactStore
	leads         LeadStore
	conversations ConversationStore
	messages      MessageStore
	tasks         TaskStore
	extractor     FieldExtractor
	bus           events.Bus
	log           *logger.Logger
	reuseWindow   time.Duration
}

// NewPipeline wires the pipeline. reuseWindow <= 0 falls back to the default
// 30-day lead reuse window.
func NewPipeline(
	dedup DedupStore,
	contacts ContactStore,
	leads LeadStore,
	conversations ConversationStore,
	messages MessageStore,
	tasks TaskStore,
	extractor FieldExtractor,
	bus events.Bus,
	log *logger.Logger,
	reuseWindow time.Duration,
) *Pipeline {
	if reuseWindow <= 0 {
		reuseWindow = domain.LeadReuseWindow
	}
	return &Pipeline{
		dedup:         dedup,
		contacts:      contacts,
		leads:         leads,
		conversations: conversations,
		messages:      messages,
		tasks:         tasks,
		extractor:     extractor,
		bus:           bus,
		log:           log,
		reuseWindow:   reuseWindow,
	}
}

// Ingest processes one inbound message end to end. Everything up through
// message recording is fail-fast; extraction, merge persistence and task
// creation are best-effort and never erase work already committed.
//
// Returns ErrDuplicateMessage when the dedup claim loses; the whole call is
// safe to retry because every stage is independently idempotent.
func (p *Pipeline) Ingest(ctx context.Context, req transport.InboundMessageRequest) (transport.IngestResult, error) {
	channel, err := domain.ParseChannel(req.Channel)
	if err != nil {
		return transport.IngestResult{}, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	providerMessageID := strings.TrimSpace(req.ProviderMessageID)
	if providerMessageID == "" {
		return transport.IngestResult{}, apperr.Validation("providerMessageId is required")
	}
	messageAt := time.Now().UTC()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		messageAt = req.Timestamp.UTC()
	}

	runID := uuid.NewString()
	log := &logger.Logger{Logger: p.log.WithContext(ctx).WithRunID(runID).With(
		"channel", string(channel),
		"provider_message_id", providerMessageID,
	)}

	claimed, err := p.dedup.Claim(ctx, channel, providerMessageID)
	if err != nil {
		return transport.IngestResult{}, fmt.Errorf("dedup claim: %w", err)
	}
	if !claimed {
		log.Info("duplicate delivery rejected by dedup claim")
		return transport.IngestResult{WasDuplicate: true, ExtractedFields: map[string]any{}}, ErrDuplicateMessage
	}

	identity := NormalizeIdentity(channel, req)
	if !identity.NormalizedOK {
		log.Warn("identifier normalization fell back to raw token", "identifier", identity.Identifier)
	}

	contact, err := p.contacts.Upsert(ctx, identity.Identifier, identity.DisplayName, identity.Email, channel)
	if err != nil {
		return transport.IngestResult{}, fmt.Errorf("resolve contact: %w", err)
	}

	lead, leadCreated, err := p.resolveLead(ctx, contact.ID, channel, providerMessageID, messageAt)
	if err != nil {
		return transport.IngestResult{}, fmt.Errorf("resolve lead: %w", err)
	}

	conversation, err := p.conversations.Upsert(ctx, contact.ID, channel, lead.ID, messageAt, req.Metadata.ThreadID)
	if err != nil {
		return transport.IngestResult{}, fmt.Errorf("resolve conversation: %w", err)
	}

	rawPayload := marshalRawPayload(req.Metadata)
	message, created, err := p.messages.Insert(ctx, domain.Message{
		ConversationID:    conversation.ID,
		LeadID:            lead.ID,
		ContactID:         contact.ID,
		Channel:           channel,
		ProviderMessageID: providerMessageID,
		Direction:         domain.DirectionInbound,
		Body:              req.Text,
		Media:             ResolveMedia(req.Metadata),
		RawPayload:        rawPayload,
		SentAt:            messageAt,
	})
	if err != nil {
		return transport.IngestResult{}, fmt.Errorf("record message: %w", err)
	}
	if !created {
		// A concurrent delivery slipped past the dedup claim and won the
		// message uniqueness race. Already handled.
		log.Info("duplicate delivery rejected by message uniqueness")
		return transport.IngestResult{
			Contact:         contact,
			Conversation:    conversation,
			Lead:            lead,
			Message:         message,
			ExtractedFields: map[string]any{},
			WasDuplicate:    true,
		}, ErrDuplicateMessage
	}

	// Best-effort from here on: failures are logged, never propagated, and
	// never roll back the recorded message.
	if err := p.conversations.IncrementUnread(ctx, conversation.ID); err != nil {
		log.Warn("increment unread failed", "error", err)
	}

	fields := p.extractor.Extract(req.Text)
	extracted := fields.ToMap()

	lead = p.applyMerge(ctx, log, lead, conversation, contact, fields, extracted)

	tasksCreated := p.triggerTasks(ctx, log, lead, conversation, channel, providerMessageID, fields)

	p.publish(contact, conversation, lead, message, channel, leadCreated, tasksCreated, messageAt)

	log.Info("message ingested",
		"message_id", message.ID.String(),
		"lead_id", lead.ID.String(),
		"conversation_id", conversation.ID.String(),
		"lead_created", leadCreated,
		"tasks_created", tasksCreated,
	)

	return transport.IngestResult{
		Contact:         contact,
		Conversation:    conversation,
		Lead:            lead,
		Message:         message,
		ExtractedFields: extracted,
		TasksCreated:    tasksCreated,
	}, nil
}

// resolveLead finds the lead a message belongs to, in priority order:
// a lead already linked to this provider message (defensive idempotency),
// then the most recent open lead inside the reuse window, then a fresh lead.
// The message timestamp, not processing time, drives both the window test
// and lastInboundAt so delayed deliveries do not age a lead early.
func (p *Pipeline) resolveLead(ctx context.Context, contactID uuid.UUID, channel domain.Channel, providerMessageID string, messageAt time.Time) (domain.Lead, bool, error) {
	if existing, err := p.leads.FindByProviderMessage(ctx, channel, providerMessageID); err != nil {
		return domain.Lead{}, false, err
	} else if existing != nil {
		return *existing, false, nil
	}

	cutoff := messageAt.Add(-p.reuseWindow)
	reusable, err := p.leads.FindReusable(ctx, contactID, cutoff)
	if err != nil {
		return domain.Lead{}, false, err
	}
	if reusable != nil {
		if err := p.conversations.RelinkToLead(ctx, contactID, reusable.ID); err != nil {
			return domain.Lead{}, false, err
		}
		if err := p.leads.TouchInbound(ctx, reusable.ID, messageAt); err != nil {
			return domain.Lead{}, false, err
		}
		return *reusable, false, nil
	}

	lead, err := p.leads.Create(ctx, contactID, messageAt)
	if err != nil {
		return domain.Lead{}, false, err
	}
	if err := p.conversations.RelinkToLead(ctx, contactID, lead.ID); err != nil {
		return domain.Lead{}, false, err
	}
	return lead, true, nil
}

// applyMerge folds extracted fields into lead data, conversation known
// fields and empty contact slots, all under the non-destructive merge rule.
// Returns the lead with its merged in-memory state for the result payload.
func (p *Pipeline) applyMerge(ctx context.Context, log *logger.Logger, lead domain.Lead, conversation domain.Conversation, contact domain.Contact, fields extract.Fields, extracted map[string]any) domain.Lead {
	if len(extracted) == 0 {
		return lead
	}

	merged := domain.MergeSafe(lead.Data, extracted)
	var expiryDate *time.Time
	if len(fields.Expiries) > 0 {
		d := fields.Expiries[0].Date
		expiryDate = &d
	}
	if err := p.leads.UpdateMerged(ctx, lead.ID, merged, string(fields.Service), fields.ServiceRaw, fields.BusinessActivityRaw, expiryDate); err != nil {
		log.Warn("lead merge persistence failed", "error", err)
	} else {
		lead.Data = merged
		lead.ServiceType = domain.FirstNonEmpty(string(fields.Service), lead.ServiceType)
		lead.ServiceRaw = domain.FirstNonEmpty(fields.ServiceRaw, lead.ServiceRaw)
		lead.BusinessActivity = domain.FirstNonEmpty(fields.BusinessActivityRaw, lead.BusinessActivity)
		if expiryDate != nil {
			lead.ExpiryDate = expiryDate
		}
	}

	known := domain.MergeSafe(conversation.KnownFields, extracted)
	if err := p.conversations.UpdateKnownFields(ctx, conversation.ID, known); err != nil {
		log.Warn("conversation known-fields persistence failed", "error", err)
	}

	if fields.Identity.Name != "" || fields.Identity.Email != "" || fields.Nationality != "" {
		if err := p.contacts.FillExtractedFields(ctx, contact.ID, fields.Identity.Name, fields.Identity.Email, fields.Nationality); err != nil {
			log.Warn("contact enrichment failed", "error", err)
		}
	}
	return lead
}

// triggerTasks creates follow-up tasks from the extraction outcome. Each
// task's trigger key is providerMessageId + ":" + taskType, so reprocessing
// the same message never duplicates a task. Failures are logged only.
func (p *Pipeline) triggerTasks(ctx context.Context, log *logger.Logger, lead domain.Lead, conversation domain.Conversation, channel domain.Channel, providerMessageID string, fields extract.Fields) int {
	type candidate struct {
		taskType string
		title    string
		dueAt    *time.Time
		question string
	}
	var candidates []candidate

	for _, e := range fields.Expiries {
		due := e.Date
		candidates = append(candidates, candidate{
			taskType: TaskConfirmExpiry + "_" + string(e.Kind),
			title:    "Confirm " + expiryLabel(e.Kind) + " expiry date",
			dueAt:    &due,
		})
	}
	if fields.ExpiryHint != "" && len(fields.Expiries) == 0 {
		candidates = append(candidates, candidate{
			taskType: TaskConfirmExpiry + "_" + string(fields.ExpiryHint),
			title:    "Confirm " + expiryLabel(fields.ExpiryHint) + " expiry date",
		})
	}

	hasService := fields.Service != "" || lead.ServiceType != ""
	hasNationality := fields.Nationality != "" || leadHasNationality(lead)
	if hasService && !hasNationality {
		candidates = append(candidates, candidate{
			taskType: TaskCollectNationality,
			title:    "Collect nationality",
			question: "Collect nationality",
		})
	}
	if !hasService {
		candidates = append(candidates, candidate{
			taskType: TaskQualifyService,
			title:    "Qualify requested service",
			question: "Qualify requested service",
		})
	}

	created := 0
	lastQuestion := ""
	for _, c := range candidates {
		ok, err := p.tasks.CreateIfAbsent(ctx, domain.FollowupTask{
			LeadID:         lead.ID,
			ConversationID: conversation.ID,
			Channel:        channel,
			TaskType:       c.taskType,
			TriggerKey:     providerMessageID + ":" + c.taskType,
			Title:          c.title,
			DueAt:          c.dueAt,
		})
		if err != nil {
			log.Warn("task creation failed", "task_type", c.taskType, "error", err)
			continue
		}
		if ok {
			created++
			if c.question != "" {
				lastQuestion = c.question
			}
		}
	}

	if lastQuestion != "" {
		if err := p.conversations.SetLastQuestion(ctx, conversation.ID, lastQuestion); err != nil {
			log.Warn("last-question update failed", "error", err)
		}
	}
	return created
}

func (p *Pipeline) publish(contact domain.Contact, conversation domain.Conversation, lead domain.Lead, message domain.Message, channel domain.Channel, leadCreated bool, tasksCreated int, messageAt time.Time) {
	if p.bus == nil {
		return
	}
	ctx := context.Background()
	if leadCreated {
		p.bus.Publish(ctx, events.LeadCreated{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			ContactID: contact.ID,
			Channel:   string(channel),
		})
	}
	p.bus.Publish(ctx, events.MessageIngested{
		BaseEvent:      events.NewBaseEvent(),
		MessageID:      message.ID,
		ConversationID: conversation.ID,
		LeadID:         lead.ID,
		ContactID:      contact.ID,
		Channel:        string(channel),
		SentAt:         messageAt,
	})
	if tasksCreated > 0 {
		p.bus.Publish(ctx, events.FollowupTasksCreated{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         lead.ID,
			ConversationID: conversation.ID,
			Channel:        string(channel),
			Count:          tasksCreated,
		})
	}
}

func leadHasNationality(lead domain.Lead) bool {
	if lead.Data == nil {
		return false
	}
	v, ok := lead.Data["nationality"].(string)
	return ok && v != ""
}

func expiryLabel(kind extract.ExpiryKind) string {
	switch kind {
	case extract.ExpiryVisa:
		return "visa"
	case extract.ExpiryEmiratesID:
		return "Emirates ID"
	case extract.ExpiryPassport:
		return "passport"
	case extract.ExpiryTradeLicense:
		return "trade license"
	case extract.ExpiryInsurance:
		return "insurance"
	}
	return strings.ToLower(string(kind))
}

func marshalRawPayload(md transport.InboundMetadata) []byte {
	payload := md.RawPayload
	if len(payload) == 0 {
		payload = md.Payload
	}
	if len(payload) == 0 {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
