package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crm_inbox_backend/internal/extract"
	"crm_inbox_backend/internal/ingest/domain"
	"crm_inbox_backend/internal/ingest/transport"
	"crm_inbox_backend/platform/apperr"
	"crm_inbox_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore is an in-memory implementation of every pipeline store with the
// same uniqueness semantics as the database schema.
type fakeStore struct {
	mu            sync.Mutex
	claims        map[string]bool
	contacts      map[string]domain.Contact
	leads         map[uuid.UUID]domain.Lead
	conversations map[string]domain.Conversation
	messages      map[string]domain.Message
	tasks         map[string]domain.FollowupTask
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		claims:        map[string]bool{},
		contacts:      map[string]domain.Contact{},
		leads:         map[uuid.UUID]domain.Lead{},
		conversations: map[string]domain.Conversation{},
		messages:      map[string]domain.Message{},
		tasks:         map[string]domain.FollowupTask{},
	}
}

func messageKey(channel domain.Channel, pmid string) string {
	return string(channel) + "|" + pmid
}

func conversationKey(contactID uuid.UUID, channel domain.Channel) string {
	return contactID.String() + "|" + string(channel)
}

func (f *fakeStore) Claim(_ context.Context, channel domain.Channel, pmid string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := messageKey(channel, pmid)
	if f.claims[key] {
		return false, nil
	}
	f.claims[key] = true
	return true, nil
}

func (f *fakeStore) Upsert(_ context.Context, identifier, displayName, email string, channel domain.Channel) (domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.contacts[identifier]; ok {
		if c.DisplayName == "" {
			c.DisplayName = displayName
		}
		if c.Email == "" {
			c.Email = email
		}
		f.contacts[identifier] = c
		return c, nil
	}
	c := domain.Contact{
		ID:            uuid.New(),
		Identifier:    identifier,
		DisplayName:   displayName,
		Email:         email,
		SourceChannel: channel,
		CreatedAt:     time.Now(),
	}
	f.contacts[identifier] = c
	return c, nil
}

func (f *fakeStore) FillExtractedFields(_ context.Context, contactID uuid.UUID, displayName, email, nationality string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.contacts {
		if c.ID != contactID {
			continue
		}
		if c.DisplayName == "" {
			c.DisplayName = displayName
		}
		if c.Email == "" {
			c.Email = email
		}
		if c.Nationality == "" {
			c.Nationality = nationality
		}
		f.contacts[id] = c
	}
	return nil
}

func (f *fakeStore) FindByProviderMessage(_ context.Context, channel domain.Channel, pmid string) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[messageKey(channel, pmid)]
	if !ok {
		return nil, nil
	}
	lead, ok := f.leads[msg.LeadID]
	if !ok {
		return nil, nil
	}
	return &lead, nil
}

func (f *fakeStore) FindReusable(_ context.Context, contactID uuid.UUID, createdAfter time.Time) (*domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *domain.Lead
	for id := range f.leads {
		lead := f.leads[id]
		if lead.ContactID != contactID || !lead.Stage.IsOpen() || lead.CreatedAt.Before(createdAfter) {
			continue
		}
		if best == nil || lead.CreatedAt.After(best.CreatedAt) {
			copied := lead
			best = &copied
		}
	}
	return best, nil
}

func (f *fakeStore) Create(_ context.Context, contactID uuid.UUID, lastInboundAt time.Time) (domain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := domain.Lead{
		ID:            uuid.New(),
		ContactID:     contactID,
		Stage:         domain.StageNew,
		Data:          map[string]any{},
		LastInboundAt: &lastInboundAt,
		CreatedAt:     time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeStore) TouchInbound(_ context.Context, leadID uuid.UUID, messageAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return errors.New("lead not found")
	}
	if lead.LastInboundAt == nil || lead.LastInboundAt.Before(messageAt) {
		lead.LastInboundAt = &messageAt
	}
	f.leads[leadID] = lead
	return nil
}

func (f *fakeStore) UpdateMerged(_ context.Context, leadID uuid.UUID, data map[string]any, serviceType, serviceRaw, businessActivity string, expiryDate *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return errors.New("lead not found")
	}
	lead.Data = data
	if serviceType != "" {
		lead.ServiceType = serviceType
	}
	if serviceRaw != "" {
		lead.ServiceRaw = serviceRaw
	}
	if businessActivity != "" {
		lead.BusinessActivity = businessActivity
	}
	if expiryDate != nil {
		lead.ExpiryDate = expiryDate
	}
	f.leads[leadID] = lead
	return nil
}

func (f *fakeStore) UpsertConversation(_ context.Context, contactID uuid.UUID, channel domain.Channel, leadID uuid.UUID, messageAt time.Time, externalThreadID string) (domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := conversationKey(contactID, channel)
	if conv, ok := f.conversations[key]; ok {
		conv.LeadID = leadID
		conv.Status = domain.ConversationOpen
		if conv.LastInboundAt == nil || conv.LastInboundAt.Before(messageAt) {
			conv.LastInboundAt = &messageAt
		}
		if conv.ExternalThreadID == "" {
			conv.ExternalThreadID = externalThreadID
		}
		f.conversations[key] = conv
		return conv, nil
	}
	conv := domain.Conversation{
		ID:               uuid.New(),
		ContactID:        contactID,
		Channel:          channel,
		LeadID:           leadID,
		Status:           domain.ConversationOpen,
		LastInboundAt:    &messageAt,
		KnownFields:      map[string]any{},
		ExternalThreadID: externalThreadID,
		CreatedAt:        time.Now(),
	}
	f.conversations[key] = conv
	return conv, nil
}

func (f *fakeStore) RelinkToLead(_ context.Context, contactID, leadID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, conv := range f.conversations {
		if conv.ContactID == contactID && conv.LeadID != leadID {
			conv.LeadID = leadID
			f.conversations[key] = conv
		}
	}
	return nil
}

func (f *fakeStore) IncrementUnread(_ context.Context, conversationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, conv := range f.conversations {
		if conv.ID == conversationID {
			conv.UnreadCount++
			f.conversations[key] = conv
		}
	}
	return nil
}

func (f *fakeStore) UpdateKnownFields(_ context.Context, conversationID uuid.UUID, knownFields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, conv := range f.conversations {
		if conv.ID == conversationID {
			conv.KnownFields = knownFields
			f.conversations[key] = conv
		}
	}
	return nil
}

func (f *fakeStore) SetLastQuestion(_ context.Context, conversationID uuid.UUID, question string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, conv := range f.conversations {
		if conv.ID == conversationID {
			conv.LastQuestion = question
			f.conversations[key] = conv
		}
	}
	return nil
}

func (f *fakeStore) Insert(_ context.Context, msg domain.Message) (domain.Message, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := messageKey(msg.Channel, msg.ProviderMessageID)
	if existing, ok := f.messages[key]; ok {
		return existing, false, nil
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	f.messages[key] = msg
	return msg, true, nil
}

func (f *fakeStore) CreateIfAbsent(_ context.Context, task domain.FollowupTask) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[task.TriggerKey]; ok {
		return false, nil
	}
	task.ID = uuid.New()
	task.Status = "open"
	task.CreatedAt = time.Now()
	f.tasks[task.TriggerKey] = task
	return true, nil
}

// conversationAdapter bridges the fake's UpsertConversation to the
// ConversationStore interface, whose method is named Upsert like the
// contact store's.
type conversationAdapter struct{ *fakeStore }

func (a conversationAdapter) Upsert(ctx context.Context, contactID uuid.UUID, channel domain.Channel, leadID uuid.UUID, messageAt time.Time, externalThreadID string) (domain.Conversation, error) {
	return a.UpsertConversation(ctx, contactID, channel, leadID, messageAt, externalThreadID)
}

func newTestPipeline(store *fakeStore) *Pipeline {
	return NewPipeline(
		store, store, store, conversationAdapter{store}, store, store,
		extract.New(), nil, logger.New("development"), 0,
	)
}

func whatsappRequest(pmid, phone, text string, at time.Time) transport.InboundMessageRequest {
	return transport.InboundMessageRequest{
		Channel:           "whatsapp",
		ProviderMessageID: pmid,
		FromPhone:         phone,
		Text:              text,
		Timestamp:         &at,
	}
}

func TestIngestDuplicateRetry(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)
	at := time.Now().UTC()

	first, err := p.Ingest(context.Background(), whatsappRequest("wamid.X", "0501234567", "hello", at))
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.WasDuplicate {
		t.Fatal("first ingest reported duplicate")
	}

	second, err := p.Ingest(context.Background(), whatsappRequest("wamid.X", "0501234567", "hello", at))
	if !errors.Is(err, ErrDuplicateMessage) {
		t.Fatalf("second ingest: got err %v, want ErrDuplicateMessage", err)
	}
	if !second.WasDuplicate {
		t.Fatal("second ingest did not report duplicate")
	}

	if got := len(store.messages); got != 1 {
		t.Errorf("messages = %d, want 1", got)
	}
	if got := len(store.leads); got != 1 {
		t.Errorf("leads = %d, want 1", got)
	}
	if got := len(store.conversations); got != 1 {
		t.Errorf("conversations = %d, want 1", got)
	}
}

func TestIngestConcurrentDeliveries(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)
	at := time.Now().UTC()

	const deliveries = 16
	errs := make([]error, deliveries)
	var wg sync.WaitGroup
	wg.Add(deliveries)
	for i := 0; i < deliveries; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := p.Ingest(context.Background(), whatsappRequest("wamid.C", "0501234567", "hello", at))
			errs[i] = err
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrDuplicateMessage):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
	if got := len(store.messages); got != 1 {
		t.Errorf("messages = %d, want 1", got)
	}
	if got := len(store.leads); got != 1 {
		t.Errorf("leads = %d, want 1", got)
	}
	if got := len(store.tasks); got != 1 {
		t.Errorf("tasks = %d, want 1", got)
	}
}

func TestIngestTwoMessagesShareConversationAndLead(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)
	at := time.Now().UTC()

	first, err := p.Ingest(context.Background(), whatsappRequest("wamid.1", "0501234567", "hi", at))
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := p.Ingest(context.Background(), whatsappRequest("wamid.2", "0501234567", "one more thing", at.Add(time.Minute)))
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if first.Conversation.ID != second.Conversation.ID {
		t.Error("messages landed in different conversations")
	}
	if first.Lead.ID != second.Lead.ID {
		t.Error("messages landed on different leads")
	}
	if got := len(store.messages); got != 2 {
		t.Errorf("messages = %d, want 2", got)
	}
}

func TestIngestLeadReuseWindow(t *testing.T) {
	tests := []struct {
		name     string
		age      time.Duration
		stage    domain.LeadStage
		wantNew  bool
	}{
		{"open lead inside window", 29 * 24 * time.Hour, domain.StageQualifying, false},
		{"open lead outside window", 31 * 24 * time.Hour, domain.StageQualifying, true},
		{"won lead inside window", time.Hour, domain.StageCompletedWon, true},
		{"lost lead inside window", time.Hour, domain.StageLost, true},
		{"on-hold lead inside window", time.Hour, domain.StageOnHold, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			p := newTestPipeline(store)
			at := time.Now().UTC()

			contact, err := store.Upsert(context.Background(), "+971501234567", "", "", domain.ChannelWhatsApp)
			if err != nil {
				t.Fatal(err)
			}
			existing := domain.Lead{
				ID:        uuid.New(),
				ContactID: contact.ID,
				Stage:     tc.stage,
				Data:      map[string]any{},
				CreatedAt: at.Add(-tc.age),
			}
			store.leads[existing.ID] = existing

			res, err := p.Ingest(context.Background(), whatsappRequest("wamid.R", "0501234567", "hello again", at))
			if err != nil {
				t.Fatalf("ingest: %v", err)
			}

			if tc.wantNew && res.Lead.ID == existing.ID {
				t.Error("reused a lead that should have been replaced")
			}
			if !tc.wantNew && res.Lead.ID != existing.ID {
				t.Error("created a new lead instead of reusing the open one")
			}
		})
	}
}

func TestIngestExtractionMergesIntoLead(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)
	at := time.Now().UTC()

	res, err := p.Ingest(context.Background(), whatsappRequest("wamid.E1", "0501234567", "I need a freelance visa, I am Indian", at))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Lead.ServiceType != "FREELANCE_VISA" {
		t.Errorf("lead serviceType = %q, want FREELANCE_VISA", res.Lead.ServiceType)
	}
	if got := res.Lead.Data["nationality"]; got != "Indian" {
		t.Errorf("lead nationality = %v, want Indian", got)
	}

	// A later message with no extractable content must not blank anything.
	res2, err := p.Ingest(context.Background(), whatsappRequest("wamid.E2", "0501234567", "ok thanks", at.Add(time.Minute)))
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if got := res2.Lead.Data["nationality"]; got != "Indian" {
		t.Errorf("nationality after empty extraction = %v, want Indian", got)
	}
	if res2.Lead.ServiceType != "FREELANCE_VISA" {
		t.Errorf("serviceType after empty extraction = %q, want FREELANCE_VISA", res2.Lead.ServiceType)
	}
}

func TestIngestTaskTrigger(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)
	at := time.Now().UTC()

	// Expiry present: confirm-expiry task. Service present, nationality
	// absent: collect-nationality task.
	res, err := p.Ingest(context.Background(), whatsappRequest("wamid.T1", "0501234567", "I need a golden visa, my visa expires on 10/02/2027", at))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.TasksCreated != 2 {
		t.Fatalf("tasksCreated = %d, want 2", res.TasksCreated)
	}
	if _, ok := store.tasks["wamid.T1:CONFIRM_EXPIRY_VISA"]; !ok {
		t.Error("missing confirm-expiry task")
	}
	if _, ok := store.tasks["wamid.T1:COLLECT_NATIONALITY"]; !ok {
		t.Error("missing collect-nationality task")
	}

	// No service in text and none on the lead: qualify task.
	store2 := newFakeStore()
	p2 := newTestPipeline(store2)
	res2, err := p2.Ingest(context.Background(), whatsappRequest("wamid.T2", "0507654321", "hello, can you help me?", at))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res2.TasksCreated != 1 {
		t.Fatalf("tasksCreated = %d, want 1", res2.TasksCreated)
	}
	if _, ok := store2.tasks["wamid.T2:QUALIFY_SERVICE"]; !ok {
		t.Error("missing qualify-service task")
	}
}

func TestIngestRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  transport.InboundMessageRequest
	}{
		{"unknown channel", transport.InboundMessageRequest{Channel: "telegram", ProviderMessageID: "x"}},
		{"blank provider message id", transport.InboundMessageRequest{Channel: "WHATSAPP", ProviderMessageID: "   "}},
	}

	p := newTestPipeline(newFakeStore())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Ingest(context.Background(), tc.req)
			if err == nil {
				t.Fatal("expected error")
			}
			// Caller input problems must surface as validation errors, not as
			// retryable internal failures.
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("error kind = %v, want KindValidation", apperr.GetKind(err))
			}
		})
	}
}

func TestIngestDefaultsTimestamp(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store)

	before := time.Now().UTC()
	res, err := p.Ingest(context.Background(), transport.InboundMessageRequest{
		Channel:           "WHATSAPP",
		ProviderMessageID: "wamid.TS",
		FromPhone:         "0501234567",
		Text:              "no timestamp on this one",
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Message.SentAt.Before(before) {
		t.Errorf("sentAt %v predates the call", res.Message.SentAt)
	}
}
