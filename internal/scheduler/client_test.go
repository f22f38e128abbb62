package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string          { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool    { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string    { return "test" }
func (c testSchedulerConfig) GetAsynqConcurrency() int     { return 1 }

func TestClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(testSchedulerConfig{}); err == nil {
		t.Fatal("expected error when redis url is empty")
	}
}

func TestClientEnqueue(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(testSchedulerConfig{redisURL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.EnqueueLeadForecastRecompute(ctx, LeadForecastRecomputePayload{LeadID: "8f2d9a40-0000-0000-0000-000000000001"}); err != nil {
		t.Fatalf("enqueue forecast: %v", err)
	}
	if err := client.EnqueueFollowupNotify(ctx, FollowupNotifyPayload{
		LeadID:         "8f2d9a40-0000-0000-0000-000000000001",
		ConversationID: "8f2d9a40-0000-0000-0000-000000000002",
		Channel:        "WHATSAPP",
		Count:          2,
	}); err != nil {
		t.Fatalf("enqueue notify: %v", err)
	}

	// asynq stores pending task ids in the queue's pending list.
	if keys := srv.Keys(); len(keys) == 0 {
		t.Fatal("no keys written to redis after enqueue")
	}
}

func TestTaskPayloadRoundTrip(t *testing.T) {
	task, err := NewFollowupNotifyTask(FollowupNotifyPayload{
		LeadID:         "a",
		ConversationID: "b",
		Channel:        "EMAIL",
		Count:          3,
	})
	if err != nil {
		t.Fatalf("NewFollowupNotifyTask: %v", err)
	}
	got, err := ParseFollowupNotifyPayload(task)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.LeadID != "a" || got.ConversationID != "b" || got.Channel != "EMAIL" || got.Count != 3 {
		t.Errorf("payload mismatch: %+v", got)
	}
}
