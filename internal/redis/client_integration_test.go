package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/aceteam-ai/seqcipher/internal/usage"
)

// setupMiniredis starts a miniredis instance and returns a connected Client.
func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *Client, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	client := NewClient(ClientConfig{
		Channel: "seqcipher:v1:integration-test",
		Stream:  "seqcipher:v1:integration-stream",
	})

	ctx := context.Background()
	if err := client.Connect(ctx, "redis://"+mr.Addr(), ""); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	// Also create a raw go-redis client for assertions
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { raw.Close() })

	return mr, client, raw
}

func testRecords(n int) []usage.CompletionRecord {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := make([]usage.CompletionRecord, n)
	for i := range records {
		records[i] = usage.CompletionRecord{
			ItemKey:     fmt.Sprintf("item-%d", i),
			WorkerID:    "worker-test",
			Status:      usage.StatusSuccess,
			SubmittedAt: base,
			CompletedAt: base.Add(time.Duration(i+1) * 100 * time.Millisecond),
			ElapsedMs:   int64(i+1) * 100,
		}
	}
	return records
}

func TestPublishCompletionsPubSub(t *testing.T) {
	_, client, raw := setupMiniredis(t)
	ctx := context.Background()

	// Subscribe BEFORE publishing (Pub/Sub has no replay)
	pubsub := raw.Subscribe(ctx, client.Channel())
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	records := testRecords(3)
	if err := client.PublishCompletions(ctx, records); err != nil {
		t.Fatalf("PublishCompletions failed: %v", err)
	}

	for i, want := range records {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			t.Fatalf("failed to receive message %d: %v", i, err)
		}

		var event CompletionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if event.ItemKey != want.ItemKey {
			t.Errorf("message %d: ItemKey = %q, want %q", i, event.ItemKey, want.ItemKey)
		}
		if event.ElapsedMs != want.ElapsedMs {
			t.Errorf("message %d: ElapsedMs = %d, want %d", i, event.ElapsedMs, want.ElapsedMs)
		}
		if event.PublisherID != client.PublisherID() {
			t.Errorf("message %d: PublisherID = %q, want %q", i, event.PublisherID, client.PublisherID())
		}
	}
}

func TestPublishCompletionsStream(t *testing.T) {
	_, client, raw := setupMiniredis(t)
	ctx := context.Background()

	if err := client.PublishCompletions(ctx, testRecords(2)); err != nil {
		t.Fatalf("PublishCompletions failed: %v", err)
	}

	entries, err := raw.XRange(ctx, client.Stream(), "-", "+").Result()
	if err != nil {
		t.Fatalf("XRange failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("stream has %d entries, want 2", len(entries))
	}
	for i, entry := range entries {
		want := fmt.Sprintf("item-%d", i)
		if entry.Values["itemKey"] != want {
			t.Errorf("entry %d itemKey = %v, want %s", i, entry.Values["itemKey"], want)
		}
		if entry.Values["type"] != "completed" {
			t.Errorf("entry %d type = %v, want completed", i, entry.Values["type"])
		}
	}
}

func TestPublishCompletionsStatusHash(t *testing.T) {
	mr, client, raw := setupMiniredis(t)
	ctx := context.Background()

	records := testRecords(1)
	records[0].Status = usage.StatusFailed
	records[0].ErrorMessage = "transform failed: boom"

	if err := client.PublishCompletions(ctx, records); err != nil {
		t.Fatalf("PublishCompletions failed: %v", err)
	}

	key := StatusKey("item-0")
	fields, err := raw.HGetAll(ctx, key).Result()
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	if fields["status"] != "failed" {
		t.Errorf("status = %q, want failed", fields["status"])
	}
	if fields["elapsed_ms"] != "100" {
		t.Errorf("elapsed_ms = %q, want 100", fields["elapsed_ms"])
	}
	if fields["worker_id"] != "worker-test" {
		t.Errorf("worker_id = %q, want worker-test", fields["worker_id"])
	}

	if ttl := mr.TTL(key); ttl <= 0 {
		t.Errorf("status hash TTL = %v, want > 0", ttl)
	}
}

func TestPublishCompletionsEmptyBatch(t *testing.T) {
	_, client, raw := setupMiniredis(t)
	ctx := context.Background()

	if err := client.PublishCompletions(ctx, nil); err != nil {
		t.Fatalf("PublishCompletions(nil) = %v", err)
	}

	n, err := raw.Exists(ctx, client.Stream()).Result()
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Error("empty batch created the stream")
	}
}

func TestConnectBadURL(t *testing.T) {
	client := NewClient(ClientConfig{})
	if err := client.Connect(context.Background(), "not-a-url://", ""); err == nil {
		t.Fatal("expected error for malformed URL")
	}
}

func TestSyncerMirrorsLedger(t *testing.T) {
	_, client, raw := setupMiniredis(t)
	ctx := context.Background()

	store, err := usage.OpenStore(t.TempDir() + "/ledger.db")
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	defer store.Close()

	for _, r := range testRecords(3) {
		if err := store.Insert(r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	syncer := usage.NewSyncer(usage.SyncerConfig{
		Store:     store,
		PublishFn: client.PublishCompletions,
		BatchSize: 2,
		LogFn:     func(string, string) {},
	})
	if err := syncer.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	n, err := raw.XLen(ctx, client.Stream()).Result()
	if err != nil {
		t.Fatalf("XLen failed: %v", err)
	}
	if n != 3 {
		t.Errorf("stream length = %d, want 3", n)
	}

	summary, err := store.Summarize()
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.Unsynced != 0 {
		t.Errorf("Unsynced = %d, want 0", summary.Unsynced)
	}
}
