// Package redis mirrors completed items to Redis so other processes can
// observe the pipeline without touching it.
//
// Each completion is:
//
//   - published as a JSON event on a Pub/Sub channel for live subscribers
//   - appended to a capped stream for late readers
//   - stored as a status hash keyed by the item key
//
// Mirroring is fed from the local completion ledger in batches, never from the
// worker loop itself, so a slow or unreachable Redis cannot stall processing.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aceteam-ai/seqcipher/internal/usage"
)

// Default names used when the config leaves them empty.
const (
	DefaultChannel = "seqcipher:v1:completions"
	DefaultStream  = "seqcipher:v1:completed"
	DefaultMaxLen  = 10000
	statusTTL      = 24 * time.Hour
)

// CompletionEvent is the JSON document published for every completion.
type CompletionEvent struct {
	Version     string `json:"version"`
	Type        string `json:"type"` // "completed", "failed"
	ItemKey     string `json:"itemKey"`
	WorkerID    string `json:"workerId"`
	PublisherID string `json:"publisherId"`
	SubmittedAt string `json:"submittedAt"`
	CompletedAt string `json:"completedAt"`
	ElapsedMs   int64  `json:"elapsedMs"`
	Error       string `json:"error,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Client wraps the Redis operations used by the mirror.
type Client struct {
	client      *redis.Client
	publisherID string
	channel     string
	stream      string
	maxLen      int64
}

// ClientConfig holds configuration for the Redis client.
type ClientConfig struct {
	Channel string
	Stream  string
	MaxLen  int64
}

// NewClient creates a new, unconnected Redis client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.MaxLen == 0 {
		cfg.MaxLen = DefaultMaxLen
	}

	return &Client{
		publisherID: fmt.Sprintf("seqcipher-%s", uuid.New().String()[:8]),
		channel:     cfg.Channel,
		stream:      cfg.Stream,
		maxLen:      cfg.MaxLen,
	}
}

// Connect establishes connection to Redis.
func (c *Client) Connect(ctx context.Context, url, password string) error {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if password != "" {
		opts.Password = password
	}

	c.client = redis.NewClient(opts)

	// Verify connection
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.client.Close()
		c.client = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return nil
}

// NewEvent converts a ledger record into the published event.
func (c *Client) NewEvent(r usage.CompletionRecord) CompletionEvent {
	eventType := "completed"
	if r.Status == usage.StatusFailed {
		eventType = "failed"
	}
	return CompletionEvent{
		Version:     "1.0",
		Type:        eventType,
		ItemKey:     r.ItemKey,
		WorkerID:    r.WorkerID,
		PublisherID: c.publisherID,
		SubmittedAt: r.SubmittedAt.UTC().Format(time.RFC3339Nano),
		CompletedAt: r.CompletedAt.UTC().Format(time.RFC3339Nano),
		ElapsedMs:   r.ElapsedMs,
		Error:       r.ErrorMessage,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// PublishCompletions mirrors a batch of records in a single round trip.
// Its signature matches usage.PublishFunc.
func (c *Client) PublishCompletions(ctx context.Context, records []usage.CompletionRecord) error {
	if c.client == nil {
		return fmt.Errorf("redis client not connected")
	}
	if len(records) == 0 {
		return nil
	}

	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range records {
			event := c.NewEvent(r)
			eventJSON, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to marshal completion event: %w", err)
			}

			pipe.Publish(ctx, c.channel, eventJSON)
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: c.stream,
				MaxLen: c.maxLen,
				Approx: true,
				Values: map[string]interface{}{
					"itemKey": event.ItemKey,
					"type":    event.Type,
					"event":   string(eventJSON),
				},
			})

			statusKey := StatusKey(r.ItemKey)
			pipe.HSet(ctx, statusKey, map[string]interface{}{
				"status":       event.Type,
				"elapsed_ms":   event.ElapsedMs,
				"worker_id":    event.WorkerID,
				"completed_at": event.CompletedAt,
			})
			pipe.Expire(ctx, statusKey, statusTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mirror %d completions: %w", len(records), err)
	}
	return nil
}

// StatusKey returns the hash key holding an item's status.
func StatusKey(itemKey string) string {
	return fmt.Sprintf("item:%s:status", itemKey)
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// PublisherID returns the unique identifier of this publisher.
func (c *Client) PublisherID() string {
	return c.publisherID
}

// Channel returns the Pub/Sub channel completions are published on.
func (c *Client) Channel() string {
	return c.channel
}

// Stream returns the stream completions are appended to.
func (c *Client) Stream() string {
	return c.stream
}
