package usage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// PublishFunc mirrors a batch of completion records to an external system (e.g., Redis).
// It should return an error if the publish fails.
type PublishFunc func(ctx context.Context, records []CompletionRecord) error

// errNoPublisher is returned when a Syncer has nowhere to send records.
var errNoPublisher = errors.New("no publish function configured")

// SyncerConfig holds configuration for the background syncer.
type SyncerConfig struct {
	// Store is the local completion ledger
	Store *Store

	// PublishFn sends records to the external system
	PublishFn PublishFunc

	// Interval between sync cycles (default: 5s)
	Interval time.Duration

	// BatchSize is the max records per sync cycle (default: 50)
	BatchSize int

	// FlushTimeout bounds the final flush after the loop is cancelled (default: 2s)
	FlushTimeout time.Duration

	// LogFn is called for log messages (optional)
	LogFn func(level, msg string)
}

// Syncer periodically mirrors unsynced completion records to an external system.
type Syncer struct {
	store        *Store
	publishFn    PublishFunc
	interval     time.Duration
	batchSize    int
	flushTimeout time.Duration
	logFn        func(level, msg string)
}

// NewSyncer creates a new ledger syncer.
func NewSyncer(cfg SyncerConfig) *Syncer {
	interval := cfg.Interval
	if interval == 0 {
		interval = 5 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize == 0 {
		batchSize = 50
	}
	flushTimeout := cfg.FlushTimeout
	if flushTimeout == 0 {
		flushTimeout = 2 * time.Second
	}
	return &Syncer{
		store:        cfg.Store,
		publishFn:    cfg.PublishFn,
		interval:     interval,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		logFn:        cfg.LogFn,
	}
}

// Start runs the sync loop until the context is cancelled, then makes a
// bounded attempt to flush whatever is still unsynced.
func (s *Syncer) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.flushTimeout)
			if err := s.Flush(flushCtx); err != nil {
				s.log("warning", fmt.Sprintf("ledger sync: final flush incomplete: %v", err))
			}
			cancel()
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.syncOnce(ctx); err != nil {
				s.log("warning", err.Error())
			}
		}
	}
}

// SyncOnce performs a single sync cycle and returns how many records were mirrored.
func (s *Syncer) SyncOnce(ctx context.Context) (int, error) {
	return s.syncOnce(ctx)
}

// Flush repeats sync cycles until the ledger has no unsynced records.
func (s *Syncer) Flush(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.syncOnce(ctx)
		if err != nil {
			return err
		}
		if n < s.batchSize {
			return nil
		}
	}
}

func (s *Syncer) syncOnce(ctx context.Context) (int, error) {
	if s.publishFn == nil {
		return 0, errNoPublisher
	}

	records, err := s.store.QueryUnsynced(s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("ledger sync: query failed: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := s.publishFn(ctx, records); err != nil {
		return 0, fmt.Errorf("ledger sync: publish failed (%d records): %w", len(records), err)
	}

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	if err := s.store.MarkSynced(ids); err != nil {
		return 0, fmt.Errorf("ledger sync: mark synced failed: %w", err)
	}

	s.log("info", fmt.Sprintf("ledger sync: published %d records", len(records)))
	return len(records), nil
}

func (s *Syncer) log(level, msg string) {
	if s.logFn != nil {
		s.logFn(level, msg)
	}
}
