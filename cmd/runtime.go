// cmd/runtime.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/aceteam-ai/seqcipher/internal/cipher"
	"github.com/aceteam-ai/seqcipher/internal/message"
	"github.com/aceteam-ai/seqcipher/internal/redis"
	"github.com/aceteam-ai/seqcipher/internal/status"
	"github.com/aceteam-ai/seqcipher/internal/usage"
	"github.com/aceteam-ai/seqcipher/internal/worker"
)

// debugLog sends activity lines to the debug log only.
func debugLog(level, msg string) {
	Debug("%s: %s", level, msg)
}

// consoleLog prints warnings and errors to stderr and keeps the rest in the
// debug log, so headless output stays readable.
func consoleLog(level, msg string) {
	debugLog(level, msg)
	switch level {
	case "error":
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", msg)
	case "warning":
		color.New(color.FgYellow).Fprintf(os.Stderr, "⚠ %s\n", msg)
	}
}

// runtime holds what every pipeline-running command shares: the cipher, the
// completion ledger, and the optional Redis mirror.
type runtime struct {
	cipher   *cipher.Cipher
	store    *usage.Store
	redis    *redis.Client
	syncer   *usage.Syncer
	logFn    func(level, msg string)
	workerID string
}

// openRuntime builds the runtime from the resolved flags and config file.
func openRuntime(ctx context.Context, logFn func(level, msg string)) (*runtime, error) {
	pass := passphrase
	if pass == "" {
		logFn("warning", "No passphrase set; using the built-in default")
		pass = cipher.DefaultPassphrase
	}
	c, err := cipher.New(pass)
	if err != nil {
		return nil, fmt.Errorf("failed to set up cipher: %w", err)
	}

	rt := &runtime{
		cipher:   c,
		logFn:    logFn,
		workerID: fmt.Sprintf("seqcipher-%s", uuid.NewString()[:8]),
	}

	if path := ledgerPath(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger directory: %w", err)
		}
		store, err := usage.OpenStore(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open completion ledger: %w", err)
		}
		rt.store = store
		Debug("ledger: %s", path)
	}

	if redisURL != "" {
		if rt.store == nil {
			logFn("warning", "Redis mirror reads from the completion ledger; --redis-url ignored with --no-ledger")
			return rt, nil
		}
		client := redis.NewClient(redis.ClientConfig{Channel: redisChannel})
		if err := client.Connect(ctx, redisURL, redisPassword); err != nil {
			rt.Close()
			return nil, err
		}
		rt.redis = client
		rt.syncer = usage.NewSyncer(usage.SyncerConfig{
			Store:     rt.store,
			PublishFn: client.PublishCompletions,
			Interval:  syncInterval,
			LogFn:     logFn,
		})
		Debug("redis mirror: channel=%s stream=%s", client.Channel(), client.Stream())
	}

	return rt, nil
}

// transform is the cipher, slowed down by --delay.
func (rt *runtime) transform() worker.Transform[message.Message] {
	return cipher.Slow(rt.cipher.Transform, transformDelay)
}

// workerConfig returns the worker settings, recording completions in the
// ledger when it is enabled.
func (rt *runtime) workerConfig(activityFn func(level, msg string)) worker.Config {
	cfg := worker.Config{
		WorkerID:   rt.workerID,
		ActivityFn: activityFn,
		SizeFn:     payloadSize,
	}
	if rt.store != nil {
		cfg.RecordFn = func(r usage.CompletionRecord) {
			if err := rt.store.Insert(r); err != nil {
				rt.logFn("warning", fmt.Sprintf("Ledger insert failed: %v", err))
			}
		}
	}
	return cfg
}

// collector samples the pipeline (if any), the ledger and the host.
func (rt *runtime) collector(p *worker.Pipeline[message.Message]) *status.Collector {
	var cfg status.CollectorConfig
	if p != nil {
		cfg.PipelineFn = func() status.PipelineStats {
			w := p.Worker()
			return status.PipelineStats{
				WorkerID:    rt.workerID,
				WorkerState: w.State().String(),
				Queued:      p.Pending(),
				Processed:   w.Processed(),
			}
		}
	}
	if rt.store != nil {
		cfg.Ledger = rt.store
	}
	return status.NewCollector(cfg)
}

// startBackground runs the Redis syncer and the status server until ctx is
// cancelled. The returned func waits for both to finish.
func (rt *runtime) startBackground(ctx context.Context, p *worker.Pipeline[message.Message]) (wait func()) {
	var wg sync.WaitGroup

	if rt.syncer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt.syncer.Start(ctx)
		}()
	}

	if statusPort > 0 {
		server := status.NewServer(status.ServerConfig{Port: statusPort, Version: Version}, rt.collector(p))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				rt.logFn("error", fmt.Sprintf("Status server stopped: %v", err))
			}
		}()
		Debug("status server: http://127.0.0.1:%d/status", server.Port())
	}

	return wg.Wait
}

// Close releases the ledger and the Redis connection.
func (rt *runtime) Close() {
	if rt.redis != nil {
		rt.redis.Close()
	}
	if rt.store != nil {
		rt.store.Close()
	}
}

func payloadSize(payload any) int64 {
	if m, ok := payload.(message.Message); ok {
		return int64(len(m.Text))
	}
	return 0
}
