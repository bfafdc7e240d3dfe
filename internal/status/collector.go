package status

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aceteam-ai/seqcipher/internal/usage"
)

// Ledger is the read side of the completion ledger.
type Ledger interface {
	Summarize() (usage.Summary, error)
	Recent(limit int) ([]usage.CompletionRecord, error)
}

// Collector gathers status from the pipeline, the ledger and the host.
type Collector struct {
	pipelineFn func() PipelineStats
	ledger     Ledger
	cpuSample  time.Duration
	startTime  time.Time
}

// CollectorConfig holds configuration for the status collector.
type CollectorConfig struct {
	// PipelineFn reports the live pipeline (optional)
	PipelineFn func() PipelineStats

	// Ledger is the completion store (optional)
	Ledger Ledger

	// CPUSample is how long cpu.Percent samples (default: 100ms)
	CPUSample time.Duration
}

// NewCollector creates a new status collector.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.CPUSample == 0 {
		cfg.CPUSample = 100 * time.Millisecond
	}
	return &Collector{
		pipelineFn: cfg.PipelineFn,
		ledger:     cfg.Ledger,
		cpuSample:  cfg.CPUSample,
		startTime:  time.Now(),
	}
}

// Collect gathers all metrics and returns a Snapshot.
// A ledger error fails the collection; host metrics are best effort.
func (c *Collector) Collect() (*Snapshot, error) {
	snap := &Snapshot{
		Version:   StatusVersion,
		Timestamp: time.Now().UTC(),
		Uptime:    int64(time.Since(c.startTime).Seconds()),
		System:    c.CollectSystem(),
	}

	if c.pipelineFn != nil {
		snap.Pipeline = c.pipelineFn()
	}

	if c.ledger != nil {
		summary, err := c.ledger.Summarize()
		if err != nil {
			return nil, err
		}
		snap.Ledger = newLedgerSummary(summary)
	}

	return snap, nil
}

// Recent returns the newest ledger rows, newest first.
func (c *Collector) Recent(limit int) ([]CompletionView, error) {
	if c.ledger == nil {
		return []CompletionView{}, nil
	}
	records, err := c.ledger.Recent(limit)
	if err != nil {
		return nil, err
	}
	views := make([]CompletionView, 0, len(records))
	for _, r := range records {
		views = append(views, newCompletionView(r))
	}
	return views, nil
}

// CollectSystem gathers CPU and memory utilization.
func (c *Collector) CollectSystem() SystemMetrics {
	var metrics SystemMetrics

	// Memory
	if v, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryUsedGB = float64(v.Used) / (1024 * 1024 * 1024)
		metrics.MemoryTotalGB = float64(v.Total) / (1024 * 1024 * 1024)
		metrics.MemoryPercent = v.UsedPercent
	}

	// CPU
	if percentages, err := cpu.Percent(c.cpuSample, false); err == nil && len(percentages) > 0 {
		metrics.CPUPercent = percentages[0]
	}

	return metrics
}
