// Package status reports what a running pipeline is doing.
//
// Architecture:
//   - Collector samples the pipeline, the completion ledger and the host
//   - Server exposes the samples over HTTP for local tooling
//   - The TUI footer reads the same host metrics through Collector
package status

import (
	"time"

	"github.com/aceteam-ai/seqcipher/internal/usage"
)

// Snapshot is the payload returned from the /status endpoint.
type Snapshot struct {
	Version   string         `json:"version"`
	Timestamp time.Time      `json:"timestamp"`
	Uptime    int64          `json:"uptime_seconds"`
	Pipeline  PipelineStats  `json:"pipeline"`
	Ledger    *LedgerSummary `json:"ledger,omitempty"`
	System    SystemMetrics  `json:"system"`
}

// PipelineStats describes the queue and its worker.
type PipelineStats struct {
	WorkerID    string `json:"worker_id"`
	WorkerState string `json:"worker_state"` // "idle", "processing", "stopping", ...
	Queued      int    `json:"queued"`
	Processed   int64  `json:"processed"`
}

// LedgerSummary mirrors usage.Summary for the wire.
type LedgerSummary struct {
	Total        int64   `json:"total"`
	Failed       int64   `json:"failed"`
	AvgElapsedMs float64 `json:"avg_elapsed_ms"`
	MaxElapsedMs int64   `json:"max_elapsed_ms"`
	Unsynced     int64   `json:"unsynced"`
}

// SystemMetrics contains host resource utilization.
type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
}

// CompletionView is one ledger row as served by /completions.
type CompletionView struct {
	ItemKey     string    `json:"item_key"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	ElapsedMs   int64     `json:"elapsed_ms"`
}

// HealthResponse is the response for /health endpoint.
type HealthResponse struct {
	Status  string `json:"status"` // "ok", "degraded", "unhealthy"
	Version string `json:"version"`
}

// HealthStatus constants for health checks.
const (
	HealthStatusOK        = "ok"
	HealthStatusDegraded  = "degraded"
	HealthStatusUnhealthy = "unhealthy"
)

// StatusVersion is the current version of the status payload format.
const StatusVersion = "1.0"

func newLedgerSummary(s usage.Summary) *LedgerSummary {
	return &LedgerSummary{
		Total:        s.Total,
		Failed:       s.Failed,
		AvgElapsedMs: s.AvgElapsedMs,
		MaxElapsedMs: s.MaxElapsedMs,
		Unsynced:     s.Unsynced,
	}
}

func newCompletionView(r usage.CompletionRecord) CompletionView {
	return CompletionView{
		ItemKey:     r.ItemKey,
		Status:      r.Status,
		Error:       r.ErrorMessage,
		SubmittedAt: r.SubmittedAt,
		ElapsedMs:   r.ElapsedMs,
	}
}
