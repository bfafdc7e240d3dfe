package status

import (
	"errors"
	"testing"
	"time"

	"github.com/aceteam-ai/seqcipher/internal/usage"
)

// fakeLedger is an in-memory Ledger.
type fakeLedger struct {
	summary usage.Summary
	records []usage.CompletionRecord
	err     error
}

func (f *fakeLedger) Summarize() (usage.Summary, error) {
	return f.summary, f.err
}

func (f *fakeLedger) Recent(limit int) ([]usage.CompletionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(CollectorConfig{})

	if collector == nil {
		t.Fatal("NewCollector returned nil")
	}
	if collector.cpuSample != 100*time.Millisecond {
		t.Errorf("cpuSample = %v, want 100ms", collector.cpuSample)
	}
	if collector.startTime.IsZero() {
		t.Error("startTime should not be zero")
	}
}

func TestCollectorCollect(t *testing.T) {
	ledger := &fakeLedger{summary: usage.Summary{Total: 4, Failed: 1, AvgElapsedMs: 210.5, MaxElapsedMs: 400}}
	collector := NewCollector(CollectorConfig{
		PipelineFn: func() PipelineStats {
			return PipelineStats{WorkerID: "w1", WorkerState: "idle", Queued: 2, Processed: 4}
		},
		Ledger:    ledger,
		CPUSample: 10 * time.Millisecond,
	})

	snap, err := collector.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if snap.Version != StatusVersion {
		t.Errorf("Version = %v, want %v", snap.Version, StatusVersion)
	}
	if snap.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if snap.Pipeline.Queued != 2 || snap.Pipeline.Processed != 4 {
		t.Errorf("Pipeline = %+v", snap.Pipeline)
	}
	if snap.Ledger == nil {
		t.Fatal("Ledger should be set")
	}
	if snap.Ledger.Total != 4 || snap.Ledger.Failed != 1 {
		t.Errorf("Ledger = %+v", snap.Ledger)
	}
}

func TestCollectorCollectWithoutLedger(t *testing.T) {
	collector := NewCollector(CollectorConfig{CPUSample: 10 * time.Millisecond})

	snap, err := collector.Collect()
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if snap.Ledger != nil {
		t.Errorf("Ledger = %+v, want nil", snap.Ledger)
	}
}

func TestCollectorCollectLedgerError(t *testing.T) {
	collector := NewCollector(CollectorConfig{
		Ledger:    &fakeLedger{err: errors.New("database is locked")},
		CPUSample: 10 * time.Millisecond,
	})

	if _, err := collector.Collect(); err == nil {
		t.Fatal("Collect() should fail when the ledger fails")
	}
}

func TestCollectorRecent(t *testing.T) {
	submitted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	collector := NewCollector(CollectorConfig{
		Ledger: &fakeLedger{records: []usage.CompletionRecord{
			{ItemKey: "b", Status: usage.StatusFailed, ErrorMessage: "boom", SubmittedAt: submitted, ElapsedMs: 20},
			{ItemKey: "a", Status: usage.StatusSuccess, SubmittedAt: submitted, ElapsedMs: 10},
		}},
	})

	views, err := collector.Recent(1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("len(views) = %d, want 1", len(views))
	}
	if views[0].ItemKey != "b" || views[0].Error != "boom" {
		t.Errorf("views[0] = %+v", views[0])
	}
}

func TestCollectorRecentWithoutLedger(t *testing.T) {
	collector := NewCollector(CollectorConfig{})

	views, err := collector.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Errorf("Recent() = %v, want empty slice", views)
	}
}

func TestCollectSystem(t *testing.T) {
	collector := NewCollector(CollectorConfig{CPUSample: 10 * time.Millisecond})

	metrics := collector.CollectSystem()

	// Host metrics are best effort, but values must stay in range
	if metrics.MemoryPercent < 0 || metrics.MemoryPercent > 100 {
		t.Errorf("MemoryPercent = %v, out of range", metrics.MemoryPercent)
	}
	if metrics.CPUPercent < 0 || metrics.CPUPercent > 100 {
		t.Errorf("CPUPercent = %v, out of range", metrics.CPUPercent)
	}
}
