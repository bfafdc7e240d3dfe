// Package usage keeps a local ledger of completed items and their latency.
//
// The ledger only records metrics about finished work. It is never read back
// into the processing queue.
package usage

import "time"

// Completion statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// CompletionRecord captures the outcome and timing of one processed item.
type CompletionRecord struct {
	// Database ID (set after insert)
	ID int64

	// Item identification
	ItemKey  string
	WorkerID string

	// Outcome
	Status       string // "success", "failed"
	ErrorMessage string

	// Timing
	SubmittedAt time.Time
	CompletedAt time.Time
	ElapsedMs   int64

	// Size metrics
	InputBytes  int64
	OutputBytes int64

	// Sync status
	Synced bool
}

// Summary aggregates the ledger.
type Summary struct {
	Total        int64
	Failed       int64
	AvgElapsedMs float64
	MaxElapsedMs int64
	Unsynced     int64
}
