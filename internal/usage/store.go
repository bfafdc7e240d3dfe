package usage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS completions (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    item_key       TEXT NOT NULL UNIQUE,
    worker_id      TEXT NOT NULL DEFAULT '',
    status         TEXT NOT NULL,
    submitted_at   TEXT NOT NULL,
    completed_at   TEXT NOT NULL,
    elapsed_ms     INTEGER NOT NULL,
    input_bytes    INTEGER NOT NULL DEFAULT 0,
    output_bytes   INTEGER NOT NULL DEFAULT 0,
    error_message  TEXT NOT NULL DEFAULT '',
    synced         INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_completions_synced ON completions(synced) WHERE synced = 0;
`

// timeLayout keeps millisecond precision so latency columns stay meaningful.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Store provides SQLite-backed storage for completion records.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the ledger database at dbPath and runs migrations.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	// Enable WAL mode for concurrent reads during sync
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Insert stores a completion record. Duplicate item keys are silently ignored.
func (s *Store) Insert(r CompletionRecord) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO completions (
			item_key, worker_id, status,
			submitted_at, completed_at, elapsed_ms,
			input_bytes, output_bytes, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ItemKey, r.WorkerID, r.Status,
		r.SubmittedAt.UTC().Format(timeLayout), r.CompletedAt.UTC().Format(timeLayout), r.ElapsedMs,
		r.InputBytes, r.OutputBytes, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("insert completion record: %w", err)
	}
	return nil
}

// QueryUnsynced returns up to limit records that have not been synced, oldest first.
func (s *Store) QueryUnsynced(limit int) ([]CompletionRecord, error) {
	return s.query(`WHERE synced = 0 ORDER BY id ASC LIMIT ?`, limit)
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(limit int) ([]CompletionRecord, error) {
	return s.query(`ORDER BY id DESC LIMIT ?`, limit)
}

func (s *Store) query(clause string, args ...any) ([]CompletionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, item_key, worker_id, status,
		       submitted_at, completed_at, elapsed_ms,
		       input_bytes, output_bytes, error_message, synced
		FROM completions `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	var records []CompletionRecord
	for rows.Next() {
		var r CompletionRecord
		var submittedAt, completedAt string
		var synced int
		if err := rows.Scan(
			&r.ID, &r.ItemKey, &r.WorkerID, &r.Status,
			&submittedAt, &completedAt, &r.ElapsedMs,
			&r.InputBytes, &r.OutputBytes, &r.ErrorMessage, &synced,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if t, err := time.Parse(timeLayout, submittedAt); err == nil {
			r.SubmittedAt = t
		}
		if t, err := time.Parse(timeLayout, completedAt); err == nil {
			r.CompletedAt = t
		}
		r.Synced = synced != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summarize aggregates every record in the ledger.
func (s *Store) Summarize() (Summary, error) {
	var sum Summary
	var avg sql.NullFloat64
	var maxMs sql.NullInt64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
		       AVG(elapsed_ms),
		       MAX(elapsed_ms),
		       COALESCE(SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END), 0)
		FROM completions`).Scan(&sum.Total, &sum.Failed, &avg, &maxMs, &sum.Unsynced)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize completions: %w", err)
	}
	sum.AvgElapsedMs = avg.Float64
	sum.MaxElapsedMs = maxMs.Int64
	return sum, nil
}

// MarkSynced sets the synced flag to 1 for the given record IDs.
func (s *Store) MarkSynced(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("UPDATE completions SET synced = 1 WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(id); err != nil {
			return fmt.Errorf("mark synced id=%d: %w", id, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
