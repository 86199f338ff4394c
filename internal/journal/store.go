// Package journal keeps a SQLite record of finished build runs. The journal
// is an audit trail only; orchestrator state is never restored from it.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agentcluster/internal/campaign"
	"agentcluster/internal/logging"
	"agentcluster/internal/metrics"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so finished_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned by Get for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Summary is a journal row without its log entries.
type Summary struct {
	RunID       string          `json:"run_id"`
	Requirement string          `json:"requirement"`
	FinalPhase  campaign.Phase  `json:"final_phase"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Metrics     metrics.Metrics `json:"metrics"`
	EntryCount  int             `json:"entry_count"`
}

// Duration is the wall-clock length of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Store is the run journal database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// NewStore creates or opens the journal at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Journal("Journal opened at %s", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		requirement TEXT NOT NULL,
		final_phase TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		metrics_json TEXT NOT NULL,
		entries_json TEXT NOT NULL,
		entry_count INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record implements campaign.RunRecorder. Recording the same run twice
// replaces the earlier row.
func (s *Store) Record(ctx context.Context, rec campaign.RunRecord) error {
	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	entriesJSON, err := json.Marshal(rec.Entries)
	if err != nil {
		return fmt.Errorf("marshal entries: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, requirement, final_phase, started_at, finished_at, metrics_json, entries_json, entry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Requirement, string(rec.FinalPhase),
		rec.StartedAt.UTC().Format(timeLayout), rec.FinishedAt.UTC().Format(timeLayout),
		string(metricsJSON), string(entriesJSON), len(rec.Entries),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}
	logging.Journal("Recorded run %s (%s, %d entries)", rec.RunID, rec.FinalPhase, len(rec.Entries))
	return nil
}

// List returns up to limit runs, most recently finished first. A limit of
// zero or less returns every run.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, requirement, final_phase, started_at, finished_at, metrics_json, entry_count
		FROM runs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum                 Summary
			phase, started, fin string
			metricsJSON         string
		)
		if err := rows.Scan(&sum.RunID, &sum.Requirement, &phase, &started, &fin, &metricsJSON, &sum.EntryCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		sum.FinalPhase = campaign.Phase(phase)
		if sum.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if sum.FinishedAt, err = time.Parse(timeLayout, fin); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &sum.Metrics); err != nil {
			return nil, fmt.Errorf("decode metrics: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Get returns the full record of one run.
func (s *Store) Get(ctx context.Context, runID string) (campaign.RunRecord, error) {
	var (
		rec                      campaign.RunRecord
		phase, started, fin      string
		metricsJSON, entriesJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, requirement, final_phase, started_at, finished_at, metrics_json, entries_json
		FROM runs WHERE run_id = ?`, runID).
		Scan(&rec.RunID, &rec.Requirement, &phase, &started, &fin, &metricsJSON, &entriesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return campaign.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return campaign.RunRecord{}, fmt.Errorf("query run %s: %w", runID, err)
	}

	rec.FinalPhase = campaign.Phase(phase)
	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return campaign.RunRecord{}, fmt.Errorf("parse started_at: %w", err)
	}
	if rec.FinishedAt, err = time.Parse(timeLayout, fin); err != nil {
		return campaign.RunRecord{}, fmt.Errorf("parse finished_at: %w", err)
	}
	if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
		return campaign.RunRecord{}, fmt.Errorf("decode metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(entriesJSON), &rec.Entries); err != nil {
		return campaign.RunRecord{}, fmt.Errorf("decode entries: %w", err)
	}
	return rec, nil
}
