package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/xypicmic/internal/picmic/codec"
	"github.com/banshee-data/xypicmic/internal/version"
)

// ErrNotFound is returned when a run or event does not exist.
var ErrNotFound = errors.New("not found")

// Run is one invocation of the encoder over an event source.
type Run struct {
	ID         string
	Source     string
	TablePath  string
	Version    string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress

	Events   int
	Skipped  int
	Rejected int
	Totals   codec.Stats
}

// Finished reports whether FinishRun has been called for the run.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// CreateRun starts a new run and returns it with a fresh ID.
func (db *DB) CreateRun(source, tablePath string) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Source:    source,
		TablePath: tablePath,
		Version:   version.Version,
		StartedAt: time.Now(),
	}
	_, err := db.Exec(`INSERT INTO runs (run_id, source, table_path, version, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.TablePath, run.Version, run.StartedAt.UnixNano())
	if err != nil {
		return Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counters of a run.
func (db *DB) FinishRun(id string, events, skipped, rejected int, totals codec.Stats) error {
	res, err := db.Exec(`UPDATE runs SET finished_at = ?, events = ?, skipped = ?, rejected = ?, addresses = ?, words = ? WHERE run_id = ?`,
		time.Now().UnixNano(), events, skipped, rejected, totals.Addresses, totals.Words, id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

const runColumns = `run_id, source, table_path, version, started_at, finished_at, events, skipped, rejected, addresses, words`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.Source, &r.TablePath, &r.Version, &started, &finished,
		&r.Events, &r.Skipped, &r.Rejected, &r.Totals.Addresses, &r.Totals.Words)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64)
	}
	return r, nil
}

// GetRun returns the run with the given ID.
func (db *DB) GetRun(id string) (Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns every run, most recent first.
func (db *DB) ListRuns() ([]Run, error) {
	rows, err := db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and all of its events.
func (db *DB) DeleteRun(id string) error {
	res, err := db.Exec(`DELETE FROM runs WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}
