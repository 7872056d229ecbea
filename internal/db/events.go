package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/xypicmic/internal/picmic"
	"github.com/banshee-data/xypicmic/internal/picmic/codec"
	"github.com/banshee-data/xypicmic/internal/pipeline"
)

// ErrCorrupt is returned when a stored word stream no longer decodes to the
// line sets stored beside it.
var ErrCorrupt = errors.New("stored event is corrupt")

// EncodedEvent is one accepted event of a run.
type EncodedEvent struct {
	RunID     string
	Number    int
	Addresses int
	Words     []uint16
	Lines     picmic.EventLines
}

// Stats returns the compression statistics of the event.
func (e EncodedEvent) Stats() codec.Stats {
	return codec.Stats{Addresses: e.Addresses, Words: len(e.Words)}
}

// RecordEvent stores an encoded event. Words are stored big-endian and the
// line sets as CBOR.
func (db *DB) RecordEvent(e EncodedEvent) error {
	blob, err := marshalLines(e.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode line sets: %w", err)
	}
	_, err = db.Exec(`INSERT INTO encoded_events (run_id, event_number, addresses, word_count, words, lines) VALUES (?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Number, e.Addresses, len(e.Words), codec.MarshalWords(e.Words), blob)
	if err != nil {
		return fmt.Errorf("failed to record event %d: %w", e.Number, err)
	}
	return nil
}

// RecordRejected stores a rejected event-log line with its error.
func (db *DB) RecordRejected(runID string, line int, text string, cause error) error {
	_, err := db.Exec(`INSERT INTO rejected_events (run_id, line, text, error) VALUES (?, ?, ?, ?)`,
		runID, line, text, cause.Error())
	if err != nil {
		return fmt.Errorf("failed to record rejected line %d: %w", line, err)
	}
	return nil
}

// RecordResult stores a pipeline result: accepted events and rejections are
// stored, skipped events are not.
func (db *DB) RecordResult(runID string, res pipeline.Result) error {
	switch {
	case res.Err != nil:
		return db.RecordRejected(runID, res.Record.Line, res.Record.Text, res.Err)
	case res.Skipped:
		return nil
	}
	return db.RecordEvent(EncodedEvent{
		RunID:     runID,
		Number:    res.Record.Event.Number,
		Addresses: res.Stats.Addresses,
		Words:     res.Words,
		Lines:     res.Lines,
	})
}

func scanEvent(row interface{ Scan(...any) error }) (EncodedEvent, error) {
	var (
		e         EncodedEvent
		wordCount int
		words     []byte
		blob      []byte
	)
	if err := row.Scan(&e.RunID, &e.Number, &e.Addresses, &wordCount, &words, &blob); err != nil {
		return EncodedEvent{}, err
	}

	var err error
	if e.Words, err = codec.UnmarshalWords(words); err != nil {
		return EncodedEvent{}, fmt.Errorf("event %d: %w: %w", e.Number, ErrCorrupt, err)
	}
	if len(e.Words) != wordCount {
		return EncodedEvent{}, fmt.Errorf("event %d: %w: %d words stored, %d expected", e.Number, ErrCorrupt, len(e.Words), wordCount)
	}
	if e.Lines, err = unmarshalLines(blob); err != nil {
		return EncodedEvent{}, fmt.Errorf("event %d: %w: %w", e.Number, ErrCorrupt, err)
	}

	decoded, err := codec.Decode(e.Words)
	if err != nil {
		return EncodedEvent{}, fmt.Errorf("event %d: %w: %w", e.Number, ErrCorrupt, err)
	}
	if !decoded.Equal(e.Lines) {
		return EncodedEvent{}, fmt.Errorf("event %d: %w: words decode to %s, stored %s", e.Number, ErrCorrupt, decoded, e.Lines)
	}
	return e, nil
}

const eventColumns = `run_id, event_number, addresses, word_count, words, lines`

// LoadEvent returns one stored event, checking that its words still decode
// to its line sets.
func (db *DB) LoadEvent(runID string, number int) (EncodedEvent, error) {
	e, err := scanEvent(db.QueryRow(`SELECT `+eventColumns+` FROM encoded_events WHERE run_id = ? AND event_number = ?`, runID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return EncodedEvent{}, fmt.Errorf("event %d of run %s: %w", number, runID, ErrNotFound)
	}
	return e, err
}

// Events returns the stored events of a run in event order.
func (db *DB) Events(runID string) ([]EncodedEvent, error) {
	rows, err := db.Query(`SELECT `+eventColumns+` FROM encoded_events WHERE run_id = ? ORDER BY event_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []EncodedEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventStats returns the per-event compression statistics of a run in event
// order without decoding the stored words.
func (db *DB) EventStats(runID string) ([]codec.Stats, error) {
	rows, err := db.Query(`SELECT addresses, word_count FROM encoded_events WHERE run_id = ? ORDER BY event_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event stats: %w", err)
	}
	defer rows.Close()

	var out []codec.Stats
	for rows.Next() {
		var s codec.Stats
		if err := rows.Scan(&s.Addresses, &s.Words); err != nil {
			return nil, fmt.Errorf("failed to scan event stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// RejectedLines returns the rejected line numbers of a run in order.
func (db *DB) RejectedLines(runID string) ([]int, error) {
	rows, err := db.Query(`SELECT line FROM rejected_events WHERE run_id = ? ORDER BY line`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rejected lines: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
