package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/xypicmic/internal/eventlog"
	"github.com/banshee-data/xypicmic/internal/picmic"
	"github.com/banshee-data/xypicmic/internal/picmic/codec"
	"github.com/banshee-data/xypicmic/internal/pipeline"
	"github.com/banshee-data/xypicmic/internal/testutil"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestMigrations(t *testing.T) {
	db := setupTestDB(t)

	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown())
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), v)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='rejected_events'`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp())
	require.NoError(t, db.MigrateUp(), "second MigrateUp should be a no-op")
	v, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
}

func TestRunLifecycle(t *testing.T) {
	db := setupTestDB(t)

	run, err := db.CreateRun("events.txt", "picmic_adress_table.tab")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "events.txt", got.Source)
	assert.False(t, got.Finished())

	require.NoError(t, db.FinishRun(run.ID, 10, 2, 1, codec.Stats{Addresses: 100, Words: 40}))
	got, err = db.GetRun(run.ID)
	require.NoError(t, err)
	assert.True(t, got.Finished())
	assert.Equal(t, 10, got.Events)
	assert.Equal(t, 2, got.Skipped)
	assert.Equal(t, 1, got.Rejected)
	assert.Equal(t, codec.Stats{Addresses: 100, Words: 40}, got.Totals)

	runs, err := db.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = db.GetRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(db.FinishRun("missing", 0, 0, 0, codec.Stats{}), ErrNotFound))
}

func TestEventRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	run, err := db.CreateRun("test", "table")
	require.NoError(t, err)

	lines := picmic.EventLines{Y: picmic.LineSet{0, 5, 851}, B: picmic.LineSet{300}}
	words, err := codec.EncodeVerified(lines)
	require.NoError(t, err)

	require.NoError(t, db.RecordEvent(EncodedEvent{RunID: run.ID, Number: 7, Addresses: 4, Words: words, Lines: lines}))

	got, err := db.LoadEvent(run.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, words, got.Words)
	assert.True(t, got.Lines.Equal(lines), "got %s", got.Lines)
	assert.Equal(t, codec.Stats{Addresses: 4, Words: len(words)}, got.Stats())

	_, err = db.LoadEvent(run.ID, 8)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadEventDetectsCorruption(t *testing.T) {
	db := setupTestDB(t)
	run, err := db.CreateRun("test", "table")
	require.NoError(t, err)

	lines := picmic.EventLines{R: picmic.LineSet{42}}
	require.NoError(t, db.RecordEvent(EncodedEvent{RunID: run.ID, Number: 1, Addresses: 1, Words: codec.Encode(lines), Lines: lines}))

	// Point the header at another line.
	_, err = db.Exec(`UPDATE encoded_events SET words = ? WHERE run_id = ?`,
		codec.MarshalWords(codec.Encode(picmic.EventLines{R: picmic.LineSet{43}})), run.ID)
	require.NoError(t, err)

	_, err = db.LoadEvent(run.ID, 1)
	assert.True(t, errors.Is(err, ErrCorrupt), "err=%v", err)
}

func TestRecordResults(t *testing.T) {
	db := setupTestDB(t)
	run, err := db.CreateRun("test", "table")
	require.NoError(t, err)

	p := pipeline.New(testutil.NewTable(), pipeline.Options{Workers: 1, Verify: true, MinActiveFamilies: 2})
	results := []pipeline.Result{
		p.Process(eventlog.ParseRecord(1, "2 0 0 0 1")), // Y and R
		p.Process(eventlog.ParseRecord(2, "1 0 0")),     // single family
		p.Process(eventlog.ParseRecord(3, "2 0 0")),     // malformed
		p.Process(eventlog.ParseRecord(4, "2 0 2 5 1")), // B and R
	}
	for _, res := range results {
		require.NoError(t, db.RecordResult(run.ID, res))
	}

	events, err := db.Events(run.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Number)
	assert.Equal(t, 4, events[1].Number)
	assert.True(t, events[1].Lines.Equal(results[3].Lines))

	stats, err := db.EventStats(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []codec.Stats{results[0].Stats, results[3].Stats}, stats)

	rejected, err := db.RejectedLines(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, rejected)

	require.NoError(t, db.DeleteRun(run.ID))
	events, err = db.Events(run.ID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestLinesBlob(t *testing.T) {
	in := picmic.EventLines{Y: picmic.LineSet{1, 2}, R: picmic.LineSet{851}}
	blob, err := marshalLines(in)
	require.NoError(t, err)
	out, err := unmarshalLines(blob)
	require.NoError(t, err)
	assert.True(t, out.Equal(in))

	bad, err := encMode.Marshal(linesBlob{Y: []int{5, 1}})
	require.NoError(t, err)
	_, err = unmarshalLines(bad)
	assert.Error(t, err)
}
