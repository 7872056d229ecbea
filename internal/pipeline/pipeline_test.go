package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/xypicmic/internal/config"
	"github.com/banshee-data/xypicmic/internal/eventlog"
	"github.com/banshee-data/xypicmic/internal/picmic"
	"github.com/banshee-data/xypicmic/internal/picmic/codec"
	"github.com/banshee-data/xypicmic/internal/testutil"
)

func feed(records []eventlog.Record) <-chan eventlog.Record {
	ch := make(chan eventlog.Record, len(records))
	for _, r := range records {
		ch <- r
	}
	close(ch)
	return ch
}

func collect(ch <-chan Result) []Result {
	var out []Result
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func randomRecords(n int) []eventlog.Record {
	rng := rand.New(rand.NewSource(42))
	recs := make([]eventlog.Record, n)
	for i := range recs {
		e := testutil.RandomEvent(rng, 3+rng.Intn(60))
		recs[i] = eventlog.ParseRecord(i+1, testutil.EventLine(e))
	}
	return recs
}

func TestProcessEncodesAndVerifies(t *testing.T) {
	p := New(testutil.NewTable(), Options{Workers: 1, Verify: true, MinActiveFamilies: 2})

	// (0,0) is Y, (0,1) is R in the synthetic table.
	res := p.Process(eventlog.ParseRecord(1, "3 0 0 0 1 0 1"))
	require.True(t, res.Accepted(), "err=%v skipped=%v", res.Err, res.Skipped)
	assert.Equal(t, 1, res.Report.Redundant)
	assert.Equal(t, 2, res.Lines.ActiveFamilies())
	assert.Equal(t, codec.Stats{Addresses: 3, Words: 2}, res.Stats)

	got, err := codec.Decode(res.Words)
	require.NoError(t, err)
	assert.True(t, got.Equal(res.Lines))
}

func TestProcessLargeEvent(t *testing.T) {
	p := New(testutil.NewTable(), Options{Workers: 1, Verify: true, MinActiveFamilies: 2})

	var e picmic.Event
	for row := 0; row < 6; row++ {
		for col := 0; col < 50; col++ {
			e.Addresses = append(e.Addresses, picmic.Address{Row: row, Col: col})
		}
	}
	require.Len(t, e.Addresses, 300)

	res := p.Process(eventlog.ParseRecord(1, testutil.EventLine(e)))
	require.True(t, res.Accepted(), "err=%v skipped=%v", res.Err, res.Skipped)
	assert.Equal(t, 3, res.Lines.ActiveFamilies())
	assert.Equal(t, 300, res.Stats.Addresses)

	got, err := codec.Decode(res.Words)
	require.NoError(t, err)
	assert.True(t, got.Equal(res.Lines))
}

func TestProcessSkipsSingleFamily(t *testing.T) {
	p := New(testutil.NewTable(), Options{Workers: 1, Verify: true, MinActiveFamilies: 2})

	res := p.Process(eventlog.ParseRecord(1, "2 0 0 1 0"))
	assert.True(t, res.Skipped)
	assert.NoError(t, res.Err)
	assert.False(t, res.Accepted())
	assert.Empty(t, res.Words)

	p = New(testutil.NewTable(), Options{Workers: 1, MinActiveFamilies: 0})
	res = p.Process(eventlog.ParseRecord(1, "2 0 0 1 0"))
	assert.True(t, res.Accepted())
	assert.Equal(t, picmic.LineSet{0, 18}, res.Lines.Y)
	assert.NotEmpty(t, res.Words)
}

func TestProcessRejectsMalformed(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	p := New(testutil.NewTable(), Options{Workers: 1})
	res := p.Process(eventlog.ParseRecord(4, "3 0 0 0 1"))
	assert.True(t, errors.Is(res.Err, eventlog.ErrInconsistentCount))
	assert.False(t, res.Accepted())
	assert.Contains(t, ops.String(), "rejected line 4")
}

func TestRunPreservesOrder(t *testing.T) {
	recs := randomRecords(500)
	p := New(testutil.NewTable(), Options{Workers: 8, Verify: true})

	results := collect(p.Run(context.Background(), feed(recs)))
	require.Len(t, results, len(recs))

	serial := New(testutil.NewTable(), Options{Workers: 1, Verify: true})
	for i, res := range results {
		assert.Equal(t, recs[i].Line, res.Record.Line, "result %d out of order", i)
		require.NoError(t, res.Err)
		assert.Equal(t, serial.Process(recs[i]).Words, res.Words, "event %d", recs[i].Line)
	}
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan eventlog.Record)
	out := New(testutil.NewTable(), Options{Workers: 2}).Run(ctx, in)

	cancel()
	for range out {
	}
}

func TestRecords(t *testing.T) {
	lines := make(chan string, 8)
	for _, l := range []string{"# header", "1 0 0", "", "2 0 0 0 1\r", "oops"} {
		lines <- l
	}
	close(lines)

	var recs []eventlog.Record
	for r := range Records(context.Background(), lines) {
		recs = append(recs, r)
	}
	require.Len(t, recs, 3)
	assert.Equal(t, 2, recs[0].Line)
	assert.Equal(t, 4, recs[1].Line)
	assert.Len(t, recs[1].Event.Addresses, 2)
	assert.Equal(t, 5, recs[2].Line)
	assert.Error(t, recs[2].Err)
}

func TestTraceDump(t *testing.T) {
	var trace bytes.Buffer
	SetLogWriters(nil, nil, &trace)
	defer SetLogWriters(nil, nil, nil)

	p := New(testutil.NewTable(), Options{Workers: 1})
	res := p.Process(picmicRecord(picmic.Address{Row: 0, Col: 2}))
	require.True(t, res.Accepted())
	assert.True(t, strings.Contains(trace.String(), "LinePacket( start="), trace.String())
}

func picmicRecord(addrs ...picmic.Address) eventlog.Record {
	return eventlog.Record{Line: 1, Event: picmic.Event{Number: 1, Addresses: addrs}}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Empty()
	cfg.SetWorkers(3)
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, Options{Workers: 3, Verify: true, MinActiveFamilies: 2}, opts)
}
