// Package monitoring holds the process-wide progress logger and the running
// compression summary reported while a stream is being encoded.
package monitoring

import (
	"io"
	"log"
	"sync"

	"github.com/banshee-data/xypicmic/internal/picmic/codec"
)

// Logf is the package-level progress logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetWriter routes Logf to w. Passing nil mutes it.
func SetWriter(w io.Writer) {
	if w == nil {
		SetLogger(nil)
		return
	}
	SetLogger(log.New(w, "[xypicmic] ", log.LstdFlags).Printf)
}

// Progress accumulates codec.Stats across a run and logs the running total
// every Every events. It is safe for concurrent use.
type Progress struct {
	Every int

	mu       sync.Mutex
	events   int
	rejected int
	total    codec.Stats
}

// NewProgress returns a Progress that logs every n events. n <= 0 disables
// periodic logging; Summary still reports the total.
func NewProgress(n int) *Progress {
	return &Progress{Every: n}
}

// Observe records one encoded event.
func (p *Progress) Observe(s codec.Stats) {
	p.mu.Lock()
	p.events++
	p.total.Add(s)
	events, total := p.events, p.total
	p.mu.Unlock()

	if p.Every > 0 && events%p.Every == 0 {
		Logf("%d events: %s", events, total)
	}
}

// Reject records one event that was not encoded.
func (p *Progress) Reject() {
	p.mu.Lock()
	p.rejected++
	p.mu.Unlock()
}

// Total returns the accumulated statistics.
func (p *Progress) Total() (events, rejected int, total codec.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events, p.rejected, p.total
}

// Summary logs the final totals.
func (p *Progress) Summary() {
	events, rejected, total := p.Total()
	Logf("encoded %d events, rejected %d: %s", events, rejected, total)
}
