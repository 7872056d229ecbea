// Package pipeline runs readout events through the line builder and the codec
// on a pool of workers, delivering results in input order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/banshee-data/xypicmic/internal/config"
	"github.com/banshee-data/xypicmic/internal/eventlog"
	"github.com/banshee-data/xypicmic/internal/picmic"
	"github.com/banshee-data/xypicmic/internal/picmic/address"
	"github.com/banshee-data/xypicmic/internal/picmic/codec"
	"github.com/banshee-data/xypicmic/internal/picmic/lines"
)

// ErrTooFewFamilies marks an event whose lines span fewer families than
// Options.MinActiveFamilies. Such events are skipped, not rejected.
var ErrTooFewFamilies = errors.New("too few active families")

// Options controls event processing.
type Options struct {
	Workers           int  // <= 0 means one per CPU
	Verify            bool // decode every encoding and compare
	MinActiveFamilies int
}

// OptionsFromConfig reads the processing options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:           cfg.GetWorkers(),
		Verify:            cfg.GetVerifyRoundTrip(),
		MinActiveFamilies: cfg.GetMinActiveFamilies(),
	}
}

// Result is the outcome of processing one record.
type Result struct {
	Record eventlog.Record
	Lines  picmic.EventLines
	Report lines.Report
	Words  []uint16
	Stats  codec.Stats

	// Skipped is set when the event was filtered out by MinActiveFamilies.
	Skipped bool
	// Err is set when the event was rejected: a malformed record or an
	// encoding that failed verification.
	Err error
}

// Accepted reports whether the event was encoded.
func (r Result) Accepted() bool { return !r.Skipped && r.Err == nil }

// Pipeline processes records with a shared, read-only resolver.
type Pipeline struct {
	builder *lines.Builder
	opts    Options
}

// New returns a Pipeline resolving addresses through resolver.
func New(resolver address.Resolver, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Pipeline{builder: lines.NewBuilder(resolver), opts: opts}
}

// Process runs a single record through build, encode and verify.
func (p *Pipeline) Process(rec eventlog.Record) Result {
	res := Result{Record: rec}
	if rec.Err != nil {
		res.Err = rec.Err
		opsf("rejected line %d: %v", rec.Line, rec.Err)
		return res
	}

	res.Lines, res.Report = p.builder.Build(rec.Event.Addresses)
	if res.Report.Dropped() > 0 {
		diagf("event %d: %s", rec.Event.Number, res.Report)
	}

	if n := res.Lines.ActiveFamilies(); n < p.opts.MinActiveFamilies {
		res.Skipped = true
		diagf("event %d: %v (%d < %d), skipped", rec.Event.Number, ErrTooFewFamilies, n, p.opts.MinActiveFamilies)
		return res
	}

	if p.opts.Verify {
		words, err := codec.EncodeVerified(res.Lines)
		if err != nil {
			res.Err = fmt.Errorf("event %d: %w", rec.Event.Number, err)
			opsf("%v", res.Err)
			return res
		}
		res.Words = words
	} else {
		res.Words = codec.Encode(res.Lines)
	}

	res.Stats = codec.Stats{Addresses: len(rec.Event.Addresses), Words: len(res.Words)}
	if traceLogger != nil {
		tracef("event %d: %s -> %s", rec.Event.Number, res.Lines, dumpPackets(res.Lines))
	}
	return res
}

func dumpPackets(l picmic.EventLines) string {
	packets := codec.Packets(l)
	parts := make([]string, len(packets))
	for i, p := range packets {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}

type job struct {
	rec eventlog.Record
	out chan Result
}

// Run processes records from in on Options.Workers goroutines. Results are
// delivered in the order the records arrived. The returned channel is closed
// once in is drained or ctx is done.
func (p *Pipeline) Run(ctx context.Context, in <-chan eventlog.Record) <-chan Result {
	jobs := make(chan job)
	// pending holds each job's result slot in arrival order; its capacity
	// bounds how far workers may run ahead of the consumer.
	pending := make(chan chan Result, 4*p.opts.Workers)
	out := make(chan Result)

	for i := 0; i < p.opts.Workers; i++ {
		go func() {
			for j := range jobs {
				j.out <- p.Process(j.rec)
			}
		}()
	}

	go func() {
		defer close(jobs)
		defer close(pending)
		for {
			var (
				rec eventlog.Record
				ok  bool
			)
			select {
			case <-ctx.Done():
				return
			case rec, ok = <-in:
				if !ok {
					return
				}
			}

			slot := make(chan Result, 1)
			select {
			case pending <- slot:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- job{rec: rec, out: slot}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		defer close(out)
		for slot := range pending {
			var res Result
			select {
			case res = <-slot:
			case <-ctx.Done():
				return
			}
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Records numbers raw event-log lines and parses them into records. Blank and
// comment lines are counted but not emitted. The returned channel is closed
// when raw is closed or ctx is done.
func Records(ctx context.Context, raw <-chan string) <-chan eventlog.Record {
	out := make(chan eventlog.Record)
	go func() {
		defer close(out)
		n := 0
		for {
			var (
				text string
				ok   bool
			)
			select {
			case <-ctx.Done():
				return
			case text, ok = <-raw:
				if !ok {
					return
				}
			}
			n++
			text = strings.TrimSpace(text)
			if text == "" || strings.HasPrefix(text, "#") {
				continue
			}
			select {
			case out <- eventlog.ParseRecord(n, text):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
