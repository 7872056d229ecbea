// Package eventlog reads PICMIC readout events from their text log.
//
// Each event is one line: the number of addresses N followed by N row/column
// pairs. Lines starting with '#' and blank lines are ignored. Events are
// numbered by their 1-based line number in the log.
package eventlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/xypicmic/internal/picmic"
)

// ErrInconsistentCount is returned for a line whose number count does not
// match its declared address count.
var ErrInconsistentCount = errors.New("event contains a non consistent list of numbers")

// Record is one parsed log line. Err is set when the line was rejected; the
// event is then empty.
type Record struct {
	Line  int
	Text  string
	Event picmic.Event
	Err   error
}

// ParseLine parses the text of one event line.
func ParseLine(text string) ([]picmic.Address, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrInconsistentCount)
	}
	nums := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", f, err)
		}
		nums[i] = v
	}

	n := nums[0]
	if n < 0 || len(nums) != 2*n+1 {
		return nil, fmt.Errorf("%w: declared %d addresses, found %d numbers", ErrInconsistentCount, n, len(nums)-1)
	}

	addrs := make([]picmic.Address, n)
	for i := range addrs {
		addrs[i] = picmic.Address{Row: nums[1+2*i], Col: nums[2+2*i]}
	}
	return addrs, nil
}

// Scanner reads records from an event log.
type Scanner struct {
	scan   *bufio.Scanner
	line   int
	record Record
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Scanner{scan: s}
}

// Scan advances to the next event line, skipping comments and blank lines.
// Rejected lines are still returned, with Record.Err set.
func (s *Scanner) Scan() bool {
	for s.scan.Scan() {
		s.line++
		text := strings.TrimSpace(s.scan.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		s.record = ParseRecord(s.line, text)
		return true
	}
	return false
}

// Record returns the record produced by the last call to Scan.
func (s *Scanner) Record() Record { return s.record }

// Err returns the first read error.
func (s *Scanner) Err() error { return s.scan.Err() }

// ParseRecord parses text as line number line.
func ParseRecord(line int, text string) Record {
	rec := Record{Line: line, Text: text, Event: picmic.Event{Number: line}}
	addrs, err := ParseLine(text)
	if err != nil {
		rec.Err = fmt.Errorf("event %d: %w", line, err)
		return rec
	}
	rec.Event.Addresses = addrs
	return rec
}

// ReadAll reads every record from r.
func ReadAll(r io.Reader) ([]Record, error) {
	var out []Record
	s := NewScanner(r)
	for s.Scan() {
		out = append(out, s.Record())
	}
	return out, s.Err()
}
