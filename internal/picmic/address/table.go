// Package address resolves physical PICMIC readout addresses to sensor lines.
//
// The lookup table is loaded once from a text resource in the ".tab" layout
// produced by the sensor design tools, one element per line:
//
//	<col> <row> <n> <line>
//
// where <line> is a family letter followed by the raw line number, optionally
// bracketed: "Y(12)", "R[400]", "B17". The letter D marks a dummy cell that is
// wired to no usable line.
package address

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/xypicmic/internal/picmic"
)

var (
	// ErrDummy is returned by Resolve for cells that map to no line.
	ErrDummy = errors.New("dummy cell")
	// ErrUnknownAddress is returned by Resolve for addresses absent from the table.
	ErrUnknownAddress = errors.New("address not in table")
)

// Line is the resolved target of an address: a family and its raw table index.
type Line struct {
	Family picmic.Family
	Raw    int
}

// Index returns the normalised line index.
func (l Line) Index() int {
	return l.Family.Normalize(l.Raw)
}

func (l Line) String() string {
	return fmt.Sprintf("%s%d", l.Family, l.Raw)
}

// Resolver maps a sensor address to its line. Implementations must be safe
// for concurrent use; Table is immutable after loading.
type Resolver interface {
	Resolve(addr picmic.Address) (Line, error)
}

type cell struct {
	line  Line
	dummy bool
	set   bool
}

// Table is the immutable address lookup table of one sensor.
type Table struct {
	cells   [picmic.SensorRows][picmic.SensorCols]cell
	entries int
	dummies int
}

// Resolve implements Resolver.
func (t *Table) Resolve(addr picmic.Address) (Line, error) {
	if addr.Row < 0 || addr.Row >= picmic.SensorRows || addr.Col < 0 || addr.Col >= picmic.SensorCols {
		return Line{}, fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	}
	c := t.cells[addr.Row][addr.Col]
	switch {
	case !c.set:
		return Line{}, fmt.Errorf("%w: %s", ErrUnknownAddress, addr)
	case c.dummy:
		return Line{}, ErrDummy
	}
	return c.line, nil
}

// Entries returns the number of addresses defined by the table, dummies included.
func (t *Table) Entries() int { return t.entries }

// Dummies returns the number of dummy cells.
func (t *Table) Dummies() int { return t.dummies }

// Put defines the line for addr. It is meant for building tables in tests and
// tools; a loaded table should be treated as read-only.
func (t *Table) Put(addr picmic.Address, l Line) {
	t.put(addr, cell{line: l, set: true})
}

// PutDummy marks addr as a dummy cell.
func (t *Table) PutDummy(addr picmic.Address) {
	t.put(addr, cell{dummy: true, set: true})
}

func (t *Table) put(addr picmic.Address, c cell) {
	prev := t.cells[addr.Row][addr.Col]
	if !prev.set {
		t.entries++
	}
	if prev.dummy {
		t.dummies--
	}
	if c.dummy {
		t.dummies++
	}
	t.cells[addr.Row][addr.Col] = c
}

// LoadTableFile reads a table from path.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open address table: %w", err)
	}
	defer f.Close()

	t, err := ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load address table %s: %w", path, err)
	}
	return t, nil
}

// ParseTable reads a table in the .tab layout. Blank lines and lines starting
// with '#' are ignored.
func ParseTable(r io.Reader) (*Table, error) {
	t := &Table{}
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		text := strings.TrimSpace(scan.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: expected 4 fields, got %d", lineNo, len(fields))
		}
		col, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid column: %w", lineNo, err)
		}
		row, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid row: %w", lineNo, err)
		}
		if row < 0 || row >= picmic.SensorRows || col < 0 || col >= picmic.SensorCols {
			return nil, fmt.Errorf("line %d: address (%d, %d) outside %dx%d sensor", lineNo, row, col, picmic.SensorRows, picmic.SensorCols)
		}

		addr := picmic.Address{Row: row, Col: col}
		l, dummy, err := ParseLine(fields[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if dummy {
			t.PutDummy(addr)
		} else {
			t.Put(addr, l)
		}
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	if t.entries == 0 {
		return nil, errors.New("address table is empty")
	}
	return t, nil
}

// ParseLine parses a line name such as "Y(12)", "B[3]" or "R400". The dummy
// marker is any name starting with 'D'.
func ParseLine(name string) (l Line, dummy bool, err error) {
	if name == "" {
		return Line{}, false, errors.New("empty line name")
	}
	if name[0] == 'D' || name[0] == 'd' {
		return Line{}, true, nil
	}
	f, ok := picmic.ParseFamily(name[0])
	if !ok {
		return Line{}, false, fmt.Errorf("unknown line family %q in %q", name[0], name)
	}
	num := strings.Trim(name[1:], "()[]{}")
	raw, err := strconv.Atoi(num)
	if err != nil {
		return Line{}, false, fmt.Errorf("invalid line number in %q: %w", name, err)
	}
	return Line{Family: f, Raw: raw}, false, nil
}
