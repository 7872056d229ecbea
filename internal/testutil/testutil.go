// Package testutil provides shared test fixtures for the codec packages.
//
// It builds a synthetic address table that covers the whole sensor so tests
// do not depend on the real table resource.
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/xypicmic/internal/picmic"
	"github.com/banshee-data/xypicmic/internal/picmic/address"
)

// DummyAddress is the one dummy cell of the synthetic table.
var DummyAddress = picmic.Address{Row: picmic.SensorRows - 1, Col: picmic.SensorCols - 1}

// SyntheticLine returns the line the synthetic table assigns to addr. Columns
// cycle through Y, R, B; the line number walks the grid row by row and wraps
// at the domain width.
func SyntheticLine(addr picmic.Address) address.Line {
	f := picmic.Families[addr.Col%3]
	idx := (addr.Row*(picmic.SensorCols/3) + addr.Col/3) % picmic.DomainWidth
	return address.Line{Family: f, Raw: idx + f.Offset()}
}

// NewTable returns the synthetic table.
func NewTable() *address.Table {
	t := &address.Table{}
	for row := 0; row < picmic.SensorRows; row++ {
		for col := 0; col < picmic.SensorCols; col++ {
			addr := picmic.Address{Row: row, Col: col}
			if addr == DummyAddress {
				t.PutDummy(addr)
				continue
			}
			t.Put(addr, SyntheticLine(addr))
		}
	}
	return t
}

// WriteTableFile writes the synthetic table in .tab layout to a temporary
// directory and returns its path.
func WriteTableFile(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("# col row n line\n")
	n := 0
	for row := 0; row < picmic.SensorRows; row++ {
		for col := 0; col < picmic.SensorCols; col++ {
			addr := picmic.Address{Row: row, Col: col}
			name := "D(0)"
			if addr != DummyAddress {
				l := SyntheticLine(addr)
				name = fmt.Sprintf("%s(%d)", l.Family, l.Raw)
			}
			fmt.Fprintf(&b, "%d %d %d %s\n", col, row, n, name)
			n++
		}
	}
	path := filepath.Join(t.TempDir(), "picmic_adress_table.tab")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}
	return path
}

// RandomEvent returns an event of n addresses with no dummy cell and no
// address repeated back to back.
func RandomEvent(rng *rand.Rand, n int) picmic.Event {
	e := picmic.Event{Addresses: make([]picmic.Address, 0, n)}
	for len(e.Addresses) < n {
		addr := picmic.Address{Row: rng.Intn(picmic.SensorRows), Col: rng.Intn(picmic.SensorCols)}
		if addr == DummyAddress {
			continue
		}
		if k := len(e.Addresses); k > 0 && e.Addresses[k-1] == addr {
			continue
		}
		e.Addresses = append(e.Addresses, addr)
	}
	return e
}

// EventLine formats e in the event-log layout: the address count followed by
// row/column pairs.
func EventLine(e picmic.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", len(e.Addresses))
	for _, a := range e.Addresses {
		fmt.Fprintf(&b, " %d %d", a.Row, a.Col)
	}
	return b.String()
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
