// Package lines turns the raw addresses of a readout event into the sorted
// sets of active lines, one per family.
package lines

import (
	"errors"
	"fmt"

	"github.com/banshee-data/xypicmic/internal/picmic"
	"github.com/banshee-data/xypicmic/internal/picmic/address"
)

// Report counts the addresses a Build call dropped, by reason.
type Report struct {
	Addresses   int // addresses seen
	Accepted    int // addresses that produced a line
	Redundant   int // identical to the previous address
	Dummy       int // resolved to a dummy cell
	Unknown     int // not present in the table
	OutOfDomain int // normalised index outside [0, DomainWidth)
	Coalesced   int // line already active in this event
}

// Dropped is the number of addresses that produced no line.
func (r Report) Dropped() int {
	return r.Redundant + r.Dummy + r.Unknown + r.OutOfDomain
}

func (r Report) String() string {
	return fmt.Sprintf("addresses=%d accepted=%d redundant=%d dummy=%d unknown=%d out_of_domain=%d coalesced=%d",
		r.Addresses, r.Accepted, r.Redundant, r.Dummy, r.Unknown, r.OutOfDomain, r.Coalesced)
}

// Builder builds EventLines from sensor addresses using a shared resolver.
// A Builder holds no per-event state and is safe for concurrent use when its
// resolver is.
type Builder struct {
	resolver address.Resolver
}

// NewBuilder returns a Builder backed by resolver.
func NewBuilder(resolver address.Resolver) *Builder {
	return &Builder{resolver: resolver}
}

// Build resolves addrs in order and collects the active lines. Redundant
// consecutive addresses, dummy cells, unknown addresses and out-of-domain
// indices are logged and skipped; Build never fails.
func (b *Builder) Build(addrs []picmic.Address) (picmic.EventLines, Report) {
	var (
		lines picmic.EventLines
		rep   Report
		last  picmic.Address
	)
	rep.Addresses = len(addrs)

	for i, addr := range addrs {
		if i > 0 && addr == last {
			rep.Redundant++
			diagf("for %s, redundant address, skipped", addr)
			continue
		}
		last = addr

		l, err := b.resolver.Resolve(addr)
		switch {
		case errors.Is(err, address.ErrDummy):
			rep.Dummy++
			diagf("for %s, this is a dummy cell, skipped", addr)
			continue
		case err != nil:
			rep.Unknown++
			diagf("for %s, %v, skipped", addr, err)
			continue
		}

		idx := l.Index()
		if !picmic.InDomain(idx) {
			rep.OutOfDomain++
			diagf("for %s, line %s normalises to %d outside [0, %d), skipped", addr, l, idx, picmic.DomainWidth)
			continue
		}

		rep.Accepted++
		if !lines.Insert(l.Family, idx) {
			rep.Coalesced++
		}
	}
	return lines, rep
}
