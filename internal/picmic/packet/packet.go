// Package packet implements the run-length packetisation of a line set and the
// 16-bit word format packets travel in.
//
// A packet covers a contiguous run of line indices starting at an active line.
// It is carried as one header word followed by up to 15 data words:
//
//	header  [15:12] number of data words d (0-15)
//	        [11:10] family code (00=Y, 01=R, 10=B, 11 reserved)
//	        [9:0]   start index (0-851)
//	data    16 states, MSB first; bit 15 of the first data word is start+1
//
// The state at start is implied by the header and always active, so only the
// following states are carried in data words. A packet of n states therefore
// takes
//
//	d     = ceil((n-1)/16)
//	words = 1 + d
//
// and an isolated line is a bare header with d=0. Unused low bits of the last
// data word are zero.
package packet

import (
	"fmt"
	"strings"

	"github.com/banshee-data/xypicmic/internal/picmic"
)

// Wire format constants.
const (
	WordBits = 16

	MaxDataWords = 15
	MaxStates    = MaxDataWords * WordBits // 240 states per packet, start included

	countShift  = 12
	countMask   = 0xF
	familyShift = 10
	familyMask  = 0b11
	startMask   = 0x3FF
)

// Header is the decoded form of a packet header word.
type Header struct {
	DataWords int
	Family    picmic.Family
	Start     int
}

// ParseHeader splits a header word into its fields. It performs no range
// checks; see Decoder for validation.
func ParseHeader(w uint16) Header {
	return Header{
		DataWords: int(w>>countShift) & countMask,
		Family:    picmic.Family((w >> familyShift) & familyMask),
		Start:     int(w) & startMask,
	}
}

// Word packs the header fields. Fields are masked to their widths.
func (h Header) Word() uint16 {
	return uint16(h.DataWords&countMask)<<countShift |
		uint16(h.Family&familyMask)<<familyShift |
		uint16(h.Start&startMask)
}

func (h Header) String() string {
	return fmt.Sprintf("Header(d=%d, family=%s, start=%d)", h.DataWords, h.Family, h.Start)
}

// Packet is a run of line states for one family. States[0] is the state at
// Start and is always true; the last state is always true as well.
type Packet struct {
	Start  int
	Family picmic.Family
	States []bool
}

// DataWords returns the number of data words the packet encodes to.
func (p Packet) DataWords() int {
	if len(p.States) <= 1 {
		return 0
	}
	return (len(p.States) - 1 + WordBits - 1) / WordBits
}

// Header returns the packet's header.
func (p Packet) Header() Header {
	return Header{DataWords: p.DataWords(), Family: p.Family, Start: p.Start}
}

// End returns the exclusive end index covered by the packet.
func (p Packet) End() int {
	return p.Start + len(p.States)
}

// Indices returns the active line indices in the packet, ascending.
func (p Packet) Indices() []int {
	var out []int
	for i, s := range p.States {
		if s {
			out = append(out, p.Start+i)
		}
	}
	return out
}

// Words encodes the packet: a header followed by its data words.
func (p Packet) Words() []uint16 {
	return p.AppendWords(make([]uint16, 0, 1+p.DataWords()))
}

// AppendWords appends the packet's words to dst.
func (p Packet) AppendWords(dst []uint16) []uint16 {
	dst = append(dst, p.Header().Word())
	rest := p.States
	if len(rest) > 0 {
		rest = rest[1:]
	}
	for len(rest) > 0 {
		n := min(WordBits, len(rest))
		var w uint16
		for i, s := range rest[:n] {
			if s {
				w |= 1 << (WordBits - 1 - i)
			}
		}
		dst = append(dst, w)
		rest = rest[n:]
	}
	return dst
}

// Validate checks the packet invariants.
func (p Packet) Validate() error {
	switch {
	case !p.Family.Valid():
		return fmt.Errorf("invalid family code %d", uint8(p.Family))
	case !picmic.InDomain(p.Start):
		return fmt.Errorf("start %d outside [0, %d)", p.Start, picmic.DomainWidth)
	case len(p.States) == 0:
		return fmt.Errorf("packet at %d has no states", p.Start)
	case len(p.States) > MaxStates:
		return fmt.Errorf("packet at %d has %d states, max %d", p.Start, len(p.States), MaxStates)
	case !p.States[0]:
		return fmt.Errorf("packet at %d starts on an inactive line", p.Start)
	case p.End() > picmic.DomainWidth:
		return fmt.Errorf("packet at %d runs past the domain end (%d)", p.Start, p.End())
	}
	return nil
}

// String prints the packet with its states as a bit string.
func (p Packet) String() string {
	var b strings.Builder
	for _, s := range p.States {
		if s {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return fmt.Sprintf("LinePacket( start=%d, color=%s, states=%s)", p.Start, p.Family, b.String())
}
