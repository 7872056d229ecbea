package packet

import "github.com/banshee-data/xypicmic/internal/picmic"

const (
	// DomainEnd is the exclusive end of the scan. The boundary window is
	// clipped here so that line 851 is packed like any other line.
	DomainEnd = picmic.DomainWidth

	windowSize = WordBits
)

// Packetize splits a sorted line set into packets, ascending by start.
//
// The scan walks the domain in 16-wide windows from the start of an open
// packet. A window with any active line is appended whole; a window with no
// active line closes the packet. A packet that has reached MaxStates is closed
// and the scan resumes at the same position, so the continuation opens on the
// next active line. Encoders that open the continuation at the scan position
// itself, active or not, produce a different word stream for such events.
// Indices outside the domain are ignored.
func Packetize(set picmic.LineSet, family picmic.Family) []Packet {
	var presence [DomainEnd]bool
	for _, idx := range set {
		if picmic.InDomain(idx) {
			presence[idx] = true
		}
	}

	var (
		packets []Packet
		open    *Packet
	)
	flush := func() {
		packets = append(packets, trim(*open))
		open = nil
	}

	for i := 0; i < DomainEnd; {
		if open == nil {
			if presence[i] {
				open = &Packet{Start: i, Family: family, States: make([]bool, 0, windowSize)}
			} else {
				i++
			}
			continue
		}

		w := min(windowSize, DomainEnd-i)
		window := presence[i : i+w]
		switch {
		case !anyActive(window):
			flush()
			i++
		case len(open.States) >= MaxStates:
			flush()
		default:
			open.States = append(open.States, window...)
			i += w
		}
	}
	if open != nil {
		flush()
	}
	return packets
}

func anyActive(window []bool) bool {
	for _, s := range window {
		if s {
			return true
		}
	}
	return false
}

// trim drops trailing inactive states.
func trim(p Packet) Packet {
	n := len(p.States)
	for n > 0 && !p.States[n-1] {
		n--
	}
	p.States = p.States[:n:n]
	return p
}
