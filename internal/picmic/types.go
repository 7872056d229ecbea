// Package picmic holds the types shared by the PICMIC line codec: line
// families, sorted line sets, sensor addresses and the fixed index domain.
//
// The PICMIC sensor is a triangle tiled by three families of parallel lines:
//
//	Y (yellow)  0° lines
//	R (red)    30° lines
//	B (blue)   60° lines
//
// Every family is indexed over the same logical domain [0, DomainWidth).
package picmic

import (
	"fmt"
	"sort"
)

// Sensor and domain constants.
const (
	SensorRows = 128 // physical readout rows
	SensorCols = 54  // physical readout columns

	DomainWidth = 852 // number of lines in one family
)

// Family identifies one of the three line orientations. The numeric value is
// the 2-bit code carried in packet headers.
type Family uint8

const (
	Yellow Family = 0b00
	Red    Family = 0b01
	Blue   Family = 0b10

	// FamilyReserved is the unused 2-bit code. It never appears in a valid stream.
	FamilyReserved Family = 0b11
)

// Families lists the valid families in code order.
var Families = [3]Family{Yellow, Red, Blue}

// Valid reports whether f is one of Y, R or B.
func (f Family) Valid() bool {
	return f == Yellow || f == Red || f == Blue
}

func (f Family) String() string {
	switch f {
	case Yellow:
		return "Y"
	case Red:
		return "R"
	case Blue:
		return "B"
	default:
		return fmt.Sprintf("Family(%d)", uint8(f))
	}
}

// Offset is the amount subtracted from a raw address-table index to obtain the
// normalised line index. With these offsets B and Y span [0, 851] and R keeps
// its raw [0, 851] numbering; the geometric layer shifts R further by -427 so
// that -1 <= y-b-r <= +1 holds at every triple intersection.
func (f Family) Offset() int {
	switch f {
	case Yellow:
		return 1
	case Blue:
		return 2
	default:
		return 0
	}
}

// Normalize maps a raw table index to the line index for family f.
func (f Family) Normalize(raw int) int {
	return raw - f.Offset()
}

// ParseFamily maps an address-table letter to a Family. The second result is
// false for the dummy marker 'D' and for any unknown letter.
func ParseFamily(c byte) (Family, bool) {
	switch c {
	case 'Y', 'y':
		return Yellow, true
	case 'R', 'r':
		return Red, true
	case 'B', 'b':
		return Blue, true
	}
	return FamilyReserved, false
}

// InDomain reports whether idx is a valid line index.
func InDomain(idx int) bool {
	return idx >= 0 && idx < DomainWidth
}

// Address is a physical sensor element address.
type Address struct {
	Row int
	Col int
}

func (a Address) String() string {
	return fmt.Sprintf("(%d, %d)", a.Row, a.Col)
}

// Event is one readout record: the ordered list of addresses that fired.
type Event struct {
	Number    int
	Addresses []Address
}

// LineSet is an ascending, duplicate-free list of line indices.
type LineSet []int

// Insert adds idx keeping the set sorted and unique. It reports whether the
// set changed.
func (s *LineSet) Insert(idx int) bool {
	set := *s
	i := sort.SearchInts(set, idx)
	if i < len(set) && set[i] == idx {
		return false
	}
	set = append(set, 0)
	copy(set[i+1:], set[i:])
	set[i] = idx
	*s = set
	return true
}

// Contains reports whether idx is in the set.
func (s LineSet) Contains(idx int) bool {
	i := sort.SearchInts(s, idx)
	return i < len(s) && s[i] == idx
}

// Equal reports element-wise equality. A nil and an empty set are equal.
func (s LineSet) Equal(o LineSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Valid reports whether the set is strictly ascending and inside the domain.
func (s LineSet) Valid() bool {
	for i, v := range s {
		if !InDomain(v) {
			return false
		}
		if i > 0 && s[i-1] >= v {
			return false
		}
	}
	return true
}

// EventLines holds the active lines of one event, per family.
type EventLines struct {
	Y LineSet
	R LineSet
	B LineSet
}

// Get returns the set for family f. It panics on the reserved code.
func (e *EventLines) Get(f Family) LineSet {
	return *e.ref(f)
}

// Set replaces the set for family f.
func (e *EventLines) Set(f Family, s LineSet) {
	*e.ref(f) = s
}

// Insert adds idx to the set of family f.
func (e *EventLines) Insert(f Family, idx int) bool {
	return e.ref(f).Insert(idx)
}

func (e *EventLines) ref(f Family) *LineSet {
	switch f {
	case Yellow:
		return &e.Y
	case Red:
		return &e.R
	case Blue:
		return &e.B
	}
	panic(fmt.Sprintf("picmic: invalid family %d", uint8(f)))
}

// Equal reports whether both events have the same lines in every family.
func (e EventLines) Equal(o EventLines) bool {
	return e.Y.Equal(o.Y) && e.R.Equal(o.R) && e.B.Equal(o.B)
}

// Len is the total number of active lines.
func (e EventLines) Len() int {
	return len(e.Y) + len(e.R) + len(e.B)
}

// ActiveFamilies counts families with at least one active line.
func (e EventLines) ActiveFamilies() int {
	n := 0
	for _, s := range []LineSet{e.Y, e.R, e.B} {
		if len(s) > 0 {
			n++
		}
	}
	return n
}

func (e EventLines) String() string {
	return fmt.Sprintf("EventLines(Y=%v, R=%v, B=%v)", []int(e.Y), []int(e.R), []int(e.B))
}
