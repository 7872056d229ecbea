// Package codec encodes the active lines of an event into the packet word
// stream and decodes it back.
//
// Packets of all three families share one flat stream with no separator other
// than each packet's own header. Families are always emitted in WireOrder.
package codec

import (
	"errors"
	"fmt"

	"github.com/banshee-data/xypicmic/internal/picmic"
	"github.com/banshee-data/xypicmic/internal/picmic/packet"
)

// WireOrder is the canonical order in which family streams are concatenated.
var WireOrder = [3]picmic.Family{picmic.Blue, picmic.Yellow, picmic.Red}

// ErrRoundTrip is returned by EncodeVerified when the encoding does not decode
// back to its input.
var ErrRoundTrip = errors.New("encoded event does not decode to its input")

// Packets packetises every family of lines in WireOrder.
func Packets(lines picmic.EventLines) []packet.Packet {
	var out []packet.Packet
	for _, f := range WireOrder {
		out = append(out, packet.Packetize(lines.Get(f), f)...)
	}
	return out
}

// Encode returns the word stream for lines.
func Encode(lines picmic.EventLines) []uint16 {
	var words []uint16
	for _, p := range Packets(lines) {
		words = p.AppendWords(words)
	}
	return words
}

// Decode rebuilds the lines of one event from its word stream.
func Decode(words []uint16) (picmic.EventLines, error) {
	return packet.Decode(words)
}

// EncodeVerified encodes lines and checks that the stream decodes back to the
// same sets before returning it.
func EncodeVerified(lines picmic.EventLines) ([]uint16, error) {
	words := Encode(lines)
	got, err := Decode(words)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRoundTrip, err)
	}
	if !got.Equal(lines) {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrRoundTrip, got, lines)
	}
	return words, nil
}

// Stats compares the size of an event in raw addresses and in encoded words.
// Each raw address occupies one 16-bit word in the readout.
type Stats struct {
	Addresses int
	Words     int
}

// SavedRatio is the fraction of words saved by the encoding. It is negative
// when the encoding is larger than the raw event.
func (s Stats) SavedRatio() float64 {
	if s.Addresses == 0 {
		return 0
	}
	return 1 - float64(s.Words)/float64(s.Addresses)
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Addresses += o.Addresses
	s.Words += o.Words
}

func (s Stats) String() string {
	return fmt.Sprintf("Saved %d/%d bytes, data rate saving ~%.02f%%",
		2*(s.Addresses-s.Words), 2*s.Addresses, 100*s.SavedRatio())
}
