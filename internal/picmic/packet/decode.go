package packet

import (
	"errors"
	"fmt"

	"github.com/banshee-data/xypicmic/internal/picmic"
)

// Protocol violations reported by the decoder. Errors returned by Decoder
// wrap one of these with the offending word offset.
var (
	ErrTruncated        = errors.New("word stream truncated inside a packet")
	ErrReservedFamily   = errors.New("reserved family code")
	ErrStartOutOfRange  = errors.New("packet start outside the line domain")
	ErrIndexOutOfRange  = errors.New("packet runs past the line domain")
	ErrUnordered        = errors.New("line indices not ascending within family")
	ErrDecoderFinalized = errors.New("decoder already finished")
)

// Decoder rebuilds line sets from a word stream in a single pass. Words may be
// fed in any chunking; Finish reports a packet cut short by the end of stream.
type Decoder struct {
	lines     picmic.EventLines
	remaining int
	family    picmic.Family
	cursor    int
	offset    int
	packets   int
	done      bool
	err       error
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write consumes words. After the first error every further call returns it.
func (d *Decoder) Write(words ...uint16) error {
	if d.done {
		return ErrDecoderFinalized
	}
	if d.err != nil {
		return d.err
	}
	for _, w := range words {
		if d.remaining == 0 {
			d.err = d.header(w)
		} else {
			d.err = d.data(w)
		}
		if d.err != nil {
			d.err = fmt.Errorf("word %d (0x%04X): %w", d.offset, w, d.err)
			return d.err
		}
		d.offset++
	}
	return nil
}

func (d *Decoder) header(w uint16) error {
	h := ParseHeader(w)
	if !h.Family.Valid() {
		return ErrReservedFamily
	}
	if !picmic.InDomain(h.Start) {
		return fmt.Errorf("%w: %d", ErrStartOutOfRange, h.Start)
	}
	d.family = h.Family
	d.cursor = h.Start
	d.remaining = h.DataWords
	d.packets++
	return d.add(h.Start)
}

func (d *Decoder) data(w uint16) error {
	for i := 0; i < WordBits; i++ {
		d.cursor++
		if w>>(WordBits-1-i)&1 == 0 {
			continue
		}
		if !picmic.InDomain(d.cursor) {
			return fmt.Errorf("%w: line %d", ErrIndexOutOfRange, d.cursor)
		}
		if err := d.add(d.cursor); err != nil {
			return err
		}
	}
	d.remaining--
	return nil
}

func (d *Decoder) add(idx int) error {
	set := d.lines.Get(d.family)
	if n := len(set); n > 0 && set[n-1] >= idx {
		return fmt.Errorf("%w: %s%d after %s%d", ErrUnordered, d.family, idx, d.family, set[n-1])
	}
	d.lines.Set(d.family, append(set, idx))
	return nil
}

// Packets returns the number of headers decoded so far.
func (d *Decoder) Packets() int { return d.packets }

// Finish ends the stream and returns the decoded lines. A header whose data
// words did not all arrive yields ErrTruncated.
func (d *Decoder) Finish() (picmic.EventLines, error) {
	d.done = true
	if d.err != nil {
		return picmic.EventLines{}, d.err
	}
	if d.remaining > 0 {
		return picmic.EventLines{}, fmt.Errorf("%w: %d data words missing after word %d", ErrTruncated, d.remaining, d.offset)
	}
	return d.lines, nil
}

// Decode decodes a complete word stream.
func Decode(words []uint16) (picmic.EventLines, error) {
	d := NewDecoder()
	if err := d.Write(words...); err != nil {
		return picmic.EventLines{}, err
	}
	return d.Finish()
}

// Split cuts a word stream into packets without interpreting the data bits
// beyond their count. Trailing zero states of the last data word are dropped
// so the result matches what Packetize produced.
func Split(words []uint16) ([]Packet, error) {
	var packets []Packet
	for i := 0; i < len(words); {
		h := ParseHeader(words[i])
		if !h.Family.Valid() {
			return nil, fmt.Errorf("word %d: %w", i, ErrReservedFamily)
		}
		if !picmic.InDomain(h.Start) {
			return nil, fmt.Errorf("word %d: %w: %d", i, ErrStartOutOfRange, h.Start)
		}
		if i+1+h.DataWords > len(words) {
			return nil, fmt.Errorf("word %d: %w: header declares %d data words, %d left", i, ErrTruncated, h.DataWords, len(words)-i-1)
		}
		p := Packet{Start: h.Start, Family: h.Family, States: make([]bool, 1, 1+h.DataWords*WordBits)}
		p.States[0] = true
		for _, w := range words[i+1 : i+1+h.DataWords] {
			for b := 0; b < WordBits; b++ {
				p.States = append(p.States, w>>(WordBits-1-b)&1 == 1)
			}
		}
		packets = append(packets, trim(p))
		i += 1 + h.DataWords
	}
	return packets, nil
}
