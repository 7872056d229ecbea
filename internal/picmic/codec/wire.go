package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/xypicmic/internal/picmic/packet"
)

// ByteOrder is the byte order of words on disk and in the store.
var ByteOrder = binary.BigEndian

// MarshalWords serialises words, two bytes each.
func MarshalWords(words []uint16) []byte {
	buf := make([]byte, 2*len(words))
	for i, w := range words {
		ByteOrder.PutUint16(buf[2*i:], w)
	}
	return buf
}

// UnmarshalWords parses a byte slice produced by MarshalWords.
func UnmarshalWords(buf []byte) ([]uint16, error) {
	if len(buf)%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte count %d", packet.ErrTruncated, len(buf))
	}
	words := make([]uint16, len(buf)/2)
	for i := range words {
		words[i] = ByteOrder.Uint16(buf[2*i:])
	}
	return words, nil
}

// WriteFrame writes one event as a 16-bit word count followed by its words.
func WriteFrame(w io.Writer, words []uint16) error {
	if len(words) > 0xFFFF {
		return fmt.Errorf("frame of %d words exceeds the 16-bit length prefix", len(words))
	}
	var n [2]byte
	ByteOrder.PutUint16(n[:], uint16(len(words)))
	if _, err := w.Write(n[:]); err != nil {
		return err
	}
	_, err := w.Write(MarshalWords(words))
	return err
}

// ReadFrame reads one frame written by WriteFrame. It returns io.EOF when r is
// exhausted at a frame boundary and a wrapped packet.ErrTruncated when a frame
// is cut short.
func ReadFrame(r io.Reader) ([]uint16, error) {
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: frame length", packet.ErrTruncated)
		}
		return nil, err
	}
	buf := make([]byte, 2*int(ByteOrder.Uint16(n[:])))
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: frame body", packet.ErrTruncated)
		}
		return nil, err
	}
	return UnmarshalWords(buf)
}

// FormatWords renders words as space-separated 4-digit hex.
func FormatWords(words []uint16) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%04X", w)
	}
	return b.String()
}

// ParseWords parses the output of FormatWords. An optional 0x prefix is
// accepted on each word.
func ParseWords(s string) ([]uint16, error) {
	fields := strings.Fields(s)
	words := make([]uint16, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X"), 16, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid word %q: %w", f, err)
		}
		words = append(words, uint16(v))
	}
	return words, nil
}
