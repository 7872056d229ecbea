package db

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/banshee-data/xypicmic/internal/picmic"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsEmpty,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// linesBlob is the stored form of picmic.EventLines, keyed by family code.
type linesBlob struct {
	Y []int `cbor:"0,keyasint"`
	R []int `cbor:"1,keyasint"`
	B []int `cbor:"2,keyasint"`
}

func marshalLines(l picmic.EventLines) ([]byte, error) {
	return encMode.Marshal(linesBlob{Y: l.Y, R: l.R, B: l.B})
}

func unmarshalLines(data []byte) (picmic.EventLines, error) {
	var b linesBlob
	if err := decMode.Unmarshal(data, &b); err != nil {
		return picmic.EventLines{}, fmt.Errorf("failed to decode line sets: %w", err)
	}
	l := picmic.EventLines{Y: b.Y, R: b.R, B: b.B}
	for _, f := range picmic.Families {
		if !l.Get(f).Valid() {
			return picmic.EventLines{}, fmt.Errorf("stored %s lines are not a valid set: %v", f, l.Get(f))
		}
	}
	return l, nil
}
