package address

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/xypicmic/internal/picmic"
)

func TestLoadTableFile(t *testing.T) {
	table, err := LoadTableFile("testdata/small.tab")
	require.NoError(t, err)

	assert.Equal(t, 7, table.Entries())
	assert.Equal(t, 1, table.Dummies())

	tests := []struct {
		addr  picmic.Address
		want  Line
		index int
	}{
		{picmic.Address{Row: 0, Col: 0}, Line{picmic.Yellow, 1}, 0},
		{picmic.Address{Row: 0, Col: 1}, Line{picmic.Red, 0}, 0},
		{picmic.Address{Row: 0, Col: 2}, Line{picmic.Blue, 2}, 0},
		{picmic.Address{Row: 1, Col: 0}, Line{picmic.Yellow, 852}, 851},
		{picmic.Address{Row: 1, Col: 1}, Line{picmic.Red, 851}, 851},
		{picmic.Address{Row: 1, Col: 2}, Line{picmic.Blue, 853}, 851},
	}
	for _, tt := range tests {
		got, err := table.Resolve(tt.addr)
		require.NoError(t, err, tt.addr.String())
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.index, got.Index())
	}
}

func TestResolveDummyAndUnknown(t *testing.T) {
	table, err := LoadTableFile("testdata/small.tab")
	require.NoError(t, err)

	_, err = table.Resolve(picmic.Address{Row: 0, Col: 3})
	assert.ErrorIs(t, err, ErrDummy)

	_, err = table.Resolve(picmic.Address{Row: 5, Col: 5})
	assert.ErrorIs(t, err, ErrUnknownAddress)

	_, err = table.Resolve(picmic.Address{Row: -1, Col: 0})
	assert.ErrorIs(t, err, ErrUnknownAddress)

	_, err = table.Resolve(picmic.Address{Row: 0, Col: picmic.SensorCols})
	assert.ErrorIs(t, err, ErrUnknownAddress)
}

func TestParseTableErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"only comments", "# nothing\n\n"},
		{"missing field", "0 0 Y(1)\n"},
		{"bad column", "x 0 0 Y(1)\n"},
		{"bad row", "0 x 0 Y(1)\n"},
		{"outside sensor", "0 128 0 Y(1)\n"},
		{"bad family", "0 0 0 Q(1)\n"},
		{"bad number", "0 0 0 Y(one)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTable(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseLine(t *testing.T) {
	for name, want := range map[string]Line{
		"Y(12)":  {picmic.Yellow, 12},
		"R[400]": {picmic.Red, 400},
		"B17":    {picmic.Blue, 17},
	} {
		got, dummy, err := ParseLine(name)
		require.NoError(t, err, name)
		assert.False(t, dummy)
		assert.Equal(t, want, got)
		assert.Equal(t, want.String(), got.String())
	}

	_, dummy, err := ParseLine("D(0)")
	require.NoError(t, err)
	assert.True(t, dummy)

	_, _, err = ParseLine("")
	assert.Error(t, err)
}

func TestPutOverwrite(t *testing.T) {
	var table Table
	addr := picmic.Address{Row: 3, Col: 4}
	table.PutDummy(addr)
	table.Put(addr, Line{picmic.Blue, 9})

	assert.Equal(t, 1, table.Entries())
	assert.Equal(t, 0, table.Dummies())

	got, err := table.Resolve(addr)
	require.NoError(t, err)
	assert.Equal(t, Line{picmic.Blue, 9}, got)
	assert.False(t, errors.Is(err, ErrDummy))
}
