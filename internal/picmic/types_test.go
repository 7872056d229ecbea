package picmic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFamilyCodes(t *testing.T) {
	assert.Equal(t, uint8(0b00), uint8(Yellow))
	assert.Equal(t, uint8(0b01), uint8(Red))
	assert.Equal(t, uint8(0b10), uint8(Blue))
	assert.False(t, FamilyReserved.Valid())

	for _, f := range Families {
		assert.True(t, f.Valid(), f.String())
	}
	assert.Equal(t, "Family(3)", FamilyReserved.String())
}

func TestFamilyNormalize(t *testing.T) {
	tests := []struct {
		family Family
		raw    int
		want   int
	}{
		{Yellow, 1, 0},
		{Yellow, 852, 851},
		{Blue, 2, 0},
		{Blue, 853, 851},
		{Red, 0, 0},
		{Red, 851, 851},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.family.Normalize(tt.raw), "%s%d", tt.family, tt.raw)
	}
}

func TestParseFamily(t *testing.T) {
	for c, want := range map[byte]Family{'Y': Yellow, 'R': Red, 'B': Blue, 'b': Blue} {
		got, ok := ParseFamily(c)
		require.True(t, ok, string(c))
		assert.Equal(t, want, got)
	}
	_, ok := ParseFamily('D')
	assert.False(t, ok)
	_, ok = ParseFamily('X')
	assert.False(t, ok)
}

func TestLineSetInsert(t *testing.T) {
	var s LineSet
	for _, v := range []int{40, 3, 17, 3, 851, 0, 17} {
		s.Insert(v)
	}
	assert.Equal(t, LineSet{0, 3, 17, 40, 851}, s)
	assert.True(t, s.Valid())
	assert.True(t, s.Contains(17))
	assert.False(t, s.Contains(18))

	assert.False(t, s.Insert(40), "duplicate insert must not change the set")
}

func TestLineSetValid(t *testing.T) {
	assert.True(t, LineSet(nil).Valid())
	assert.False(t, LineSet{1, 1}.Valid())
	assert.False(t, LineSet{2, 1}.Valid())
	assert.False(t, LineSet{852}.Valid())
	assert.False(t, LineSet{-1}.Valid())
}

func TestEventLines(t *testing.T) {
	var e EventLines
	e.Insert(Blue, 10)
	e.Insert(Blue, 4)
	e.Insert(Yellow, 7)

	assert.Equal(t, LineSet{4, 10}, e.Get(Blue))
	assert.Equal(t, 3, e.Len())
	assert.Equal(t, 2, e.ActiveFamilies())

	other := EventLines{Y: LineSet{7}, B: LineSet{4, 10}, R: LineSet{}}
	assert.True(t, e.Equal(other), "nil and empty sets compare equal")

	other.Set(Red, LineSet{1})
	assert.False(t, e.Equal(other))

	assert.Panics(t, func() { e.Get(FamilyReserved) })
}
