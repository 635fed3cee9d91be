package ru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountOfType(t *testing.T) {
	assert.Equal(t, 9, CountOfType(BW20, RU26))
	assert.Equal(t, 4, CountOfType(BW20, RU52))
	assert.Equal(t, 2, CountOfType(BW20, RU106))
	assert.Equal(t, 1, CountOfType(BW20, RU242))
	assert.Equal(t, 18, CountOfType(BW40, RU26))
	assert.Equal(t, 37, CountOfType(BW80, RU26))
	assert.Equal(t, 16, CountOfType(BW80, RU52))
	assert.Equal(t, 8, CountOfType(BW80, RU106))
	assert.Equal(t, 74, CountOfType(BW160, RU26))
	assert.Equal(t, 2, CountOfType(BW160, RU996))
	assert.Equal(t, 1, CountOfType(BW160, RU2x996))
	// No 484-tone RUs in a 20 MHz channel.
	assert.Equal(t, 0, CountOfType(BW20, RU484))
}

func TestSubcarrierGroup_Errors(t *testing.T) {
	_, err := SubcarrierGroup(BW20, RU484, 1)
	assert.ErrorIs(t, err, ErrUnknownPlan)

	_, err = SubcarrierGroup(BW20, RU26, 10)
	assert.ErrorIs(t, err, ErrBadIndex)

	_, err = SubcarrierGroup(BW20, RU26, 0)
	assert.ErrorIs(t, err, ErrBadIndex)
}

func TestSubcarrierGroup_Central26IsSplit(t *testing.T) {
	group, err := SubcarrierGroup(BW20, RU26, 5)
	require.NoError(t, err)
	require.Len(t, group, 2)
	assert.Equal(t, ToneRange{-16, -4}, group[0])
	assert.Equal(t, ToneRange{4, 16}, group[1])
}

func TestSubcarrierGroup_160IsShifted80(t *testing.T) {
	lower, err := SubcarrierGroup(BW160, RU106, 1)
	require.NoError(t, err)
	upper, err := SubcarrierGroup(BW160, RU106, 9)
	require.NoError(t, err)
	base, err := SubcarrierGroup(BW80, RU106, 1)
	require.NoError(t, err)

	assert.Equal(t, base[0].Lo-512, lower[0].Lo)
	assert.Equal(t, base[0].Hi-512, lower[0].Hi)
	assert.Equal(t, base[0].Lo+512, upper[0].Lo)
	assert.Equal(t, base[0].Hi+512, upper[0].Hi)
}

// Two distinct indices of the same type in the same 80 MHz half must never
// share a subcarrier, for every plan in the catalog.
func TestSubcarrierGroup_NoSameTypeOverlap(t *testing.T) {
	for _, bw := range []Bandwidth{BW20, BW40, BW80, BW160} {
		for _, rt := range []Type{RU26, RU52, RU106, RU242, RU484, RU996} {
			n := CountOfType(bw, rt)
			for i := 1; i <= n; i++ {
				gi, err := SubcarrierGroup(bw, rt, i)
				require.NoError(t, err)
				for j := i + 1; j <= n; j++ {
					gj, err := SubcarrierGroup(bw, rt, j)
					require.NoError(t, err)
					for _, a := range gi {
						for _, b := range gj {
							assert.False(t, a.Overlaps(b),
								"%s at %d MHz: indices %d and %d overlap", rt, bw, i, j)
						}
					}
				}
			}
		}
	}
}

func TestDoesOverlap_Central26Against106(t *testing.T) {
	central := RU{Type: RU26, Index: 5, Primary80: true}
	first106 := RU{Type: RU106, Index: 1, Primary80: true}

	assert.True(t, DoesOverlap(BW20, central, []RU{first106}))
	assert.False(t, DoesOverlap(BW20,
		RU{Type: RU26, Index: 1, Primary80: true},
		[]RU{{Type: RU106, Index: 2, Primary80: true}}))
}

func TestDoesOverlap_WholeChannelOverlapsEverything(t *testing.T) {
	whole := RU{Type: RU2x996, Index: 1, Primary80: true}
	assert.True(t, DoesOverlap(BW160, whole, []RU{{Type: RU26, Index: 3, Primary80: false}}))
	assert.True(t, DoesOverlap(BW160, RU{Type: RU26, Index: 3, Primary80: false}, []RU{whole}))
}

func TestDoesOverlap_SkipsOtherHalf(t *testing.T) {
	a := RU{Type: RU484, Index: 1, Primary80: true}
	b := RU{Type: RU484, Index: 1, Primary80: false}
	assert.False(t, DoesOverlap(BW160, a, []RU{b}))
}

func TestFindOverlappingRU(t *testing.T) {
	got, err := FindOverlappingRU(BW20, RU{Type: RU26, Index: 2, Primary80: true}, RU52)
	require.NoError(t, err)
	assert.Equal(t, RU{Type: RU52, Index: 1, Primary80: true}, got)

	_, err = FindOverlappingRU(BW20, RU{Type: RU26, Index: 5, Primary80: true}, RU52)
	assert.ErrorIs(t, err, ErrNoOverlap)
}

func TestEqualSizedRUsForStations(t *testing.T) {
	cases := []struct {
		bw       Bandwidth
		stations int
		rt       Type
		assigned int
		central  int
	}{
		{BW20, 1, RU242, 1, 0},
		{BW20, 2, RU106, 2, 1},
		{BW20, 3, RU106, 2, 1},
		{BW20, 4, RU52, 4, 1},
		{BW20, 8, RU52, 4, 1},
		{BW20, 9, RU26, 9, 0},
		{BW20, 30, RU26, 9, 0},
		{BW40, 2, RU242, 2, 0},
		{BW40, 4, RU106, 4, 2},
		{BW80, 4, RU242, 4, 1},
		{BW80, 8, RU106, 8, 5},
		{BW160, 1, RU2x996, 1, 0},
		{BW160, 2, RU996, 2, 0},
		{BW160, 16, RU106, 16, 10},
	}
	for _, tc := range cases {
		rt, assigned, central := EqualSizedRUsForStations(tc.bw, tc.stations)
		assert.Equal(t, tc.rt, rt, "type for %d stations at %d MHz", tc.stations, tc.bw)
		assert.Equal(t, tc.assigned, assigned, "assigned for %d stations at %d MHz", tc.stations, tc.bw)
		assert.Equal(t, tc.central, central, "central RUs for %d stations at %d MHz", tc.stations, tc.bw)
		assert.Greater(t, assigned, 0)
		assert.LessOrEqual(t, assigned, tc.stations)
	}
}

func TestCentral26ToneRUs(t *testing.T) {
	assert.Len(t, Central26ToneRUs(BW20, RU106), 1)
	assert.Len(t, Central26ToneRUs(BW40, RU52), 2)
	assert.Len(t, Central26ToneRUs(BW80, RU106), 5)
	assert.Len(t, Central26ToneRUs(BW160, RU106), 10)
	assert.Len(t, Central26ToneRUs(BW80, RU242), 1)
	assert.Len(t, Central26ToneRUs(BW160, RU484), 2)
	assert.Empty(t, Central26ToneRUs(BW20, RU242))
	assert.Empty(t, Central26ToneRUs(BW20, RU26))
}
