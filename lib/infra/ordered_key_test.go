package infra

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareKeys(t *testing.T) {
	testcases := []struct {
		name string
		i, j string
		want int
	}{
		{"equal", "bob", "bob", 0},
		{"less", "alice", "bob", -1},
		{"greater", "carol", "bob", 1},
		{"empty less", "", "a", -1},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			require.Equal(tt, tc.want, CompareKeys(tc.i, tc.j))
		})
	}

	require.Equal(t, -1, CompareKeys(-3, 2))
	require.Equal(t, 1, CompareKeys(uint8(7), uint8(1)))
	require.Equal(t, 0, CompareKeys(1.5, 1.5))

	nan := math.NaN()
	require.Equal(t, 0, CompareKeys(nan, nan))
	require.Equal(t, -1, CompareKeys(nan, math.Inf(-1)))
	require.Equal(t, 1, CompareKeys(2.0, nan))
	require.Equal(t, -1, CompareKeys(float32(nan), float32(-1)))
}
