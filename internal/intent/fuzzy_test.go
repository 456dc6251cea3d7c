package intent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRatio_Identical(t *testing.T) {
	require.Equal(t, 1.0, ratio("refund", "refund"))
}

func TestRatio_Disjoint(t *testing.T) {
	require.Equal(t, 0.0, ratio("abc", "xyz"))
}

func TestRatio_Empty(t *testing.T) {
	require.Equal(t, 0.0, ratio("", "refund"))
	require.Equal(t, 0.0, ratio("refund", ""))
	require.Equal(t, 0.0, ratio("", ""))
}

func TestRatio_Symmetric(t *testing.T) {
	require.Equal(t, ratio("order", "ord"), ratio("ord", "order"))
}

func TestRatio_TruncationAtThreshold(t *testing.T) {
	// "ord" shares all three runes with "order": 2*3/(5+3) = 0.75 exactly.
	require.InDelta(t, 0.75, ratio("order", "ord"), 1e-9)
}

func TestRatio_BelowThreshold(t *testing.T) {
	require.Less(t, ratio("order", "orx"), 0.75)
	require.Less(t, ratio("refund", "fund"), 0.84) // 2*4/10 = 0.8
}

func TestLCSLength(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 0},
		{"abc", "abc", 3},
		{"order", "ord", 3},
		{"refund", "fund", 4},
		{"abcde", "ace", 3},
		{"abc", "cba", 1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, lcsLength(tc.a, tc.b), "a=%q b=%q", tc.a, tc.b)
	}
}
