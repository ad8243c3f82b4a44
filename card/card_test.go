package card

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountOfValue(t *testing.T) {
	cases := []struct {
		value Value
		want  int
	}{
		{1, 3},
		{2, 2},
		{3, 2},
		{4, 2},
		{5, 1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CountOfValue(tc.value))
	}
}

func TestDeckSizeIsFifty(t *testing.T) {
	total := 0
	for v := Value(1); v <= ValueMax; v++ {
		total += CountOfValue(v) * NumColors
	}
	require.Equal(t, 50, total)
	require.Equal(t, DeckSize, total)
}

func TestPileProgression(t *testing.T) {
	var p Pile
	require.True(t, p.Empty())
	require.True(t, p.NextValueIs(1))
	require.False(t, p.NextValueIs(2))

	p.Increment()
	require.False(t, p.Empty())
	require.Equal(t, 1, p.Size())
	require.Equal(t, New(Red, 1), p.TopCard(Red))
	require.True(t, p.Contains(1))
	require.False(t, p.Contains(2))
	require.True(t, p.NextValueIs(2))
}

func TestCardIndices(t *testing.T) {
	var ci CardIndices
	require.True(t, ci.Empty())
	ci.Add(0)
	ci.Add(3)
	require.Equal(t, 2, ci.Size())
	require.True(t, ci.Contains(0))
	require.True(t, ci.Contains(3))
	require.False(t, ci.Contains(1))
}
