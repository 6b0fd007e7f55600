package coinjoin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPrivacyPercentageScenario checks three coins across all tiers where
// only the score 15 coin counts as private.
func TestPrivacyPercentageScenario(t *testing.T) {
	t.Parallel()

	coins := []Coin{
		makeCoin(1, 0, 100_000, 0),
		makeCoin(2, 0, 200_000, 5),
		makeCoin(3, 0, 300_000, 15),
	}

	tiers := make([]Tier, 0, len(coins))
	for _, c := range coins {
		tiers = append(tiers, c.Tier(10))
	}
	require.Equal(t, []Tier{TierRed, TierOrange, TierGreen}, tiers)

	require.InDelta(t, 0.5, PrivacyPercentage(coins, 10), 1e-9)
}

// TestPrivacyPercentageBounds checks the edge cases and the range of the
// privacy percentage.
func TestPrivacyPercentageBounds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		coins []Coin
		want  float64
	}{
		{name: "no coins", coins: nil, want: 1},
		{
			name:  "zero value",
			coins: []Coin{makeCoin(1, 0, 0, 0)},
			want:  1,
		},
		{
			name: "all private",
			coins: []Coin{
				makeCoin(1, 0, 1000, 10), makeCoin(2, 0, 50, 99),
			},
			want: 1,
		},
		{
			name: "none private",
			coins: []Coin{
				makeCoin(1, 0, 1000, 0), makeCoin(2, 0, 50, 9),
			},
			want: 0,
		},
		{
			name: "quarter private",
			coins: []Coin{
				makeCoin(1, 0, 750, 3), makeCoin(2, 0, 250, 11),
			},
			want: 0.25,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := PrivacyPercentage(tc.coins, 10)
			require.InDelta(t, tc.want, got, 1e-9)
			require.GreaterOrEqual(t, got, 0.0)
			require.LessOrEqual(t, got, 1.0)
		})
	}

	for _, n := range []int{1, 7, 50, 200} {
		got := PrivacyPercentage(makeCoinPool(n), 10)
		require.GreaterOrEqual(t, got, 0.0)
		require.LessOrEqual(t, got, 1.0)
	}
}

// TestIsFullyPrivate ensures batching wallets are never reported as fully
// private.
func TestIsFullyPrivate(t *testing.T) {
	t.Parallel()

	require.True(t, IsFullyPrivate(1, false))
	require.False(t, IsFullyPrivate(1, true))
	require.False(t, IsFullyPrivate(0.99, false))
	require.False(t, IsFullyPrivate(0, true))
}
