package coinjoin

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestSelector returns a deterministic selector.
func newTestSelector(t *testing.T, seed uint64, workers int) *Selector {
	t.Helper()

	selector, err := NewSelector(SelectorConfig{
		NewRand: testRandFactory(seed),
		Workers: workers,
	})
	require.NoError(t, err)

	return selector
}

// TestNewSelector checks defaults and config validation.
func TestNewSelector(t *testing.T) {
	t.Parallel()

	selector, err := NewSelector(SelectorConfig{})
	require.NoError(t, err)
	require.Equal(t, DefaultTrials, selector.cfg.Trials)
	require.Equal(t, DefaultMinCoins, selector.cfg.MinCoins)
	require.Equal(t, DefaultMaxCoins, selector.cfg.MaxCoins)
	require.NotNil(t, selector.cfg.NewRand)
	require.Positive(t, selector.cfg.Workers)

	_, err = NewSelector(SelectorConfig{MinCoins: 20, MaxCoins: 10})
	require.ErrorIs(t, err, ErrInvalidCoinRange)
}

// TestSelectEmptyCandidates checks that no trial runs without candidates.
func TestSelectEmptyCandidates(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	selector, err := NewSelector(SelectorConfig{
		NewRand: func(trial int) Rand {
			calls.Add(1)
			return newTestRand(testSeed, trial)
		},
	})
	require.NoError(t, err)

	payments := []PendingPayment{makePayment("a", 10_000)}
	solution, err := selector.Select(
		context.Background(), nil, payments, testParams(),
	)
	require.NoError(t, err)
	require.Empty(t, solution.Coins())
	require.Empty(t, solution.HandledPayments())
	require.Zero(t, calls.Load())
}

// TestSelectBestOfTrials replays every trial and checks the selector
// returned the first solution with the highest score.
func TestSelectBestOfTrials(t *testing.T) {
	t.Parallel()

	candidates := makeCoinPool(50)
	payments := []PendingPayment{
		makePayment("a", 150_000), makePayment("b", 320_000),
		makePayment("c", 700_000),
	}
	params := testParams()

	selector := newTestSelector(t, testSeed, 4)
	best, err := selector.Select(
		context.Background(), candidates, payments, params,
	)
	require.NoError(t, err)

	var first *Solution
	for trial := range DefaultTrials {
		rng := newTestRand(testSeed, trial)
		maxCoins := DefaultMinCoins +
			rng.IntN(DefaultMaxCoins-DefaultMinCoins+1)
		require.GreaterOrEqual(t, maxCoins, DefaultMinCoins)
		require.LessOrEqual(t, maxCoins, DefaultMaxCoins)

		solution := buildSolution(
			rng, candidates, payments, params.forTrial(maxCoins),
		)
		require.GreaterOrEqual(t, best.Score(), solution.Score())

		if first == nil && solution.Score() == best.Score() {
			first = solution
		}
	}

	require.NotNil(t, first)
	require.True(t, first.Equal(best))
	require.Equal(t, first.Params().MaxCoins, best.Params().MaxCoins)
}

// TestSelectDeterministic ensures the worker count does not change the
// outcome for a fixed seed.
func TestSelectDeterministic(t *testing.T) {
	t.Parallel()

	candidates := makeCoinPool(40)
	payments := []PendingPayment{makePayment("a", 250_000)}

	serial, err := newTestSelector(t, 7, 1).Select(
		context.Background(), candidates, payments, testParams(),
	)
	require.NoError(t, err)

	parallel, err := newTestSelector(t, 7, 16).Select(
		context.Background(), candidates, payments, testParams(),
	)
	require.NoError(t, err)

	require.True(t, serial.Equal(parallel))
	require.Equal(t, serial.Score(), parallel.Score())
}

// TestSelectRedIsolation checks every trial is limited to one red coin.
func TestSelectRedIsolation(t *testing.T) {
	t.Parallel()

	params := testParams()
	params.RedCoinIsolation = true
	params.ConsolidationMode = true

	for seed := range uint64(5) {
		solution, err := newTestSelector(t, seed, 4).Select(
			context.Background(), makeCoinPool(60), nil, params,
		)
		require.NoError(t, err)
		require.LessOrEqual(t, solution.TierCounts()[TierRed], 1)
		require.Equal(t, 1, solution.Params().MaxPerTier[TierRed])
	}

	// The caller's params are left untouched.
	require.Nil(t, params.MaxPerTier)
}

// TestSelectCanceled checks a canceled context aborts the selection.
func TestSelectCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSelector(t, testSeed, 2).Select(
		ctx, makeCoinPool(20), nil, testParams(),
	)
	require.ErrorIs(t, err, context.Canceled)
}

// TestBestSolutionTieBreak checks the first of equally scored solutions
// wins.
func TestBestSolutionTieBreak(t *testing.T) {
	t.Parallel()

	first := newSolution(testParams(), 0)
	second := newSolution(testParams(), 0)

	require.Same(t, first, bestSolution([]*Solution{nil, first, second}))
	require.Nil(t, bestSolution(nil))

	better := newSolution(freeParams(), 0)
	coin := makeCoin(1, 0, 100_000, 0)
	addTestCoin(better, &coin)
	require.Same(t, better, bestSolution([]*Solution{first, better}))
}
