package coinjoin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcmix/pkg/btcunit"
	"github.com/btcsuite/btcwallet/wtxmgr"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	errTest = errors.New("test error")

	testLockID  = wtxmgr.LockID{0x01}
	otherLockID = wtxmgr.LockID{0x02}
)

// walletHarness bundles a wallet with its mocked collaborators.
type walletHarness struct {
	wallet   *Wallet
	coins    *mockSnapshotSource
	locks    *mockLockManager
	payments *mockPaymentSource
	results  *mockResultStore
	bans     *BanTable
}

// newWalletHarness creates a wallet whose collaborators are mocks.
func newWalletHarness(t *testing.T, store StoreConfig) *walletHarness {
	t.Helper()

	h := &walletHarness{
		coins:    &mockSnapshotSource{},
		locks:    &mockLockManager{},
		payments: &mockPaymentSource{},
		results:  &mockResultStore{},
		bans:     NewBanTable(0),
	}

	selector, err := NewSelector(SelectorConfig{
		NewRand: testRandFactory(testSeed),
	})
	require.NoError(t, err)

	h.wallet, err = NewWallet(WalletConfig{
		ID:       "wallet-1",
		LockID:   testLockID,
		Store:    store,
		Coins:    h.coins,
		Locks:    h.locks,
		Payments: h.payments,
		Results:  h.results,
		Bans:     h.bans,
		Selector: selector,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		h.coins.AssertExpectations(t)
		h.locks.AssertExpectations(t)
		h.payments.AssertExpectations(t)
		h.results.AssertExpectations(t)
	})

	return h
}

// TestNewWalletValidation checks the required collaborators and settings.
func TestNewWalletValidation(t *testing.T) {
	t.Parallel()

	selector, err := NewSelector(SelectorConfig{})
	require.NoError(t, err)

	_, err = NewWallet(WalletConfig{})
	require.ErrorIs(t, err, ErrMissingCollaborator)

	_, err = NewWallet(WalletConfig{
		Coins:    &mockSnapshotSource{},
		Locks:    &mockLockManager{},
		Selector: selector,
	})
	require.ErrorIs(t, err, ErrInvalidAnonScoreTarget)

	// Simple mode brings its own target.
	w, err := NewWallet(WalletConfig{
		Coins:    &mockSnapshotSource{},
		Locks:    &mockLockManager{},
		Selector: selector,
		Store: StoreConfig{
			AnonScoreTarget:   50,
			ConsolidationMode: true,
			RedCoinIsolation:  true,
			SimpleMode:        true,
		},
	})
	require.NoError(t, err)
	require.Equal(t, StoreConfig{
		AnonScoreTarget: simpleModeAnonScoreTarget,
		SimpleMode:      true,
	}, w.Config())
}

// TestWalletCandidates checks locks, labels and bans are applied to the
// snapshot.
func TestWalletCandidates(t *testing.T) {
	t.Parallel()

	h := newWalletHarness(t, StoreConfig{
		AnonScoreTarget:     10,
		InputLabelsExcluded: []string{"kyc"},
	})

	free := makeCoin(1, 0, 100_000, 0)
	leased := makeCoin(2, 0, 100_000, 0)
	expiredLease := makeCoin(3, 0, 100_000, 0)
	kyc := makeCoin(4, 0, 100_000, 0)
	kyc.Labels = []string{"kyc"}
	banned := makeCoin(5, 0, 100_000, 0)

	h.bans.Ban("zksnacks", banned.OutPoint, time.Now().Add(time.Hour))

	h.coins.On("ListCoins", mock.Anything).Return(
		[]Coin{free, leased, expiredLease, kyc, banned}, nil,
	).Once()
	h.locks.On("ListLeasedOutputs", mock.Anything).Return(
		[]*wtxmgr.LockedOutput{
			{
				Outpoint:   leased.OutPoint,
				LockID:     otherLockID,
				Expiration: time.Now().Add(time.Hour),
			},
			{
				Outpoint:   expiredLease.OutPoint,
				LockID:     otherLockID,
				Expiration: time.Now().Add(-time.Hour),
			},
		}, nil,
	).Once()

	got := h.wallet.Candidates(context.Background(), "zksnacks")
	require.Equal(t, []wire.OutPoint{
		free.OutPoint, expiredLease.OutPoint,
	}, outpoints(got))
}

// TestWalletCandidatesCollaboratorFailure checks failures yield no
// candidates instead of an error.
func TestWalletCandidatesCollaboratorFailure(t *testing.T) {
	t.Parallel()

	t.Run("snapshot", func(t *testing.T) {
		t.Parallel()

		h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})
		h.coins.On("ListCoins", mock.Anything).Return(
			nil, errTest,
		).Once()

		require.Empty(t, h.wallet.Candidates(
			context.Background(), "zksnacks",
		))
	})

	t.Run("locks", func(t *testing.T) {
		t.Parallel()

		h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})
		h.coins.On("ListCoins", mock.Anything).Return(
			makeCoinPool(5), nil,
		).Once()
		h.locks.On("ListLeasedOutputs", mock.Anything).Return(
			nil, errTest,
		).Once()

		require.Empty(t, h.wallet.Candidates(
			context.Background(), "zksnacks",
		))
	})
}

// TestWalletSelectCoins runs a full selection through the wallet.
func TestWalletSelectCoins(t *testing.T) {
	t.Parallel()

	h := newWalletHarness(t, StoreConfig{
		AnonScoreTarget:  10,
		RedCoinIsolation: true,
	})

	coins := makeCoinPool(40)
	payments := []PendingPayment{
		makePayment("a", 120_000), makePayment("b", 80_000),
	}

	h.coins.On("ListCoins", mock.Anything).Return(coins, nil).Once()
	h.locks.On("ListLeasedOutputs", mock.Anything).Return(
		[]*wtxmgr.LockedOutput{}, nil,
	).Once()
	h.payments.On("PendingPayments", mock.Anything, "zksnacks").Return(
		payments, nil,
	).Once()

	round := RoundParameters{
		MiningFeeRate:       btcunit.NewSatPerKVByte(2000),
		CoordinationFeeRate: CoordinationFeeRate{Rate: 0.003},
	}

	solution, err := h.wallet.SelectCoins(
		context.Background(), "zksnacks", round,
	)
	require.NoError(t, err)
	require.NotEmpty(t, solution.Coins())
	require.LessOrEqual(t, solution.TierCounts()[TierRed], 1)
	require.Equal(t, 2, solution.TotalPending())

	params := solution.Params()
	require.True(t, params.RedCoinIsolation)
	require.Equal(t, 10.0, params.AnonScoreTarget)
	require.Equal(t, round.MiningFeeRate, params.MiningFeeRate)
}

// TestWalletSelectCoinsWithoutPayments checks a failing payment source is
// treated as an empty queue.
func TestWalletSelectCoinsWithoutPayments(t *testing.T) {
	t.Parallel()

	h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})

	h.coins.On("ListCoins", mock.Anything).Return(
		makeCoinPool(10), nil,
	).Once()
	h.locks.On("ListLeasedOutputs", mock.Anything).Return(nil, nil).Once()
	h.payments.On("PendingPayments", mock.Anything, "kruw").Return(
		nil, errTest,
	).Once()

	solution, err := h.wallet.SelectCoins(
		context.Background(), "kruw", RoundParameters{
			MiningFeeRate: btcunit.NewSatPerKVByte(1000),
		},
	)
	require.NoError(t, err)
	require.NotEmpty(t, solution.Coins())
	require.Zero(t, solution.TotalPending())
}

// TestWalletPrivacy checks the privacy reporting of the wallet.
func TestWalletPrivacy(t *testing.T) {
	t.Parallel()

	coins := []Coin{makeCoin(1, 0, 1000, 20), makeCoin(2, 0, 1000, 20)}

	h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})
	h.coins.On("ListCoins", mock.Anything).Return(coins, nil).Twice()

	pct, err := h.wallet.PrivacyPercentage(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1.0, pct)

	private, err := h.wallet.IsPrivate(context.Background())
	require.NoError(t, err)
	require.True(t, private)

	batching := newWalletHarness(t, StoreConfig{
		AnonScoreTarget: 10,
		BatchPayments:   true,
	})
	batching.coins.On("ListCoins", mock.Anything).Return(coins, nil).Once()

	private, err = batching.wallet.IsPrivate(context.Background())
	require.NoError(t, err)
	require.False(t, private)

	failing := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})
	failing.coins.On("ListCoins", mock.Anything).Return(
		nil, errTest,
	).Once()

	_, err = failing.wallet.IsPrivate(context.Background())
	require.ErrorIs(t, err, errTest)
}

// TestWalletRegisterRound checks results are stored and a failed commit
// leaves the wallet usable.
func TestWalletRegisterRound(t *testing.T) {
	t.Parallel()

	h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})

	result := RoundResult{
		RoundID:     "round-1",
		Coordinator: "zksnacks",
		CoinsIn:     []Coin{makeCoin(1, 0, 100_000, 0)},
		CoinsOut:    []Coin{makeCoin(9, 0, 99_000, 12)},
	}

	h.results.On("RecordRound", mock.Anything, result).Return(
		errTest,
	).Once()
	err := h.wallet.RegisterRound(context.Background(), result)
	require.ErrorIs(t, err, errTest)

	h.results.On("RecordRound", mock.Anything, result).Return(nil).Once()
	require.NoError(t, h.wallet.RegisterRound(context.Background(), result))

	// Candidates are still served after the failed commit.
	h.coins.On("ListCoins", mock.Anything).Return(
		makeCoinPool(3), nil,
	).Once()
	h.locks.On("ListLeasedOutputs", mock.Anything).Return(nil, nil).Once()
	require.Len(t, h.wallet.Candidates(context.Background(), "zksnacks"), 3)
}

// TestWalletRegisterRoundLiftsSpentBans checks the bans of spent inputs are
// lifted for the round's coordinator only.
func TestWalletRegisterRoundLiftsSpentBans(t *testing.T) {
	t.Parallel()

	h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})

	spent := makeCoin(1, 0, 100_000, 0)
	kept := makeCoin(2, 0, 100_000, 0)
	until := time.Now().Add(time.Hour)

	h.bans.Ban("zksnacks", spent.OutPoint, until)
	h.bans.Ban("zksnacks", kept.OutPoint, until)
	h.bans.Ban("kruw", spent.OutPoint, until)

	result := RoundResult{
		RoundID:     "round-1",
		Coordinator: "zksnacks",
		CoinsIn:     []Coin{spent},
	}
	h.results.On("RecordRound", mock.Anything, result).Return(nil).Once()
	require.NoError(t, h.wallet.RegisterRound(context.Background(), result))

	require.False(t, h.bans.IsBanned("zksnacks", spent.OutPoint))
	require.True(t, h.bans.IsBanned("zksnacks", kept.OutPoint))
	require.True(t, h.bans.IsBanned("kruw", spent.OutPoint))
}

// TestWalletRegisterRoundBlocksCandidates checks candidate lookups wait for
// an in-flight commit.
func TestWalletRegisterRoundBlocksCandidates(t *testing.T) {
	t.Parallel()

	h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})
	result := RoundResult{RoundID: "round-1"}

	recording := make(chan struct{})
	finish := make(chan struct{})
	h.results.On("RecordRound", mock.Anything, result).Run(
		func(mock.Arguments) {
			close(recording)
			<-finish
		},
	).Return(nil).Once()

	registered := make(chan error, 1)
	go func() {
		registered <- h.wallet.RegisterRound(context.Background(), result)
	}()
	<-recording

	// A lookup bounded by a short deadline gives up while the commit is
	// running and never reaches the snapshot.
	ctx, cancel := context.WithTimeout(
		context.Background(), 20*time.Millisecond,
	)
	defer cancel()
	require.Empty(t, h.wallet.Candidates(ctx, "zksnacks"))

	close(finish)
	require.NoError(t, <-registered)
}

// TestWalletReleaseRound checks every input lease of a round is released.
func TestWalletReleaseRound(t *testing.T) {
	t.Parallel()

	h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})

	in1 := makeCoin(1, 0, 100_000, 0)
	in2 := makeCoin(2, 0, 100_000, 0)
	result := RoundResult{RoundID: "round-1", CoinsIn: []Coin{in1, in2}}

	h.locks.On(
		"ReleaseOutput", mock.Anything, testLockID, in1.OutPoint,
	).Return(errTest).Once()
	h.locks.On(
		"ReleaseOutput", mock.Anything, testLockID, in2.OutPoint,
	).Return(nil).Once()

	err := h.wallet.ReleaseRound(context.Background(), result)
	require.ErrorIs(t, err, errTest)
}

// TestWalletUnlockAll checks only the wallet's own leases are released.
func TestWalletUnlockAll(t *testing.T) {
	t.Parallel()

	h := newWalletHarness(t, StoreConfig{AnonScoreTarget: 10})

	own := wire.OutPoint{Hash: testHash(1)}
	foreign := wire.OutPoint{Hash: testHash(2)}

	h.locks.On("ListLeasedOutputs", mock.Anything).Return(
		[]*wtxmgr.LockedOutput{
			{Outpoint: own, LockID: testLockID},
			{Outpoint: foreign, LockID: otherLockID},
		}, nil,
	).Once()
	h.locks.On(
		"ReleaseOutput", mock.Anything, testLockID, own,
	).Return(nil).Once()

	require.NoError(t, h.wallet.UnlockAll(context.Background()))

	h.locks.On("ListLeasedOutputs", mock.Anything).Return(
		nil, errTest,
	).Once()
	require.ErrorIs(t, h.wallet.UnlockAll(context.Background()), errTest)
}
