// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcmix/pkg/btcunit"
	"github.com/btcsuite/btcwallet/wtxmgr"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// simpleModeAnonScoreTarget is the anonymity score target enforced in simple
// mode.
const simpleModeAnonScoreTarget = 2

var (
	// ErrMissingCollaborator is returned by NewWallet when a required
	// collaborator is not provided.
	ErrMissingCollaborator = errors.New("missing wallet collaborator")

	// ErrInvalidAnonScoreTarget is returned by NewWallet when the anonymity
	// score target is not positive.
	ErrInvalidAnonScoreTarget = errors.New("anonymity score target must " +
		"be positive")
)

// SnapshotSource returns the wallet's current spendable coins.
type SnapshotSource interface {
	// ListCoins returns every spendable coin of the wallet.
	ListCoins(ctx context.Context) ([]Coin, error)
}

// LockManager reports and releases the outpoints leased by in-flight
// operations.
type LockManager interface {
	// ListLeasedOutputs returns every currently leased outpoint.
	ListLeasedOutputs(ctx context.Context) ([]*wtxmgr.LockedOutput, error)

	// ReleaseOutput releases the lease the given lock id holds on the
	// outpoint.
	ReleaseOutput(ctx context.Context, id wtxmgr.LockID,
		op wire.OutPoint) error
}

// PaymentSource returns the payments waiting to be paid through rounds of a
// coordinator.
type PaymentSource interface {
	// PendingPayments returns the payments queued for the coordinator.
	PendingPayments(ctx context.Context,
		coordinator string) ([]PendingPayment, error)
}

// ResultStore persists the outcome of completed rounds.
type ResultStore interface {
	// RecordRound stores the result of a round.
	RecordRound(ctx context.Context, result RoundResult) error
}

// RoundResult describes what a round did with the wallet's coins.
type RoundResult struct {
	// RoundID is the coordinator's identifier of the round.
	RoundID string

	// Coordinator names the coordinator that ran the round.
	Coordinator string

	// TxID is the id of the round's transaction. It is zero for rounds
	// that never produced one.
	TxID chainhash.Hash

	// Timestamp is when the round finished.
	Timestamp time.Time

	// CoinsIn are the coins the wallet registered.
	CoinsIn []Coin

	// CoinsOut are the outputs the wallet received.
	CoinsOut []Coin

	// Payments are the pending payments paid by the round.
	Payments []PendingPayment
}

// StoreConfig holds the store level coinjoin settings of a wallet.
type StoreConfig struct {
	// AnonScoreTarget is the anonymity score at which a coin counts as
	// private.
	AnonScoreTarget float64

	// ConsolidationMode keeps rounds adding coins once payments are
	// handled.
	ConsolidationMode bool

	// RedCoinIsolation allows at most one unmixed coin per round.
	RedCoinIsolation bool

	// BatchPayments routes outgoing payments through future rounds.
	BatchPayments bool

	// InputLabelsAllowed and InputLabelsExcluded restrict the coins
	// offered to rounds by label.
	InputLabelsAllowed  []string
	InputLabelsExcluded []string

	// SimpleMode trades privacy for convenience: a low anonymity score
	// target, no consolidation, no red coin isolation and no label
	// restrictions.
	SimpleMode bool
}

// normalize applies the simple mode overrides.
func (c StoreConfig) normalize() StoreConfig {
	if !c.SimpleMode {
		return c
	}

	c.AnonScoreTarget = simpleModeAnonScoreTarget
	c.ConsolidationMode = false
	c.RedCoinIsolation = false

	return c
}

// WalletConfig bundles a wallet's identity, settings and collaborators.
type WalletConfig struct {
	// ID identifies the wallet.
	ID string

	// LockID is the lease id the wallet uses for outputs registered in
	// rounds.
	LockID wtxmgr.LockID

	// Store is the wallet's coinjoin configuration.
	Store StoreConfig

	// Coins, Locks, Payments and Results are the wallet's collaborators.
	// Payments and Results are optional.
	Coins    SnapshotSource
	Locks    LockManager
	Payments PaymentSource
	Results  ResultStore

	// Bans is the ban table shared by all wallets. It may be nil.
	Bans *BanTable

	// Selector builds the solutions.
	Selector *Selector
}

// RoundParameters carries the coordinator's terms for a round.
type RoundParameters struct {
	// MiningFeeRate is the round's mining fee rate.
	MiningFeeRate btcunit.SatPerKVByte

	// CoordinationFeeRate is the coordinator's fee.
	CoordinationFeeRate CoordinationFeeRate

	// MaxPerTier optionally caps the coins taken from each tier.
	MaxPerTier map[Tier]int
}

// Wallet connects the selection engine to a single wallet's collaborators.
type Wallet struct {
	cfg WalletConfig

	gate commitGate
}

// NewWallet creates a wallet adapter.
func NewWallet(cfg WalletConfig) (*Wallet, error) {
	switch {
	case cfg.Coins == nil:
		return nil, fmt.Errorf("%w: snapshot source",
			ErrMissingCollaborator)

	case cfg.Locks == nil:
		return nil, fmt.Errorf("%w: lock manager",
			ErrMissingCollaborator)

	case cfg.Selector == nil:
		return nil, fmt.Errorf("%w: selector", ErrMissingCollaborator)
	}

	cfg.Store = cfg.Store.normalize()
	if cfg.Store.AnonScoreTarget <= 0 {
		return nil, ErrInvalidAnonScoreTarget
	}

	return &Wallet{cfg: cfg}, nil
}

// ID returns the wallet's identifier.
func (w *Wallet) ID() string {
	return w.cfg.ID
}

// Config returns the effective store configuration.
func (w *Wallet) Config() StoreConfig {
	return w.cfg.Store
}

// lockedOutpoints returns the outpoints currently leased.
func (w *Wallet) lockedOutpoints(
	ctx context.Context) (fn.Set[wire.OutPoint], error) {

	leases, err := w.cfg.Locks.ListLeasedOutputs(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	locked := fn.NewSet[wire.OutPoint]()
	for _, lease := range leases {
		if lease.Expiration.IsZero() || lease.Expiration.After(now) {
			locked.Add(lease.Outpoint)
		}
	}

	return locked, nil
}

// Candidates returns the coins eligible for a round of the coordinator. It
// waits for an in-flight commit first. Collaborator failures are logged and
// result in no candidates.
func (w *Wallet) Candidates(ctx context.Context, coordinator string) []Coin {
	if err := w.gate.wait(ctx); err != nil {
		log.Debugf("Wallet %s: abandoned waiting for commit: %v",
			w.cfg.ID, err)

		return nil
	}

	coins, err := w.cfg.Coins.ListCoins(ctx)
	if err != nil {
		log.Errorf("Wallet %s: unable to list coins: %v", w.cfg.ID,
			err)

		return nil
	}

	locked, err := w.lockedOutpoints(ctx)
	if err != nil {
		log.Errorf("Wallet %s: unable to list leased outputs: %v",
			w.cfg.ID, err)

		return nil
	}

	candidates := FilterCandidates(coins, FilterOptions{
		Locked:      locked,
		Bans:        w.cfg.Bans,
		Coordinator: coordinator,
		Labels: LabelPolicy{
			Allowed:  w.cfg.Store.InputLabelsAllowed,
			Excluded: w.cfg.Store.InputLabelsExcluded,
		},
		SimpleMode: w.cfg.Store.SimpleMode,
	})

	log.Debugf("Wallet %s: %d of %d coins are candidates for %s",
		w.cfg.ID, len(candidates), len(coins), coordinator)

	return candidates
}

// pendingPayments returns the payments queued for the coordinator. Failures
// are logged and treated as an empty queue.
func (w *Wallet) pendingPayments(ctx context.Context,
	coordinator string) []PendingPayment {

	if w.cfg.Payments == nil {
		return nil
	}

	payments, err := w.cfg.Payments.PendingPayments(ctx, coordinator)
	if err != nil {
		log.Errorf("Wallet %s: unable to fetch pending payments: %v",
			w.cfg.ID, err)

		return nil
	}

	return payments
}

// SelectionParams returns the selection parameters for a round with the
// given terms under the wallet's configuration.
func (w *Wallet) SelectionParams(round RoundParameters) SelectionParams {
	return SelectionParams{
		MiningFeeRate:       round.MiningFeeRate,
		CoordinationFeeRate: round.CoordinationFeeRate,
		AnonScoreTarget:     w.cfg.Store.AnonScoreTarget,
		ConsolidationMode:   w.cfg.Store.ConsolidationMode,
		RedCoinIsolation:    w.cfg.Store.RedCoinIsolation,
		MaxCoins:            DefaultMaxCoins,
		MaxPerTier:          round.MaxPerTier,
		IdealMinPerTier:     DefaultIdealMinPerTier(),
	}
}

// SelectCoins chooses the coins and payments to register in a round of the
// coordinator. An empty solution means no round should be joined.
func (w *Wallet) SelectCoins(ctx context.Context, coordinator string,
	round RoundParameters) (*Solution, error) {

	candidates := w.Candidates(ctx, coordinator)
	payments := w.pendingPayments(ctx, coordinator)

	solution, err := w.cfg.Selector.Select(
		ctx, candidates, payments, w.SelectionParams(round),
	)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: select coins: %w", w.cfg.ID,
			err)
	}

	return solution, nil
}

// PrivacyPercentage returns the share of the wallet's value that reached the
// anonymity score target.
func (w *Wallet) PrivacyPercentage(ctx context.Context) (float64, error) {
	coins, err := w.cfg.Coins.ListCoins(ctx)
	if err != nil {
		return 0, fmt.Errorf("wallet %s: list coins: %w", w.cfg.ID, err)
	}

	return PrivacyPercentage(coins, w.cfg.Store.AnonScoreTarget), nil
}

// IsPrivate reports whether the wallet counts as fully mixed.
func (w *Wallet) IsPrivate(ctx context.Context) (bool, error) {
	pct, err := w.PrivacyPercentage(ctx)
	if err != nil {
		return false, err
	}

	return IsFullyPrivate(pct, w.cfg.Store.BatchPayments), nil
}

// RegisterRound commits the result of a successful round. Only one commit
// runs per wallet at a time and candidate lookups wait for it to finish. A
// failed commit is returned to the caller and leaves the wallet usable.
//
// The inputs of the round are spent, so their bans with the round's
// coordinator are lifted before the result is recorded.
func (w *Wallet) RegisterRound(ctx context.Context, result RoundResult) error {
	return w.gate.run(ctx, func(ctx context.Context) error {
		if w.cfg.Bans != nil {
			for _, coin := range result.CoinsIn {
				w.cfg.Bans.Unban(result.Coordinator, coin.OutPoint)
			}
		}

		if w.cfg.Results == nil {
			return nil
		}

		err := w.cfg.Results.RecordRound(ctx, result)
		if err != nil {
			return fmt.Errorf("wallet %s: record round %s: %w",
				w.cfg.ID, result.RoundID, err)
		}

		log.Infof("Wallet %s: recorded round %s with %d inputs and "+
			"%d outputs", w.cfg.ID, result.RoundID,
			len(result.CoinsIn), len(result.CoinsOut))

		return nil
	})
}

// ReleaseRound releases the leases held on the inputs of an abandoned
// round. Every input is attempted and the errors are joined.
func (w *Wallet) ReleaseRound(ctx context.Context, result RoundResult) error {
	var errs []error
	for _, coin := range result.CoinsIn {
		err := w.cfg.Locks.ReleaseOutput(ctx, w.cfg.LockID, coin.OutPoint)
		if err != nil {
			errs = append(errs, fmt.Errorf("release %v: %w",
				coin.OutPoint, err))
		}
	}

	return errors.Join(errs...)
}

// UnlockAll releases every lease held under the wallet's lock id.
func (w *Wallet) UnlockAll(ctx context.Context) error {
	leases, err := w.cfg.Locks.ListLeasedOutputs(ctx)
	if err != nil {
		return fmt.Errorf("wallet %s: list leased outputs: %w",
			w.cfg.ID, err)
	}

	var errs []error
	for _, lease := range leases {
		if lease.LockID != w.cfg.LockID {
			continue
		}

		err := w.cfg.Locks.ReleaseOutput(ctx, lease.LockID, lease.Outpoint)
		if err != nil {
			errs = append(errs, fmt.Errorf("release %v: %w",
				lease.Outpoint, err))
		}
	}

	return errors.Join(errs...)
}
