// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"maps"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcmix/pkg/btcunit"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// CoordinationFeeRate is the fee the coordinator charges on registered
// inputs, as a fraction of the input amount. Inputs at or below the
// PlebsDontPayThreshold are exempt.
type CoordinationFeeRate struct {
	// Rate is the fraction of the input amount paid to the coordinator,
	// e.g. 0.003 for 0.3%.
	Rate float64

	// PlebsDontPayThreshold is the largest input amount that does not pay
	// a coordination fee.
	PlebsDontPayThreshold btcutil.Amount
}

// Fee returns the coordination fee charged on an input of the given amount.
func (c CoordinationFeeRate) Fee(amount btcutil.Amount) btcutil.Amount {
	if c.Rate <= 0 || amount <= c.PlebsDontPayThreshold {
		return 0
	}

	return amount.MulF64(c.Rate)
}

// SelectionParams bundles everything a single selection call needs to know
// besides the coins and payments themselves. A SelectionParams value is
// treated as immutable once handed to the selector; helpers that need to
// change it return a modified copy.
type SelectionParams struct {
	// MiningFeeRate is the round's mining fee rate. It prices both the
	// inputs being registered and the outputs of the payments absorbed
	// into the round.
	MiningFeeRate btcunit.SatPerKVByte

	// CoordinationFeeRate is the coordinator's fee on registered inputs.
	CoordinationFeeRate CoordinationFeeRate

	// AnonScoreTarget is the anonymity score at which a coin counts as
	// private.
	AnonScoreTarget float64

	// ConsolidationMode makes the builder keep adding coins instead of
	// stopping once all payments are handled.
	ConsolidationMode bool

	// RedCoinIsolation restricts every solution to a single red coin and
	// asks the builder to seek one out.
	RedCoinIsolation bool

	// MaxCoins is the maximum number of coins allowed in the round. The
	// selector overrides it with a fresh random draw for every trial.
	MaxCoins int

	// MaxPerTier caps the number of coins taken from a tier. Tiers absent
	// from the map are uncapped.
	MaxPerTier map[Tier]int

	// IdealMinPerTier lists the number of coins the builder tries to take
	// from each tier before falling back to plain sorted order. A zero
	// entry deprioritizes the tier instead.
	IdealMinPerTier map[Tier]int
}

// DefaultIdealMinPerTier returns the ideal minimum used when the caller
// supplies none: one coin of every tier.
func DefaultIdealMinPerTier() map[Tier]int {
	return map[Tier]int{
		TierRed:    1,
		TierOrange: 1,
		TierGreen:  1,
	}
}

// maxForTier returns the configured cap for a tier, if any.
func (p *SelectionParams) maxForTier(t Tier) fn.Option[int] {
	limit, ok := p.MaxPerTier[t]
	if !ok {
		return fn.None[int]()
	}

	return fn.Some(limit)
}

// tierOf classifies a coin against the params' anonymity score target.
func (p *SelectionParams) tierOf(c *Coin) Tier {
	return TierOf(c.AnonymityScore, p.AnonScoreTarget)
}

// forTrial returns a copy of the params prepared for a single builder trial
// with the given coin cap. The per-tier maps are cloned so trials never share
// mutable state. When red coin isolation is requested the trial both seeks
// and is capped to exactly one red coin.
func (p SelectionParams) forTrial(maxCoins int) SelectionParams {
	trial := p
	trial.MaxCoins = maxCoins
	trial.MaxPerTier = maps.Clone(p.MaxPerTier)
	trial.IdealMinPerTier = maps.Clone(p.IdealMinPerTier)

	if trial.IdealMinPerTier == nil {
		trial.IdealMinPerTier = DefaultIdealMinPerTier()
	}

	if p.RedCoinIsolation {
		if trial.MaxPerTier == nil {
			trial.MaxPerTier = make(map[Tier]int, 1)
		}

		trial.IdealMinPerTier[TierRed] = 1
		trial.MaxPerTier[TierRed] = 1
	}

	return trial
}
