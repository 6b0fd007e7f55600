// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"slices"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/coinset"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcmix/pkg/btcunit"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
)

// Coin is a spendable wallet output as seen by the selection engine. Coins
// are read from a wallet snapshot at the start of a selection call and are
// never modified by the engine.
type Coin struct {
	// OutPoint identifies the output. Its hash is the id of the
	// transaction that created the coin.
	OutPoint wire.OutPoint

	// TxOut holds the amount and the public key script of the output.
	TxOut wire.TxOut

	// AnonymityScore estimates how many other coins this one is
	// indistinguishable from.
	AnonymityScore float64

	// Confirmations is the confirmation depth of the creating
	// transaction.
	Confirmations int64

	// Labels are the wallet labels attached to the output.
	Labels []string
}

// A compile-time assertion to ensure Coin can be used with the btcutil
// coinset helpers.
var _ coinset.Coin = (*Coin)(nil)

// Hash returns the id of the transaction that created the coin.
func (c *Coin) Hash() *chainhash.Hash {
	return &c.OutPoint.Hash
}

// Index returns the output index of the coin.
func (c *Coin) Index() uint32 {
	return c.OutPoint.Index
}

// Value returns the amount of the coin.
func (c *Coin) Value() btcutil.Amount {
	return btcutil.Amount(c.TxOut.Value)
}

// PkScript returns the public key script of the coin.
func (c *Coin) PkScript() []byte {
	return c.TxOut.PkScript
}

// NumConfs returns the confirmation depth of the coin.
func (c *Coin) NumConfs() int64 {
	return c.Confirmations
}

// ValueAge returns the amount multiplied by the confirmation depth.
func (c *Coin) ValueAge() int64 {
	return c.TxOut.Value * c.Confirmations
}

// Amount returns the nominal amount of the coin.
func (c *Coin) Amount() btcutil.Amount {
	return btcutil.Amount(c.TxOut.Value)
}

// Tier classifies the coin against the given anonymity score target. The
// tier is derived on every call and never cached.
func (c *Coin) Tier(target float64) Tier {
	return TierOf(c.AnonymityScore, target)
}

// HasLabel reports whether the coin carries the given label.
func (c *Coin) HasLabel(label string) bool {
	return slices.Contains(c.Labels, label)
}

// inputFee returns the mining fee for spending the coin at the given rate,
// using the best-case input size for its script type.
func (c *Coin) inputFee(feeRate btcunit.SatPerKVByte) btcutil.Amount {
	inputSize := txsizes.GetMinInputVirtualSize(c.TxOut.PkScript)

	return feeRate.FeeForVByte(btcunit.NewVByte(uint64(inputSize)))
}

// EffectiveValue returns the amount the coin contributes to the round once
// its own mining fee and the coordination fee have been paid. The result is
// negative for coins that cost more to register than they are worth.
func (c *Coin) EffectiveValue(params *SelectionParams) btcutil.Amount {
	amount := c.Amount()

	return amount - c.inputFee(params.MiningFeeRate) -
		params.CoordinationFeeRate.Fee(amount)
}
