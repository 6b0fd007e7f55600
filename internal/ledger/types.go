// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// direction tells whether a coin entered or left the wallet in a round.
type direction int16

const (
	directionIn direction = iota
	directionOut
)

// RoundCoin is a wallet coin spent or received by a round.
type RoundCoin struct {
	// OutPoint identifies the coin.
	OutPoint wire.OutPoint

	// Amount is the value of the coin.
	Amount btcutil.Amount

	// AnonymityScore is the coin's anonymity score when the round
	// finished.
	AnonymityScore float64
}

// RoundPayment is a pending payment paid out of a round.
type RoundPayment struct {
	// ID identifies the payment.
	ID string

	// Amount is the nominal value of the payment.
	Amount btcutil.Amount

	// PkScript is the destination script.
	PkScript []byte
}

// RoundRecord is the outcome of a round as stored in the ledger.
type RoundRecord struct {
	// RoundID is the coordinator's identifier of the round. It is unique
	// among the rounds of a wallet.
	RoundID string

	// WalletID is the wallet that took part in the round.
	WalletID string

	// Coordinator names the coordinator that ran the round.
	Coordinator string

	// TxID is the round's transaction id.
	TxID chainhash.Hash

	// Timestamp is when the round finished. It is stored with microsecond
	// precision.
	Timestamp time.Time

	// CoinsIn are the coins the wallet registered.
	CoinsIn []RoundCoin

	// CoinsOut are the outputs the wallet received.
	CoinsOut []RoundCoin

	// Payments are the pending payments paid by the round.
	Payments []RoundPayment
}

// AmountIn returns the total value the wallet registered.
func (r *RoundRecord) AmountIn() btcutil.Amount {
	var total btcutil.Amount
	for _, c := range r.CoinsIn {
		total += c.Amount
	}

	return total
}

// AmountOut returns the total value the wallet received back.
func (r *RoundRecord) AmountOut() btcutil.Amount {
	var total btcutil.Amount
	for _, c := range r.CoinsOut {
		total += c.Amount
	}

	return total
}
