package ledger

import (
	"context"
	"time"

	"github.com/btcsuite/btcmix/coinjoin"
)

// Recorder stores the round results of one wallet in a ledger Store.
type Recorder struct {
	store    Store
	walletID string
}

// A compile-time check to ensure that Recorder can serve as a wallet's
// result store.
var _ coinjoin.ResultStore = (*Recorder)(nil)

// NewRecorder returns a Recorder writing the rounds of walletID to store.
func NewRecorder(store Store, walletID string) *Recorder {
	return &Recorder{store: store, walletID: walletID}
}

// RecordRound stores the result of a round.
func (r *Recorder) RecordRound(ctx context.Context,
	result coinjoin.RoundResult) error {

	return r.store.InsertRound(ctx, NewRoundRecord(r.walletID, result))
}

// NewRoundRecord converts a round result of the given wallet into a ledger
// record. A result without a timestamp is stamped with the current time.
func NewRoundRecord(walletID string, result coinjoin.RoundResult) RoundRecord {
	timestamp := result.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	payments := make([]RoundPayment, 0, len(result.Payments))
	for _, p := range result.Payments {
		payments = append(payments, RoundPayment{
			ID:       p.ID,
			Amount:   p.Amount(),
			PkScript: p.Output.PkScript,
		})
	}

	return RoundRecord{
		RoundID:     result.RoundID,
		WalletID:    walletID,
		Coordinator: result.Coordinator,
		TxID:        result.TxID,
		Timestamp:   timestamp,
		CoinsIn:     roundCoins(result.CoinsIn),
		CoinsOut:    roundCoins(result.CoinsOut),
		Payments:    payments,
	}
}

// roundCoins converts wallet coins into ledger coins.
func roundCoins(coins []coinjoin.Coin) []RoundCoin {
	converted := make([]RoundCoin, 0, len(coins))
	for i := range coins {
		converted = append(converted, RoundCoin{
			OutPoint:       coins[i].OutPoint,
			Amount:         coins[i].Amount(),
			AnonymityScore: coins[i].AnonymityScore,
		})
	}

	return converted
}
