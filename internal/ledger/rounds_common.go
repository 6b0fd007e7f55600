// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// errOutOfRange is returned when a stored integer does not fit the type it
// is read into.
var errOutOfRange = errors.New("value out of range")

// validateRecord checks a record can be stored.
func validateRecord(record *RoundRecord) error {
	if record.RoundID == "" {
		return newError(ErrInvalidRecord, "invalid round record",
			ErrMissingRoundID)
	}

	for _, coins := range [][]RoundCoin{record.CoinsIn, record.CoinsOut} {
		for _, c := range coins {
			if c.Amount < 0 {
				return newError(ErrInvalidRecord,
					fmt.Sprintf("negative amount for %v",
						c.OutPoint), nil)
			}
		}
	}

	for _, p := range record.Payments {
		if p.Amount < 0 {
			return newError(ErrInvalidRecord, fmt.Sprintf(
				"negative amount for payment %s", p.ID), nil)
		}
	}

	return nil
}

// roundWriter writes the rows of a round within one transaction. Each
// backend implements it on top of its generated queries.
type roundWriter interface {
	// insertRound writes the round row and reports false if the wallet
	// already recorded the round.
	insertRound(ctx context.Context, record *RoundRecord) (bool, error)

	// insertCoin writes the coin at the given position of a direction.
	insertCoin(ctx context.Context, record *RoundRecord, dir direction,
		position int, coin RoundCoin) error

	// insertPayment writes the payment at the given position.
	insertPayment(ctx context.Context, record *RoundRecord, position int,
		payment RoundPayment) error
}

// writeRound stores a validated record through w. It returns
// ErrDuplicateRound without writing anything if the wallet already recorded
// the round.
func writeRound(ctx context.Context, w roundWriter,
	record *RoundRecord) error {

	inserted, err := w.insertRound(ctx, record)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	if !inserted {
		return ErrDuplicateRound
	}

	coins := []struct {
		dir   direction
		coins []RoundCoin
	}{
		{dir: directionIn, coins: record.CoinsIn},
		{dir: directionOut, coins: record.CoinsOut},
	}
	for _, set := range coins {
		for i, c := range set.coins {
			err := w.insertCoin(ctx, record, set.dir, i, c)
			if err != nil {
				return fmt.Errorf("insert coin %v: %w",
					c.OutPoint, err)
			}
		}
	}

	for i, p := range record.Payments {
		if err := w.insertPayment(ctx, record, i, p); err != nil {
			return fmt.Errorf("insert payment %s: %w", p.ID, err)
		}
	}

	return nil
}

// insertRoundResult turns the outcome of writing record into the error
// returned by InsertRound.
func insertRoundResult(backend string, record *RoundRecord, err error) error {
	switch {
	case err == nil:
		log.Debugf("Recorded round %s of wallet %s in %s ledger",
			record.RoundID, record.WalletID, backend)

		return nil

	case errors.Is(err, ErrDuplicateRound):
		return newError(ErrRoundExists,
			roundDesc(record.WalletID, record.RoundID),
			ErrDuplicateRound)

	default:
		return newError(ErrDatabase, "insert "+
			roundDesc(record.WalletID, record.RoundID), err)
	}
}

// buildRoundRecord constructs a record without coins or payments from the
// columns of a round row.
func buildRoundRecord(walletID, roundID, coordinator string, txID []byte,
	finishedAt int64) (*RoundRecord, error) {

	hash, err := chainhash.NewHash(txID)
	if err != nil {
		return nil, fmt.Errorf("round %s tx id: %w", roundID, err)
	}

	return &RoundRecord{
		RoundID:     roundID,
		WalletID:    walletID,
		Coordinator: coordinator,
		TxID:        *hash,
		Timestamp:   time.UnixMicro(finishedAt),
	}, nil
}

// addRoundCoin appends the coin described by a coin row to record.
func addRoundCoin(record *RoundRecord, dir direction, txHash []byte,
	outputIndex, amount int64, score float64) error {

	hash, err := chainhash.NewHash(txHash)
	if err != nil {
		return fmt.Errorf("coin tx hash: %w", err)
	}

	index, err := int64ToUint32(outputIndex)
	if err != nil {
		return fmt.Errorf("coin output index: %w", err)
	}

	coin := RoundCoin{
		OutPoint:       wire.OutPoint{Hash: *hash, Index: index},
		Amount:         btcutil.Amount(amount),
		AnonymityScore: score,
	}

	switch dir {
	case directionIn:
		record.CoinsIn = append(record.CoinsIn, coin)

	case directionOut:
		record.CoinsOut = append(record.CoinsOut, coin)

	default:
		return fmt.Errorf("coin direction %d: %w", dir, errOutOfRange)
	}

	return nil
}

// addRoundPayment appends the payment described by a payment row to record.
func addRoundPayment(record *RoundRecord, id string, amount int64,
	pkScript []byte) {

	record.Payments = append(record.Payments, RoundPayment{
		ID:       id,
		Amount:   btcutil.Amount(amount),
		PkScript: pkScript,
	})
}

// roundDesc names a round of a wallet in error messages.
func roundDesc(walletID, roundID string) string {
	return fmt.Sprintf("round %s of wallet %s", roundID, walletID)
}

// nonNilScript returns script, or an empty script if it is nil. Payment
// scripts are stored in a NOT NULL column.
func nonNilScript(script []byte) []byte {
	if script == nil {
		return []byte{}
	}

	return script
}

// int64ToUint32 casts v to uint32 if it fits.
func int64ToUint32(v int64) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%d does not fit uint32: %w", v,
			errOutOfRange)
	}

	return uint32(v), nil
}

// intToInt32 casts v to int32 if it fits.
func intToInt32(v int) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%d does not fit int32: %w", v,
			errOutOfRange)
	}

	return int32(v), nil
}
