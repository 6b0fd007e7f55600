// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcmix/pkg/btcunit"
	"github.com/btcsuite/btcwallet/wallet/txrules"
)

var (
	// ErrMissingFeeRate is returned when a payment is priced without a
	// mining fee rate.
	ErrMissingFeeRate = errors.New("missing mining fee rate")

	// ErrInvalidPayment is returned when a payment has no destination
	// script or a non-positive value.
	ErrInvalidPayment = errors.New("invalid payment")
)

// PendingPayment is an external payment waiting to be paid out of a mixing
// round.
type PendingPayment struct {
	// ID identifies the payment to the payment source.
	ID string

	// Output is the destination script and nominal value of the payment.
	Output wire.TxOut
}

// Amount returns the nominal value of the payment.
func (p *PendingPayment) Amount() btcutil.Amount {
	return btcutil.Amount(p.Output.Value)
}

// EffectiveCost returns the nominal value of the payment plus the mining fee
// for its output at the given fee rate.
func (p *PendingPayment) EffectiveCost(
	feeRate btcunit.SatPerKVByte) (btcutil.Amount, error) {

	if !feeRate.IsSet() {
		return 0, ErrMissingFeeRate
	}

	if p.Output.Value <= 0 || len(p.Output.PkScript) == 0 {
		return 0, fmt.Errorf("%w: payment %q", ErrInvalidPayment, p.ID)
	}

	// A payment output that the network would not relay can never be
	// part of the round.
	err := txrules.CheckOutput(&p.Output, txrules.DefaultRelayFeePerKb)
	if err != nil {
		return 0, fmt.Errorf("payment %q: %w", p.ID, err)
	}

	outputSize := btcunit.NewVByte(uint64(p.Output.SerializeSize()))

	return p.Amount() + feeRate.FeeForVByte(outputSize), nil
}

// pricedPayment is a payment whose effective cost has been computed for the
// current round.
type pricedPayment struct {
	payment *PendingPayment
	cost    btcutil.Amount
}

// pricePayments computes the effective cost of every payment. Malformed
// payments are logged and left out.
func pricePayments(payments []PendingPayment,
	feeRate btcunit.SatPerKVByte) []pricedPayment {

	priced := make([]pricedPayment, 0, len(payments))
	for i := range payments {
		payment := &payments[i]

		cost, err := payment.EffectiveCost(feeRate)
		if err != nil {
			log.Debugf("Excluding payment %s from selection: %v",
				payment.ID, err)

			continue
		}

		priced = append(priced, pricedPayment{
			payment: payment,
			cost:    cost,
		})
	}

	return priced
}
