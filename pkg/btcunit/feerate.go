// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btcunit provides the fee rate and transaction size units used by
// the coin selection engine to price inputs and outputs.
package btcunit

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

// kilo is the number of vbytes in a kilo-vbyte.
const kilo = 1000

// ZeroSatPerKVByte is a set fee rate of 0 sat/kvb.
var ZeroSatPerKVByte = NewSatPerKVByte(0)

// SatPerKVByte is a fee rate in satoshis per 1000 virtual bytes, the unit
// round fee rates are announced in.
//
// The zero value is an unset rate. It prices every size at zero and reports
// false from IsSet, which lets callers tell a missing rate from a free one.
type SatPerKVByte struct {
	rate btcutil.Amount
	set  bool
}

// NewSatPerKVByte returns a fee rate of rate sat/kvb.
func NewSatPerKVByte(rate btcutil.Amount) SatPerKVByte {
	return SatPerKVByte{rate: rate, set: true}
}

// NewSatPerKVByteFromVByte returns the sat/kvb equivalent of a rate given in
// sat/vb, the unit most fee estimators quote.
func NewSatPerKVByteFromVByte(rate btcutil.Amount) SatPerKVByte {
	return NewSatPerKVByte(rate * kilo)
}

// IsSet reports whether the rate was given a value.
func (s SatPerKVByte) IsSet() bool {
	return s.set
}

// Val returns the rate in satoshis per kvb.
func (s SatPerKVByte) Val() btcutil.Amount {
	return s.rate
}

// FeeForVByte returns the fee paid at this rate by size vbytes, truncated to
// whole satoshis. Unset and negative rates cost nothing.
func (s SatPerKVByte) FeeForVByte(size VByte) btcutil.Amount {
	if s.rate <= 0 {
		return 0
	}

	return s.rate * btcutil.Amount(size) / kilo
}

// String returns the rate in sat/kvb.
func (s SatPerKVByte) String() string {
	if !s.set {
		return "<unset> sat/kvb"
	}

	return fmt.Sprintf("%d sat/kvb", int64(s.rate))
}
