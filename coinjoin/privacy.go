// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import "github.com/btcsuite/btcd/btcutil"

// PrivacyPercentage returns the share of the coins' total value held in
// coins that have reached the anonymity score target. The result is in
// [0, 1] and is 1 for a set without value.
func PrivacyPercentage(coins []Coin, target float64) float64 {
	var private, nonPrivate btcutil.Amount
	for i := range coins {
		coin := &coins[i]

		if coin.Tier(target) == TierGreen {
			private += coin.Amount()
		} else {
			nonPrivate += coin.Amount()
		}
	}

	total := private + nonPrivate
	if total <= 0 {
		return 1
	}

	return float64(private) / float64(total)
}

// IsFullyPrivate reports whether a wallet with the given privacy percentage
// counts as fully mixed. A wallet batching payments through future rounds is
// never reported as fully private.
func IsFullyPrivate(percentage float64, batchPayments bool) bool {
	return percentage >= 1 && !batchPayments
}
