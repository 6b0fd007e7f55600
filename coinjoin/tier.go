// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

// Tier is the coarse privacy classification of a coin relative to the
// wallet's anonymity score target. Tiers order from least to most private.
type Tier uint8

const (
	// TierRed marks coins with no meaningful anonymity, a score of at most
	// one.
	TierRed Tier = iota

	// TierOrange marks coins that have been mixed but have not reached the
	// target yet.
	TierOrange

	// TierGreen marks coins at or above the anonymity score target.
	TierGreen
)

// allTiers lists every tier in ascending privacy order.
var allTiers = [...]Tier{TierRed, TierOrange, TierGreen}

// String returns the string representation of a tier.
func (t Tier) String() string {
	switch t {
	case TierRed:
		return "red"

	case TierOrange:
		return "orange"

	case TierGreen:
		return "green"

	default:
		return "unknown tier"
	}
}

// TierOf classifies an anonymity score against a target. A score of one or
// less is always red, even when the target itself is one or less.
func TierOf(score, target float64) Tier {
	switch {
	case score <= 1:
		return TierRed

	case score >= target:
		return TierGreen

	default:
		return TierOrange
	}
}
