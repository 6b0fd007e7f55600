// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// LabelPolicy restricts candidates by their wallet labels. An empty Allowed
// list admits every coin.
type LabelPolicy struct {
	// Allowed lists labels of which a coin must carry at least one.
	Allowed []string

	// Excluded lists labels that disqualify a coin.
	Excluded []string
}

// admits reports whether the coin passes the label rules.
func (l LabelPolicy) admits(c *Coin) bool {
	for _, label := range l.Excluded {
		if c.HasLabel(label) {
			return false
		}
	}

	if len(l.Allowed) == 0 {
		return true
	}

	for _, label := range l.Allowed {
		if c.HasLabel(label) {
			return true
		}
	}

	return false
}

// FilterOptions carries the collaborator state consulted when narrowing a
// wallet's coins down to round candidates.
type FilterOptions struct {
	// Locked is the set of outpoints reserved by other operations.
	Locked fn.Set[wire.OutPoint]

	// Bans is the coordinator scoped ban table. It may be nil.
	Bans *BanTable

	// Coordinator names the coordinator the round is for.
	Coordinator string

	// Labels is the label allow and deny policy.
	Labels LabelPolicy

	// SimpleMode skips the label policy.
	SimpleMode bool
}

// FilterCandidates returns the coins eligible for a round of the given
// coordinator. Unconfirmed and locked coins are dropped first, then the label
// policy is applied unless in simple mode, and finally coins banned by the
// coordinator are removed. Expired bans are purged along the way.
//
// The input slice is not modified. An empty result means no round should be
// attempted.
func FilterCandidates(coins []Coin, opts FilterOptions) []Coin {
	if opts.Bans != nil {
		if purged := opts.Bans.Purge(opts.Coordinator); purged > 0 {
			log.Debugf("Purged %d expired bans of coordinator %s",
				purged, opts.Coordinator)
		}
	}

	candidates := make([]Coin, 0, len(coins))
	for i := range coins {
		coin := &coins[i]

		if coin.Confirmations <= 0 {
			continue
		}

		if opts.Locked != nil && opts.Locked.Contains(coin.OutPoint) {
			continue
		}

		if !opts.SimpleMode && !opts.Labels.admits(coin) {
			continue
		}

		if opts.Bans != nil &&
			opts.Bans.IsBanned(opts.Coordinator, coin.OutPoint) {

			log.Tracef("Skipping coin %v banned by coordinator %s",
				coin.OutPoint, opts.Coordinator)

			continue
		}

		candidates = append(candidates, *coin)
	}

	return candidates
}
