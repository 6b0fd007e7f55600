// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"cmp"
	"maps"
	"slices"
	"time"
)

const (
	// sameTxKeepChance is the chance, out of sameTxDraw, that a coin
	// following a coin of the same transaction keeps its position.
	sameTxKeepChance = 5
	sameTxDraw       = 10

	// shiftChance is the percent chance that two neighbouring coins swap
	// places after ordering.
	shiftChance = 10

	// consolidationStopChance is the percent chance of stopping after each
	// coin once all payments are handled in consolidation mode.
	consolidationStopChance = 10
)

// builder builds a single solution. It is used by exactly one trial and is
// not safe for concurrent use.
type builder struct {
	rng    Rand
	params *SelectionParams
}

// buildSolution runs one randomized greedy pass over the candidates and
// returns the resulting solution. The candidates and payments are only read.
func buildSolution(rng Rand, candidates []Coin, payments []PendingPayment,
	params SelectionParams) *Solution {

	start := time.Now()

	b := &builder{rng: rng, params: &params}
	solution := newSolution(params, len(payments))

	remaining := b.orderCoins(candidates)
	pending := pricePayments(payments, params.MiningFeeRate)

	for len(remaining) > 0 {
		if solution.NumCoins() >= params.MaxCoins {
			break
		}

		idx := b.nextCoin(remaining, solution)
		coin := remaining[idx]
		remaining = slices.Delete(remaining, idx, idx+1)

		// A full tier only rules out this coin, the next one may still
		// fit.
		limit := params.maxForTier(coin.tier)
		if limit.IsSome() &&
			solution.tierCounts[coin.tier] >= limit.UnwrapOr(0) {

			continue
		}

		solution.addCoin(coin)
		pending = b.absorbPayments(solution, pending)

		if len(pending) == 0 && b.shouldStop(solution) {
			break
		}
	}

	solution.elapsed = time.Since(start)

	log.Tracef("Built %v", solution)

	return solution
}

// orderCoins ranks the candidates from least to most private, and by
// descending effective value within a tier, then perturbs the order. Coins
// that do not pay for their own inclusion are dropped.
func (b *builder) orderCoins(candidates []Coin) []selectedCoin {
	ranked := make([]selectedCoin, 0, len(candidates))
	for i := range candidates {
		coin := &candidates[i]

		value := coin.EffectiveValue(b.params)
		if value <= 0 {
			log.Tracef("Skipping coin %v with effective value %v",
				coin.OutPoint, value)

			continue
		}

		ranked = append(ranked, selectedCoin{
			coin:  coin,
			tier:  b.params.tierOf(coin),
			value: value,
		})
	}

	slices.SortStableFunc(ranked, func(a, c selectedCoin) int {
		if a.tier != c.tier {
			return cmp.Compare(a.tier, c.tier)
		}

		return cmp.Compare(c.value, a.value)
	})

	ranked = b.spreadSameTx(ranked)
	b.shiftOrder(ranked)

	return ranked
}

// spreadSameTx randomly delays coins that directly follow a coin created by
// the same transaction, so siblings are not always taken together. Green
// coins keep their place.
func (b *builder) spreadSameTx(ranked []selectedCoin) []selectedCoin {
	ordered := make([]selectedCoin, 0, len(ranked))
	queue := slices.Clone(ranked)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		keep := len(ordered) == 0 || current.tier == TierGreen ||
			len(queue) == 0

		if !keep {
			last := ordered[len(ordered)-1]
			sameAsLast := last.coin.OutPoint.Hash ==
				current.coin.OutPoint.Hash
			onlySibling := len(queue) == 1 &&
				queue[0].coin.OutPoint.Hash ==
					current.coin.OutPoint.Hash

			keep = onlySibling || !sameAsLast ||
				b.rng.IntN(sameTxDraw) < sameTxKeepChance
		}

		if keep {
			ordered = append(ordered, current)
			continue
		}

		// Put the coin back behind the next one in line.
		queue = slices.Insert(queue, 1, current)
	}

	return ordered
}

// shiftOrder swaps neighbouring coins with a small probability.
func (b *builder) shiftOrder(ranked []selectedCoin) {
	for i := 0; i+1 < len(ranked); i++ {
		if b.rng.IntN(100) < shiftChance {
			ranked[i], ranked[i+1] = ranked[i+1], ranked[i]
		}
	}
}

// nextCoin returns the index of the coin to consider next. The ideal minimum
// tiers are walked in random order: the first tier still below its minimum
// restricts the pick to that tier, and a tier with a zero minimum pushes the
// pick to any other tier. Without a matching coin the first remaining coin
// is taken.
func (b *builder) nextCoin(remaining []selectedCoin, solution *Solution) int {
	tiers := slices.Sorted(maps.Keys(b.params.IdealMinPerTier))
	b.rng.Shuffle(len(tiers), func(i, j int) {
		tiers[i], tiers[j] = tiers[j], tiers[i]
	})

	for _, tier := range tiers {
		idealMin := b.params.IdealMinPerTier[tier]

		var match func(selectedCoin) bool
		switch {
		case idealMin == 0:
			match = func(c selectedCoin) bool {
				return c.tier != tier
			}

		case solution.tierCounts[tier] < idealMin:
			match = func(c selectedCoin) bool {
				return c.tier == tier
			}

		default:
			continue
		}

		if idx := slices.IndexFunc(remaining, match); idx >= 0 {
			return idx
		}

		break
	}

	return 0
}

// absorbPayments keeps paying for a randomly chosen affordable payment until
// none of the remaining ones fit the leftover value. It returns the payments
// still pending.
func (b *builder) absorbPayments(solution *Solution,
	pending []pricedPayment) []pricedPayment {

	for len(pending) > 0 {
		leftover := solution.LeftoverValue()

		affordable := make([]int, 0, len(pending))
		for i, p := range pending {
			if p.cost <= leftover {
				affordable = append(affordable, i)
			}
		}

		if len(affordable) == 0 {
			break
		}

		idx := affordable[b.rng.IntN(len(affordable))]
		solution.addPayment(pending[idx])
		pending = slices.Delete(pending, idx, idx+1)
	}

	return pending
}

// shouldStop decides whether to end the build early once every payment is
// handled. The fuller the round, the less likely it stops; consolidation
// mode almost always keeps going.
//
// The build stops when a draw in [1, 100] is at most the stop chance. This
// inverts the common "stop once the draw reaches the chance" form of the
// rule, under which near-empty rounds would rarely stop and consolidation
// rounds would stop nine times out of ten.
func (b *builder) shouldStop(solution *Solution) bool {
	draw := 1 + b.rng.IntN(100)

	stopChance := consolidationStopChance
	if !b.params.ConsolidationMode {
		capacity := solution.NumCoins() * 100 / b.params.MaxCoins
		stopChance = 100 - capacity
	}

	return draw <= stopChance
}
