// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/coinset"
)

// maxPaymentScore is the score awarded for handling every pending payment.
const maxPaymentScore = 100

// selectedCoin is a coin taken into a solution along with the values derived
// from it when it was ranked.
type selectedCoin struct {
	coin  *Coin
	tier  Tier
	value btcutil.Amount
}

// Solution is the result of one builder trial: the coins to register in the
// round and the pending payments they pay for.
type Solution struct {
	params SelectionParams

	coins      []selectedCoin
	coinSet    *coinset.CoinSet
	tierCounts [len(allTiers)]int

	payments     []pricedPayment
	totalPending int

	elapsed time.Duration
}

// newSolution returns an empty solution for a call with the given number of
// pending payments.
func newSolution(params SelectionParams, totalPending int) *Solution {
	return &Solution{
		params:       params,
		coinSet:      coinset.NewCoinSet(nil),
		totalPending: totalPending,
	}
}

// addCoin appends a coin to the solution.
func (s *Solution) addCoin(c selectedCoin) {
	s.coins = append(s.coins, c)
	s.coinSet.PushCoin(c.coin)
	s.tierCounts[c.tier]++
}

// addPayment marks a payment as handled by the solution.
func (s *Solution) addPayment(p pricedPayment) {
	s.payments = append(s.payments, p)
}

// NumCoins returns the number of selected coins.
func (s *Solution) NumCoins() int {
	return len(s.coins)
}

// Coins returns copies of the selected coins in selection order.
func (s *Solution) Coins() []Coin {
	coins := make([]Coin, 0, len(s.coins))
	for _, c := range s.coins {
		coins = append(coins, *c.coin)
	}

	return coins
}

// HandledPayments returns copies of the payments the solution pays for, in
// the order they were absorbed.
func (s *Solution) HandledPayments() []PendingPayment {
	payments := make([]PendingPayment, 0, len(s.payments))
	for _, p := range s.payments {
		payments = append(payments, *p.payment)
	}

	return payments
}

// TotalPending returns the number of payments that were pending when the
// solution was built.
func (s *Solution) TotalPending() int {
	return s.totalPending
}

// TierCounts returns the number of selected coins per tier.
func (s *Solution) TierCounts() map[Tier]int {
	counts := make(map[Tier]int, len(allTiers))
	for _, t := range allTiers {
		counts[t] = s.tierCounts[t]
	}

	return counts
}

// Params returns the selection parameters the solution was built with.
func (s *Solution) Params() SelectionParams {
	return s.params
}

// Elapsed returns the time it took to build the solution.
func (s *Solution) Elapsed() time.Duration {
	return s.elapsed
}

// RawValue returns the nominal amount of the selected coins.
func (s *Solution) RawValue() btcutil.Amount {
	return s.coinSet.TotalValue()
}

// TotalValue returns the effective value of the selected coins.
func (s *Solution) TotalValue() btcutil.Amount {
	var total btcutil.Amount
	for _, c := range s.coins {
		total += c.value
	}

	return total
}

// TotalPaymentCost returns the effective cost of the handled payments.
func (s *Solution) TotalPaymentCost() btcutil.Amount {
	var total btcutil.Amount
	for _, p := range s.payments {
		total += p.cost
	}

	return total
}

// LeftoverValue returns the effective value left once the handled payments
// are paid for.
func (s *Solution) LeftoverValue() btcutil.Amount {
	return s.TotalValue() - s.TotalPaymentCost()
}

// coinScore sums the effective value of the coins in BTC, each divided by its
// anonymity score. Unmixed coins count with their full value.
func (s *Solution) coinScore() float64 {
	var score float64
	for _, c := range s.coins {
		value := c.value.ToBTC()

		if c.coin.AnonymityScore > 0 {
			value /= math.Max(c.coin.AnonymityScore, 1)
		}

		score += value
	}

	return score
}

// paymentScore rewards handling the pending payments, up to
// maxPaymentScore when every one of them is handled.
func (s *Solution) paymentScore() float64 {
	if s.totalPending == 0 {
		return maxPaymentScore
	}

	return maxPaymentScore * float64(len(s.payments)) /
		float64(s.totalPending)
}

// Score rates the solution. Higher is better.
func (s *Solution) Score() float64 {
	return s.coinScore() + s.paymentScore()
}

// AnonLoss returns the amount weighted average by which the selected coins'
// anonymity scores exceed the lowest score among them.
func (s *Solution) AnonLoss() float64 {
	if len(s.coins) == 0 {
		return 0
	}

	minScore := math.Inf(1)
	for _, c := range s.coins {
		minScore = math.Min(minScore, c.coin.AnonymityScore)
	}

	var weighted, total float64
	for _, c := range s.coins {
		amount := float64(c.coin.Amount())

		weighted += (c.coin.AnonymityScore - minScore) * amount
		total += amount
	}

	if total == 0 {
		return 0
	}

	return weighted / total
}

// ID identifies the solution by its content: the sorted outpoints of its
// coins followed by the sorted values of its handled payments. Two solutions
// with the same coins and payment values share an ID regardless of the order
// they were built in.
func (s *Solution) ID() string {
	parts := make([]string, 0, len(s.coins)+len(s.payments))
	for _, c := range s.coins {
		parts = append(parts, c.coin.OutPoint.String())
	}
	slices.Sort(parts)

	values := make([]int64, 0, len(s.payments))
	for _, p := range s.payments {
		values = append(values, p.payment.Output.Value)
	}
	slices.Sort(values)

	for _, v := range values {
		parts = append(parts, strconv.FormatInt(v, 10))
	}

	return strings.Join(parts, "-")
}

// Equal reports whether both solutions hold the same coins and payment
// values.
func (s *Solution) Equal(other *Solution) bool {
	if s == nil || other == nil {
		return s == other
	}

	return s.ID() == other.ID()
}

// String returns a summary of the solution for logging.
func (s *Solution) String() string {
	return fmt.Sprintf("solution(coins=%d, red=%d, orange=%d, green=%d, "+
		"value=%v, payments=%d/%d, payment_cost=%v, leftover=%v, "+
		"anon_loss=%.2f, score=%.4f, took=%v)", len(s.coins),
		s.tierCounts[TierRed], s.tierCounts[TierOrange],
		s.tierCounts[TierGreen], s.TotalValue(), len(s.payments),
		s.totalPending, s.TotalPaymentCost(), s.LeftoverValue(),
		s.AnonLoss(), s.Score(), s.elapsed)
}
