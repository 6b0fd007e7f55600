// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"context"
	"errors"
	"runtime"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultTrials is the number of solutions built per selection.
	DefaultTrials = 100

	// DefaultMinCoins is the lower bound of the per trial coin cap.
	DefaultMinCoins = 10

	// DefaultMaxCoins is the upper bound of the per trial coin cap.
	DefaultMaxCoins = 30
)

// ErrInvalidCoinRange is returned when the configured coin cap bounds are
// not a valid range.
var ErrInvalidCoinRange = errors.New("invalid coin cap range")

// SelectorConfig configures a Selector.
type SelectorConfig struct {
	// Trials is the number of solutions built per selection.
	Trials int

	// MinCoins and MaxCoins bound the coin cap drawn for every trial,
	// both inclusive.
	MinCoins int
	MaxCoins int

	// NewRand returns the source of randomness for the given trial. It
	// may be called concurrently.
	NewRand func(trial int) Rand

	// Workers is the number of trials built concurrently.
	Workers int
}

// DefaultSelectorConfig returns the configuration used in production: 100
// trials with coin caps between 10 and 30, each seeded from the system's
// cryptographic randomness.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		Trials:   DefaultTrials,
		MinCoins: DefaultMinCoins,
		MaxCoins: DefaultMaxCoins,
		NewRand: func(int) Rand {
			return NewCryptoRand()
		},
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Selector picks the coins to register in a round by building many random
// solutions and keeping the best one.
type Selector struct {
	cfg SelectorConfig
}

// NewSelector creates a selector. Unset fields of the config take their
// default values.
func NewSelector(cfg SelectorConfig) (*Selector, error) {
	defaults := DefaultSelectorConfig()

	if cfg.Trials <= 0 {
		cfg.Trials = defaults.Trials
	}
	if cfg.MinCoins <= 0 {
		cfg.MinCoins = defaults.MinCoins
	}
	if cfg.MaxCoins <= 0 {
		cfg.MaxCoins = defaults.MaxCoins
	}
	if cfg.NewRand == nil {
		cfg.NewRand = defaults.NewRand
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}

	if cfg.MinCoins > cfg.MaxCoins {
		return nil, ErrInvalidCoinRange
	}

	return &Selector{cfg: cfg}, nil
}

// Select returns the highest scoring solution out of the configured number
// of trials. When several trials share the best score the one with the
// lowest trial index wins. An empty candidate set yields an empty solution
// without running any trial.
//
// The only error returned is the context's, when it is canceled before all
// trials complete.
func (s *Selector) Select(ctx context.Context, candidates []Coin,
	payments []PendingPayment, params SelectionParams) (*Solution, error) {

	if len(candidates) == 0 {
		log.Debugf("No candidates, skipping selection")

		return newSolution(params, len(payments)), nil
	}

	results := make([]*Solution, s.cfg.Trials)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for trial := range s.cfg.Trials {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rng := s.cfg.NewRand(trial)
			maxCoins := s.cfg.MinCoins +
				rng.IntN(s.cfg.MaxCoins-s.cfg.MinCoins+1)

			results[trial] = buildSolution(
				rng, candidates, payments, params.forTrial(maxCoins),
			)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The loop above may have stopped early without any trial noticing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := bestSolution(results)

	log.Debugf("Selected %v out of %d trials", best, len(results))
	log.Tracef("Selected coins: %v", newLogClosure(func() string {
		return spew.Sdump(best.Coins())
	}))

	return best, nil
}

// bestSolution returns the first solution with the highest score.
func bestSolution(solutions []*Solution) *Solution {
	var (
		best      *Solution
		bestScore float64
	)
	for _, solution := range solutions {
		if solution == nil {
			continue
		}

		score := solution.Score()
		if best == nil || score > bestScore {
			best, bestScore = solution, score
		}
	}

	return best
}
