// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package coinjoin

import (
	"github.com/decred/dcrd/crypto/rand"
)

// Rand is the source of randomness used by a single builder trial.
// Implementations need not be safe for concurrent use; every trial owns its
// own source.
type Rand interface {
	// IntN returns a uniform random integer in [0, n). It panics if n <=
	// 0.
	IntN(n int) int

	// Shuffle randomizes the order of n elements using swap.
	Shuffle(n int, swap func(i, j int))
}

// globalRand is a Rand backed by the package level functions of the dcrd
// rand package, which are safe for concurrent use.
type globalRand struct{}

// IntN returns a uniform random integer in [0, n).
func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// Shuffle randomizes the order of n elements.
func (globalRand) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// NewCryptoRand returns a fresh cryptographically seeded PRNG. If the PRNG
// cannot be seeded the package level generator is used instead.
func NewCryptoRand() Rand {
	prng, err := rand.NewPRNG()
	if err != nil {
		log.Warnf("Unable to seed trial PRNG, using shared generator: %v",
			err)

		return globalRand{}
	}

	return prng
}
