package coinjoin

import (
	"math/rand/v2"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcmix/pkg/btcunit"
)

// testSeed seeds the deterministic randomness used across the tests.
const testSeed = 0x5eed

// newTestRand returns a deterministic source for the given trial.
func newTestRand(seed uint64, trial int) Rand {
	return rand.New(rand.NewPCG(seed, uint64(trial)))
}

// testRandFactory returns a NewRand function yielding deterministic sources.
func testRandFactory(seed uint64) func(int) Rand {
	return func(trial int) Rand {
		return newTestRand(seed, trial)
	}
}

// p2wpkhScript returns a well formed P2WPKH script whose key hash is filled
// with b.
func p2wpkhScript(b byte) []byte {
	script := make([]byte, 22)
	script[0] = 0x00
	script[1] = 0x14
	for i := 2; i < len(script); i++ {
		script[i] = b
	}

	return script
}

// testHash returns a transaction id derived from b.
func testHash(b byte) chainhash.Hash {
	var hash chainhash.Hash
	hash[0] = b
	hash[31] = 0xff

	return hash
}

// makeCoin returns a confirmed P2WPKH coin created by the transaction
// derived from tx.
func makeCoin(tx byte, index uint32, amount int64, score float64) Coin {
	return Coin{
		OutPoint: wire.OutPoint{Hash: testHash(tx), Index: index},
		TxOut: wire.TxOut{
			Value:    amount,
			PkScript: p2wpkhScript(tx),
		},
		AnonymityScore: score,
		Confirmations:  6,
	}
}

// makePayment returns a pending payment of the given value.
func makePayment(id string, amount int64) PendingPayment {
	return PendingPayment{
		ID: id,
		Output: wire.TxOut{
			Value:    amount,
			PkScript: p2wpkhScript(0xaa),
		},
	}
}

// testParams returns selection parameters with a target of 10 and a 1
// sat/vb fee rate.
func testParams() SelectionParams {
	return SelectionParams{
		MiningFeeRate:   btcunit.NewSatPerKVByte(1000),
		AnonScoreTarget: 10,
		MaxCoins:        DefaultMaxCoins,
		IdealMinPerTier: DefaultIdealMinPerTier(),
	}
}

// makeCoinPool returns n coins from distinct transactions with scores
// cycling through the three tiers of a target of 10.
func makeCoinPool(n int) []Coin {
	scores := []float64{0, 1, 4, 7, 12, 25}

	coins := make([]Coin, 0, n)
	for i := range n {
		amount := int64(100_000 + 37_000*(i%11))
		coins = append(coins, makeCoin(
			byte(i), uint32(i%3), amount, scores[i%len(scores)],
		))
	}

	return coins
}
