package coinjoin

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/coinset"
	"github.com/btcsuite/btcmix/pkg/btcunit"
	"github.com/btcsuite/btcwallet/wallet/txsizes"
	"github.com/stretchr/testify/require"
)

// TestCoinSetInterface checks the coinset accessors.
func TestCoinSetInterface(t *testing.T) {
	t.Parallel()

	coin := makeCoin(7, 2, 250_000, 3)
	coin.Confirmations = 4

	require.Equal(t, testHash(7), *coin.Hash())
	require.Equal(t, uint32(2), coin.Index())
	require.Equal(t, btcutil.Amount(250_000), coin.Value())
	require.Equal(t, btcutil.Amount(250_000), coin.Amount())
	require.Equal(t, p2wpkhScript(7), coin.PkScript())
	require.Equal(t, int64(4), coin.NumConfs())
	require.Equal(t, int64(1_000_000), coin.ValueAge())

	other := makeCoin(8, 0, 50_000, 0)
	set := coinset.NewCoinSet([]coinset.Coin{&coin, &other})
	require.Equal(t, btcutil.Amount(300_000), set.TotalValue())
	require.Equal(t, 2, set.Num())
}

// TestCoinLabels checks label lookup.
func TestCoinLabels(t *testing.T) {
	t.Parallel()

	coin := makeCoin(1, 0, 1000, 0)
	coin.Labels = []string{"exchange", "savings"}

	require.True(t, coin.HasLabel("savings"))
	require.False(t, coin.HasLabel("kyc"))
}

// TestEffectiveValue checks that both the input's mining fee and the
// coordination fee are taken off the coin's amount.
func TestEffectiveValue(t *testing.T) {
	t.Parallel()

	coin := makeCoin(1, 0, 1_000_000, 0)
	inputSize := int64(txsizes.GetMinInputVirtualSize(coin.PkScript()))

	testCases := []struct {
		name    string
		feeRate btcunit.SatPerKVByte
		coord   CoordinationFeeRate
		want    btcutil.Amount
	}{
		{
			name:    "no fees",
			feeRate: btcunit.ZeroSatPerKVByte,
			want:    1_000_000,
		},
		{
			name:    "mining fee only",
			feeRate: btcunit.NewSatPerKVByte(2000),
			want:    btcutil.Amount(1_000_000 - 2*inputSize),
		},
		{
			name:    "coordination fee",
			feeRate: btcunit.ZeroSatPerKVByte,
			coord:   CoordinationFeeRate{Rate: 0.003},
			want:    997_000,
		},
		{
			name:    "plebs do not pay",
			feeRate: btcunit.ZeroSatPerKVByte,
			coord: CoordinationFeeRate{
				Rate:                  0.003,
				PlebsDontPayThreshold: 1_000_000,
			},
			want: 1_000_000,
		},
		{
			name:    "both fees",
			feeRate: btcunit.NewSatPerKVByte(1000),
			coord: CoordinationFeeRate{
				Rate:                  0.003,
				PlebsDontPayThreshold: 500_000,
			},
			want: btcutil.Amount(997_000 - inputSize),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			params := &SelectionParams{
				MiningFeeRate:       tc.feeRate,
				CoordinationFeeRate: tc.coord,
			}
			require.Equal(t, tc.want, coin.EffectiveValue(params))
		})
	}
}

// TestEffectiveValueNegative ensures tiny coins report a negative value
// rather than being clamped.
func TestEffectiveValueNegative(t *testing.T) {
	t.Parallel()

	coin := makeCoin(1, 0, 10, 0)
	params := &SelectionParams{MiningFeeRate: btcunit.NewSatPerKVByte(1000)}

	require.Negative(t, int64(coin.EffectiveValue(params)))
}
