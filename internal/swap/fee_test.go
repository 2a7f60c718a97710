package swap

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeCalculator(t *testing.T) {
	recipient := solana.NewWallet().PublicKey()

	f, err := NewFeeCalculator(100, recipient.String())
	require.NoError(t, err)
	assert.Equal(t, recipient, f.Recipient())

	tests := []struct {
		amountIn uint64
		want     uint64
	}{
		{amountIn: 100_000_000, want: 1_000_000},
		{amountIn: 199, want: 1}, // truncated
		{amountIn: 99, want: 0},
		{amountIn: math.MaxUint64, want: math.MaxUint64 / 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Fee(tt.amountIn), "amount %d", tt.amountIn)
	}
}

func TestFeeCalculatorDisabled(t *testing.T) {
	f, err := NewFeeCalculator(100, "")
	require.NoError(t, err)
	assert.Zero(t, f.Fee(1_000_000_000))
	assert.True(t, f.Recipient().IsZero())

	var nilCalc *FeeCalculator
	assert.Zero(t, nilCalc.Fee(1_000))
}

func TestFeeCalculatorInvalid(t *testing.T) {
	_, err := NewFeeCalculator(100, "not-a-key")
	assert.Error(t, err)

	_, err = NewFeeCalculator(10_001, solana.NewWallet().PublicKey().String())
	assert.Error(t, err)
}
