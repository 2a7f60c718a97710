// internal/swap/fee.go
package swap

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// FeeCalculator computes the protocol fee on a swap's input amount.
// The fee is recorded with the swap result; it is not added to the routed transaction.
type FeeCalculator struct {
	bps       uint64
	recipient solana.PublicKey
}

// NewFeeCalculator returns a disabled calculator when recipient is empty.
func NewFeeCalculator(bps int, recipient string) (*FeeCalculator, error) {
	if recipient == "" || bps <= 0 {
		return &FeeCalculator{}, nil
	}
	if bps > 10_000 {
		return nil, fmt.Errorf("fee bps %d exceeds 100%%", bps)
	}
	key, err := solana.PublicKeyFromBase58(recipient)
	if err != nil {
		return nil, fmt.Errorf("invalid fee wallet: %w", err)
	}
	return &FeeCalculator{bps: uint64(bps), recipient: key}, nil
}

// Fee returns the fee in input base units, truncated. Zero means no fee applies.
func (f *FeeCalculator) Fee(amountIn uint64) uint64 {
	if f == nil || f.bps == 0 {
		return 0
	}
	return amountIn/10_000*f.bps + amountIn%10_000*f.bps/10_000
}

func (f *FeeCalculator) Recipient() solana.PublicKey {
	if f == nil {
		return solana.PublicKey{}
	}
	return f.recipient
}
