// internal/swap/balance.go
package swap

import (
	"context"
	"math"
	"math/bits"

	"github.com/gagliardetto/solana-go"
)

const nativeSymbol = "SOL"

// BalanceReader is the part of the ledger the balance precondition needs.
type BalanceReader interface {
	GetBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	GetTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error)
}

// checkBalance enforces the precondition in base units, so equality with the
// required amount always passes:
//   - native input: lamports >= amount + reserve
//   - token input:  lamports >= reserve and token balance >= amount
func checkBalance(ctx context.Context, ledger BalanceReader, owner, inputMint solana.PublicKey, amountIn uint64, inputDecimals uint8, reserve uint64) error {
	lamports, err := ledger.GetBalance(ctx, owner)
	if err != nil {
		return fail(ErrLedgerUnavailable, err, "could not read wallet balance, try again later")
	}

	native := inputMint.Equals(solana.SolMint)
	required := reserve
	if native {
		var carry uint64
		required, carry = bits.Add64(reserve, amountIn, 0)
		if carry != 0 {
			// no wallet can hold more than MaxUint64 lamports
			return &InsufficientBalanceError{
				Asset:          nativeSymbol,
				Required:       FromBaseUnits(amountIn, nativeDecimals) + FromBaseUnits(reserve, nativeDecimals),
				Available:      FromBaseUnits(lamports, nativeDecimals),
				RequiredUnits:  math.MaxUint64,
				AvailableUnits: lamports,
			}
		}
	}
	if lamports < required {
		return &InsufficientBalanceError{
			Asset:          nativeSymbol,
			Required:       FromBaseUnits(required, nativeDecimals),
			Available:      FromBaseUnits(lamports, nativeDecimals),
			RequiredUnits:  required,
			AvailableUnits: lamports,
		}
	}
	if native {
		return nil
	}

	tokens, err := ledger.GetTokenBalance(ctx, owner, inputMint)
	if err != nil {
		return fail(ErrLedgerUnavailable, err, "could not read token balance, try again later")
	}
	if tokens < amountIn {
		return &InsufficientBalanceError{
			Asset:          inputMint.String(),
			Required:       FromBaseUnits(amountIn, inputDecimals),
			Available:      FromBaseUnits(tokens, inputDecimals),
			RequiredUnits:  amountIn,
			AvailableUnits: tokens,
		}
	}
	return nil
}
