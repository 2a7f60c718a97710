// internal/swap/request.go
package swap

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/snipe-engine/internal/access"
)

const nativeDecimals uint8 = 9

// Source tells who invoked a swap.
type Source string

const (
	SourceCommand   Source = "command"
	SourceSnipeLoop Source = "snipe_loop"
	SourceAutoSnipe Source = "auto_snipe_all"
)

// Service returns the access-controlled service the source draws on.
func (s Source) Service() string {
	if s == SourceCommand {
		return access.ServiceBuySell
	}
	return access.ServiceAutoSnipe
}

type Request struct {
	UserID     int64
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Amount     float64 // human units of InputMint
	Source     Source
}

type Result struct {
	Signature   solana.Signature
	AmountIn    uint64 // base units of InputMint
	FeeAmount   uint64 // base units of InputMint
	OutAmount   string // quoted, base units of OutputMint
	CreatedATA  bool
	Duration    time.Duration
	ExplorerURL string
}

// ExplorerURL returns the solscan page of a transaction.
func ExplorerURL(sig solana.Signature) string {
	return "https://solscan.io/tx/" + sig.String()
}
