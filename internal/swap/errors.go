// internal/swap/errors.go
package swap

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by the orchestrator matches exactly one of them with errors.Is.
var (
	ErrAccessDenied          = errors.New("access denied")
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrUnsupportedAsset      = errors.New("unsupported asset")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrLedgerUnavailable     = errors.New("ledger unavailable")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrAccountCreationFailed = errors.New("account creation failed")
	ErrQuoteUnavailable      = errors.New("quote unavailable")
	ErrRouteBuildFailed      = errors.New("route build failed")
	ErrSubmissionFailed      = errors.New("submission failed")
	ErrDuplicateRequest      = errors.New("duplicate request")
)

var kindNames = map[error]string{
	ErrAccessDenied:          "access_denied",
	ErrWalletNotFound:        "wallet_not_found",
	ErrUnsupportedAsset:      "unsupported_asset",
	ErrInvalidAmount:         "invalid_amount",
	ErrLedgerUnavailable:     "ledger_unavailable",
	ErrInsufficientBalance:   "insufficient_balance",
	ErrAccountCreationFailed: "account_creation_failed",
	ErrQuoteUnavailable:      "quote_unavailable",
	ErrRouteBuildFailed:      "route_build_failed",
	ErrSubmissionFailed:      "submission_failed",
	ErrDuplicateRequest:      "duplicate_request",
}

// Error is a classified swap failure. Reason is safe to show to the user.
type Error struct {
	Kind   error
	Reason string
	Err    error
}

func fail(kind, err error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// InsufficientBalanceError carries required vs. available amounts of the short asset.
type InsufficientBalanceError struct {
	Asset          string
	Required       float64
	Available      float64
	RequiredUnits  uint64
	AvailableUnits uint64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: required %s, available %s",
		e.Asset, formatAmount(e.Required), formatAmount(e.Available))
}

func (e *InsufficientBalanceError) Is(target error) bool { return target == ErrInsufficientBalance }

// Kind returns the metric/event label of err's failure kind, or "internal".
func Kind(err error) string {
	var balanceErr *InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		return kindNames[ErrInsufficientBalance]
	}
	var swapErr *Error
	if errors.As(err, &swapErr) {
		if name, ok := kindNames[swapErr.Kind]; ok {
			return name
		}
	}
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return "internal"
}

// Reason collapses any swap failure into one human-readable line.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var balanceErr *InsufficientBalanceError
	if errors.As(err, &balanceErr) {
		return balanceErr.Error()
	}
	var swapErr *Error
	if errors.As(err, &swapErr) && swapErr.Reason != "" {
		return swapErr.Reason
	}
	return "swap failed: " + err.Error()
}
