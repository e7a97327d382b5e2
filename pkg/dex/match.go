package dex

import (
	"context"
	"fmt"
	"math"
)

// Asset identifies what a balance query is denominated in. A zero Mint
// means native SOL (amounts in lamports); otherwise amounts are base units
// of the SPL token at Mint.
type Asset struct {
	Mint     string
	Decimals int
}

// SOL is the native asset descriptor.
var SOL = Asset{}

// BalanceOracle answers "does principal hold at least amount of asset".
// It must fail closed: an unreachable ledger is an error, never a yes.
type BalanceOracle interface {
	HasBalance(ctx context.Context, principal string, asset Asset, amount uint64) (bool, error)
}

// ExecuteRequest is a buy against a resting sell order.
type ExecuteRequest struct {
	IcoID         string
	OrderID       string
	Buyer         string
	Amount        int64
	TokenMint     string
	TokenDecimals int
}

// Fill describes a committed (partial or full) execution. The caller uses
// it to construct and submit the actual settlement transaction; no funds
// move server-side.
type Fill struct {
	ID              string  `json:"fill_id"`
	IcoID           string  `json:"ico_id"`
	OrderID         string  `json:"order_id"`
	FilledAmount    int64   `json:"filled_amount"`
	RemainingAmount int64   `json:"remaining_amount"`
	Price           float64 `json:"price"`
	Seller          string  `json:"seller"`
	Buyer           string  `json:"buyer"`
	Timestamp       int64   `json:"timestamp"`
}

// MatchEngine validates execute requests against a target order. It holds
// no book state; the Gateway owns sequencing and mutation.
type MatchEngine struct {
	oracle BalanceOracle
}

func NewMatchEngine(oracle BalanceOracle) *MatchEngine {
	return &MatchEngine{oracle: oracle}
}

// CheckAmount enforces the fill-size rules: positive, and at most the
// order's remaining amount. Partial fills are fine, over-fills are not.
func (e *MatchEngine) CheckAmount(o Order, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	if amount > o.Amount {
		return fmt.Errorf("%w: available %d, requested %d", ErrInsufficientLiquidity, o.Amount, amount)
	}
	return nil
}

// Precheck verifies both sides can settle: the buyer holds enough SOL to
// pay and the seller still holds the tokens being sold. Advisory only —
// settlement happens externally after the fill is committed.
func (e *MatchEngine) Precheck(ctx context.Context, o Order, req ExecuteRequest) error {
	lamports := RequiredLamports(req.Amount, req.TokenDecimals, o.Price)
	ok, err := e.oracle.HasBalance(ctx, req.Buyer, SOL, lamports)
	if err != nil {
		return fmt.Errorf("%w: buyer balance: %v", ErrOracleUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: need %d lamports", ErrInsufficientFunds, lamports)
	}

	asset := Asset{Mint: req.TokenMint, Decimals: req.TokenDecimals}
	ok, err = e.oracle.HasBalance(ctx, o.Owner, asset, uint64(req.Amount))
	if err != nil {
		return fmt.Errorf("%w: seller balance: %v", ErrOracleUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("%w: need %d base units of %s", ErrInsufficientAsset, req.Amount, req.TokenMint)
	}
	return nil
}

// RequiredLamports converts a fill of amount base units at price SOL per
// whole token into the lamports the buyer must hold. Rounds up so the
// pre-check never passes on a payment that rounds short.
func RequiredLamports(amount int64, decimals int, price float64) uint64 {
	sol := float64(amount) / math.Pow10(decimals) * price
	return uint64(math.Ceil(sol * 1e9))
}
