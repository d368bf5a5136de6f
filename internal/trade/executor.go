// Package trade implements the atomic buy/sell path enforcing cash and
// holdings invariants.
package trade

import (
	"context"
	"errors"
	"time"

	"github.com/marketsim/tradefloor/internal/apperr"
	"github.com/marketsim/tradefloor/internal/store"
)

// RoundGate is the subset of the Round Controller the executor needs.
type RoundGate interface {
	IsTradingOpen(now time.Time) bool
}

// Executor enforces the precondition order from the trading contract and
// delegates the atomic mutation to the Store.
type Executor struct {
	store store.Store
	round RoundGate
}

// New constructs an Executor.
func New(st store.Store, round RoundGate) *Executor {
	return &Executor{store: st, round: round}
}

// Result is the successful outcome of a trade.
type Result struct {
	Cash     float64
	Holdings map[string]int64
}

// Execute runs one buy (qty > 0) or sell (qty < 0) for team against symbol.
// Preconditions are checked in the order the contract specifies; any
// failure returns immediately with no mutation performed.
func (e *Executor) Execute(ctx context.Context, team, symbol string, qty int64, now time.Time) (Result, error) {
	if !e.round.IsTradingOpen(now) {
		return Result{}, apperr.Forbidden("round_closed")
	}
	if qty == 0 {
		return Result{}, apperr.BadRequest("zero_quantity")
	}

	// Existence and sufficiency are re-validated atomically inside the
	// Store; a race between this check and the call can only ever make
	// the Store's check the authoritative one. These lookups exist to
	// return the contract's distinct not-found codes rather than a
	// generic insufficiency failure.
	if _, err := e.store.GetInstrument(ctx, symbol); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, apperr.NotFound("unknown_symbol")
		}
		return Result{}, apperr.Internal(err.Error())
	}
	if _, err := e.store.GetPortfolio(ctx, team); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, apperr.NotFound("unknown_team")
		}
		return Result{}, apperr.Internal(err.Error())
	}

	pf, err := e.store.ApplyTrade(ctx, team, symbol, qty, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInsufficientCash):
			return Result{}, apperr.BadRequest("insufficient_cash")
		case errors.Is(err, store.ErrInsufficientHoldings):
			return Result{}, apperr.BadRequest("insufficient_holdings")
		case errors.Is(err, store.ErrNotFound):
			return Result{}, apperr.NotFound("unknown_team")
		default:
			return Result{}, apperr.Internal(err.Error())
		}
	}

	return Result{Cash: pf.Cash, Holdings: pf.Holdings}, nil
}
