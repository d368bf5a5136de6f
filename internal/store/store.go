// Package store defines the durable mapping of instruments and portfolios,
// and its MongoDB-backed implementation. The Store is the exclusive
// mutation path for instrument and portfolio state; every operation is
// serializable with respect to concurrent callers.
package store

import (
	"context"
	"time"
)

// Instrument is a point-in-time snapshot of a tradable symbol.
type Instrument struct {
	Symbol        string    `bson:"symbol"         json:"symbol"`
	DisplayName   string    `bson:"display_name"   json:"displayName"`
	Price         float64   `bson:"price"          json:"price"`
	PreviousPrice float64   `bson:"previous_price" json:"previousPrice"`
	UpdatedAt     time.Time `bson:"updated_at"     json:"updatedAt"`
}

// Portfolio is a point-in-time snapshot of one team's cash and holdings.
// Holdings with zero quantity are never present.
type Portfolio struct {
	Team        string           `bson:"team"         json:"team"`
	Cash        float64          `bson:"cash"         json:"cash"`
	Holdings    map[string]int64 `bson:"-"            json:"holdings"`
	LastUpdated time.Time        `bson:"last_updated" json:"lastUpdated"`
}

// Side is the direction of a trade.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Trade is a single persisted execution.
type Trade struct {
	ID         string    `bson:"_id"          json:"id"`
	Team       string    `bson:"team"         json:"team"`
	Symbol     string    `bson:"symbol"       json:"symbol"`
	Side       Side      `bson:"side"         json:"side"`
	Qty        int64     `bson:"qty"          json:"qty"`
	Price      float64   `bson:"price"        json:"price"`
	ExecutedAt time.Time `bson:"executed_at"  json:"executedAt"`
}

// TradeFilter controls which trades ListTrades returns.
type TradeFilter struct {
	Team   string
	Limit  int
	Offset int
}

// RoundState is the singleton round lifecycle record persisted so a
// restart can rejoin an in-flight round.
type RoundState struct {
	Status            string        `bson:"status"`
	Deadline          time.Time     `bson:"deadline"`
	RemainingOnPause  time.Duration `bson:"remaining_on_pause"`
}

// Store is the sole mutation path for instruments and portfolios.
//
// apply_trade's price is resolved by the Store itself, inside the same
// atomic section that validates and mutates cash/holdings — this is the
// "price used is whatever the Store observes at the moment of execution"
// guarantee from the trade executor's contract. Callers do the
// round/precondition checks that live outside the Store's ownership
// (round-open, zero-qty) before calling ApplyTrade, but ApplyTrade itself
// re-validates existence and sufficiency so a race between the check and
// the call can never produce a negative balance.
type Store interface {
	ListInstruments(ctx context.Context) ([]Instrument, error)
	GetInstrument(ctx context.Context, symbol string) (Instrument, error)
	UpsertPrice(ctx context.Context, symbol string, newPrice float64, now time.Time) error
	SeedInstruments(ctx context.Context, seeds []Instrument) error

	CreatePortfolio(ctx context.Context, team string, initialCash float64, now time.Time) error
	GetPortfolio(ctx context.Context, team string) (Portfolio, error)
	ListPortfolios(ctx context.Context) ([]Portfolio, error)

	// ApplyTrade executes one buy (qty > 0) or sell (qty < 0) atomically.
	// Returns the updated portfolio on success.
	ApplyTrade(ctx context.Context, team, symbol string, qty int64, now time.Time) (Portfolio, error)

	ListTrades(ctx context.Context, f TradeFilter) ([]Trade, error)
	PruneTrades(ctx context.Context, olderThan time.Time) (int64, error)

	LoadRoundState(ctx context.Context) (RoundState, bool, error)
	SaveRoundState(ctx context.Context, rs RoundState) error

	Migrate(ctx context.Context) error
	Close(ctx context.Context)
}
