// Package market runs the background ticker that evolves instrument prices
// while a round is active.
package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/marketsim/tradefloor/internal/metrics"
	"github.com/marketsim/tradefloor/internal/rng"
	"github.com/marketsim/tradefloor/internal/store"
)

// PriceFloor is the hard lower bound on any instrument price.
const PriceFloor = 0.01

// TradingOpen reports whether the market should move prices right now.
// The Round Controller implements this; the Simulator only depends on it.
type TradingOpen interface {
	IsTradingOpen(now time.Time) bool
}

// Observer receives a notification for every price update. The ops stream
// manager implements this; it is optional (nil is a valid no-op observer).
type Observer interface {
	BroadcastTick(symbol string, price float64)
}

// Simulator advances every instrument's price once per tick while trading
// is open. It is a single long-lived task; shutdown drains within one tick.
type Simulator struct {
	store        store.Store
	round        TradingOpen
	rng          *rng.RNG
	tickInterval time.Duration
	observer     Observer
	log          *slog.Logger
}

// New constructs a Simulator. tickInterval is the cadence between checks;
// a single rng instance is shared across all instruments in insertion order.
// observer may be nil.
func New(st store.Store, round TradingOpen, r *rng.RNG, tickInterval time.Duration, observer Observer, log *slog.Logger) *Simulator {
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{
		store:        st,
		round:        round,
		rng:          r,
		tickInterval: tickInterval,
		observer:     observer,
		log:          log,
	}
}

// Run blocks, ticking every tickInterval until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Simulator) tick(ctx context.Context, now time.Time) {
	if !s.round.IsTradingOpen(now) {
		return
	}

	instruments, err := s.store.ListInstruments(ctx)
	if err != nil {
		s.log.Error("market: list instruments failed", "error", err)
		return
	}

	for _, inst := range instruments {
		delta := s.rng.UniformRange(-0.005, 0.005)
		newPrice := inst.Price * (1 + delta)
		if newPrice < PriceFloor {
			newPrice = PriceFloor
		}
		if err := s.store.UpsertPrice(ctx, inst.Symbol, newPrice, now); err != nil {
			s.log.Error("market: upsert price failed", "symbol", inst.Symbol, "error", err)
			continue
		}
		if s.observer != nil {
			s.observer.BroadcastTick(inst.Symbol, newPrice)
		}
	}
	metrics.IncTick()
}
