// Package query implements the read-only endpoints: instrument snapshot,
// portfolio view, and leaderboard ranking.
package query

import (
	"context"
	"sort"

	"github.com/marketsim/tradefloor/internal/apperr"
	"github.com/marketsim/tradefloor/internal/metrics"
	"github.com/marketsim/tradefloor/internal/store"
)

// Service answers read queries against the Store. It never mutates state.
type Service struct {
	store store.Store
}

// New constructs a Service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

// InstrumentView is one row of the instruments snapshot.
type InstrumentView struct {
	Symbol        string  `json:"symbol"`
	DisplayName   string  `json:"name"`
	Price         float64 `json:"price"`
	PreviousPrice float64 `json:"lastPrice"`
	PctChange     float64 `json:"pctChange"`
}

// Instruments returns every instrument with its percent change since the
// previous tick.
func (s *Service) Instruments(ctx context.Context) ([]InstrumentView, error) {
	instruments, err := s.store.ListInstruments(ctx)
	if err != nil {
		return nil, apperr.Internal(err.Error())
	}

	views := make([]InstrumentView, len(instruments))
	for i, inst := range instruments {
		views[i] = InstrumentView{
			Symbol:        inst.Symbol,
			DisplayName:   inst.DisplayName,
			Price:         round2(inst.Price),
			PreviousPrice: round2(inst.PreviousPrice),
			PctChange:     pctChange(inst.Price, inst.PreviousPrice),
		}
	}
	return views, nil
}

// HoldingView is one line of a portfolio's holdings.
type HoldingView struct {
	Qty          int64   `json:"qty"`
	CurrentPrice float64 `json:"price"`
	Value        float64 `json:"value"`
}

// PortfolioView is the full valuation of one team.
type PortfolioView struct {
	Team           string                 `json:"team"`
	Cash           float64                `json:"cash"`
	Holdings       map[string]HoldingView `json:"holdings"`
	PortfolioValue float64                `json:"portfolioValue"`
}

// Portfolio returns team T's valuation, pricing every holding from a single
// consistent snapshot of instrument prices so portfolio_value is
// self-consistent even if the market ticks mid-call.
func (s *Service) Portfolio(ctx context.Context, team string) (PortfolioView, error) {
	pf, err := s.store.GetPortfolio(ctx, team)
	if err != nil {
		if err == store.ErrNotFound {
			return PortfolioView{}, apperr.NotFound("unknown_team")
		}
		return PortfolioView{}, apperr.Internal(err.Error())
	}

	prices, err := s.priceSnapshot(ctx)
	if err != nil {
		return PortfolioView{}, err
	}

	holdings := make(map[string]HoldingView, len(pf.Holdings))
	value := 0.0
	for symbol, qty := range pf.Holdings {
		price := prices[symbol]
		lineValue := price * float64(qty)
		holdings[symbol] = HoldingView{Qty: qty, CurrentPrice: round2(price), Value: round2(lineValue)}
		value += lineValue
	}

	return PortfolioView{
		Team:           pf.Team,
		Cash:           round2(pf.Cash),
		Holdings:       holdings,
		PortfolioValue: round2(pf.Cash + value),
	}, nil
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Team  string  `json:"team"`
	Value float64 `json:"value"`
}

// Leaderboard ranks every portfolio by mark-to-market value descending,
// ties broken by ascending team name.
func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	portfolios, err := s.store.ListPortfolios(ctx)
	if err != nil {
		return nil, apperr.Internal(err.Error())
	}

	prices, err := s.priceSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(portfolios))
	total := 0.0
	for i, pf := range portfolios {
		value := pf.Cash
		for symbol, qty := range pf.Holdings {
			value += prices[symbol] * float64(qty)
		}
		entries[i] = LeaderboardEntry{Team: pf.Team, Value: round2(value)}
		total += value
	}
	metrics.SetPortfolioValue(total)

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Team < entries[j].Team
	})
	return entries, nil
}

func (s *Service) priceSnapshot(ctx context.Context) (map[string]float64, error) {
	instruments, err := s.store.ListInstruments(ctx)
	if err != nil {
		return nil, apperr.Internal(err.Error())
	}
	prices := make(map[string]float64, len(instruments))
	for _, inst := range instruments {
		prices[inst.Symbol] = inst.Price
	}
	return prices, nil
}

func pctChange(price, previous float64) float64 {
	if previous <= 0 {
		return 0.0
	}
	return round2(100 * (price - previous) / previous)
}

func round2(v float64) float64 {
	return float64(int64(v*100+sign(v)*0.5)) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
