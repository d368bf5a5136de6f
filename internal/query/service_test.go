package query

import (
	"testing"
	"time"

	"github.com/marketsim/tradefloor/internal/store"
)

func TestInstrumentsPctChange(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := t.Context()
	st.SeedInstruments(ctx, []store.Instrument{{Symbol: "INFY", Price: 1500.0}})
	st.UpsertPrice(ctx, "INFY", 1530.0, time.Now())

	q := New(st)
	views, err := q.Instruments(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 instrument, got %d", len(views))
	}

	v := views[0]
	if v.Price != 1530.0 || v.PreviousPrice != 1500.0 {
		t.Fatalf("unexpected price/previous: %+v", v)
	}
	wantPct := 2.0
	if v.PctChange != wantPct {
		t.Errorf("expected pct_change %v, got %v", wantPct, v.PctChange)
	}
}

func TestInstrumentsPctChangeZeroWhenNoPriorUpdate(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := t.Context()
	st.SeedInstruments(ctx, []store.Instrument{{Symbol: "INFY", Price: 1500.0}})

	q := New(st)
	views, _ := q.Instruments(ctx)
	if views[0].PctChange != 0.0 {
		t.Errorf("expected pct_change 0 before any update, got %v", views[0].PctChange)
	}
}

func TestPortfolioViewConsistentSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := t.Context()
	st.SeedInstruments(ctx, []store.Instrument{{Symbol: "INFY", Price: 1500.0}})
	st.CreatePortfolio(ctx, "Alpha", 100000, time.Now())
	st.ApplyTrade(ctx, "Alpha", "INFY", 10, time.Now())

	q := New(st)
	view, err := q.Portfolio(ctx, "Alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.Cash != 85000 {
		t.Errorf("expected cash 85000, got %v", view.Cash)
	}
	holding, ok := view.Holdings["INFY"]
	if !ok {
		t.Fatal("expected INFY holding present")
	}
	if holding.Qty != 10 || holding.Value != 15000 {
		t.Errorf("unexpected holding: %+v", holding)
	}
	if view.PortfolioValue != 100000 {
		t.Errorf("expected portfolio value 100000, got %v", view.PortfolioValue)
	}
}

func TestPortfolioUnknownTeam(t *testing.T) {
	st := store.NewMemoryStore()
	q := New(st)
	if _, err := q.Portfolio(t.Context(), "Ghost"); err == nil {
		t.Fatal("expected error for unknown team")
	}
}

func TestLeaderboardOrderingAndTieBreak(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := t.Context()
	st.SeedInstruments(ctx, []store.Instrument{{Symbol: "INFY", Price: 1500.0}})

	st.CreatePortfolio(ctx, "A", 100000, time.Now())
	st.CreatePortfolio(ctx, "B", 110000, time.Now())
	st.ApplyTrade(ctx, "B", "INFY", 40, time.Now())
	st.CreatePortfolio(ctx, "C", 105000, time.Now())
	st.ApplyTrade(ctx, "C", "INFY", 10, time.Now())
	st.CreatePortfolio(ctx, "Z", 100000, time.Now())
	st.CreatePortfolio(ctx, "Y", 100000, time.Now())

	q := New(st)
	entries, err := q.Leaderboard(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{"B", "C", "A", "Y", "Z"}
	if len(entries) != len(wantOrder) {
		t.Fatalf("expected %d entries, got %d", len(wantOrder), len(entries))
	}
	for i, team := range wantOrder {
		if entries[i].Team != team {
			t.Errorf("position %d: expected %s, got %s", i, team, entries[i].Team)
		}
	}
}
