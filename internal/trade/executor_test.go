package trade

import (
	"testing"
	"time"

	"github.com/marketsim/tradefloor/internal/apperr"
	"github.com/marketsim/tradefloor/internal/round"
	"github.com/marketsim/tradefloor/internal/store"
)

func newTestExecutor(t *testing.T) (*Executor, store.Store, *round.Controller) {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := t.Context()
	if err := st.SeedInstruments(ctx, []store.Instrument{{Symbol: "INFY", Price: 1500.0}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rc := round.New(1800*time.Second, nil)
	return New(st, rc), st, rc
}

func appCode(t *testing.T, err error) apperr.Code {
	t.Helper()
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T (%v)", err, err)
	}
	return ae.Code
}

func TestExecuteRejectsWhenRoundClosed(t *testing.T) {
	ex, st, _ := newTestExecutor(t)
	ctx := t.Context()
	st.CreatePortfolio(ctx, "Alpha", 100000, time.Now())

	_, err := ex.Execute(ctx, "Alpha", "INFY", 10, time.Now())
	if appCode(t, err) != apperr.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestExecuteRejectsZeroQty(t *testing.T) {
	ex, st, rc := newTestExecutor(t)
	ctx := t.Context()
	st.CreatePortfolio(ctx, "Alpha", 100000, time.Now())
	rc.Start(ctx, time.Now())

	_, err := ex.Execute(ctx, "Alpha", "INFY", 0, time.Now())
	if appCode(t, err) != apperr.CodeBadRequest {
		t.Fatalf("expected bad_request, got %v", err)
	}
}

func TestExecuteUnknownSymbol(t *testing.T) {
	ex, st, rc := newTestExecutor(t)
	ctx := t.Context()
	st.CreatePortfolio(ctx, "Alpha", 100000, time.Now())
	rc.Start(ctx, time.Now())

	_, err := ex.Execute(ctx, "Alpha", "ZZZZ", 10, time.Now())
	if appCode(t, err) != apperr.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestExecuteUnknownTeam(t *testing.T) {
	ex, _, rc := newTestExecutor(t)
	ctx := t.Context()
	rc.Start(ctx, time.Now())

	_, err := ex.Execute(ctx, "Ghost", "INFY", 10, time.Now())
	if appCode(t, err) != apperr.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestExecuteBuyThenSellRoundTrips(t *testing.T) {
	ex, st, rc := newTestExecutor(t)
	ctx := t.Context()
	st.CreatePortfolio(ctx, "Alpha", 100000, time.Now())
	rc.Start(ctx, time.Now())

	res, err := ex.Execute(ctx, "Alpha", "INFY", 10, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Cash != 85000 {
		t.Fatalf("expected cash 85000, got %v", res.Cash)
	}
	if res.Holdings["INFY"] != 10 {
		t.Fatalf("expected 10 INFY held, got %v", res.Holdings["INFY"])
	}

	res, err = ex.Execute(ctx, "Alpha", "INFY", -10, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Cash != 100000 {
		t.Fatalf("expected cash 100000, got %v", res.Cash)
	}
	if _, exists := res.Holdings["INFY"]; exists {
		t.Fatalf("expected INFY holding pruned, got %v", res.Holdings)
	}
}

func TestExecuteInsufficientCash(t *testing.T) {
	ex, st, rc := newTestExecutor(t)
	ctx := t.Context()
	st.CreatePortfolio(ctx, "Alpha", 100000, time.Now())
	rc.Start(ctx, time.Now())

	before, _ := st.GetPortfolio(ctx, "Alpha")

	_, err := ex.Execute(ctx, "Alpha", "INFY", 1000, time.Now())
	if appCode(t, err) != apperr.CodeBadRequest {
		t.Fatalf("expected bad_request, got %v", err)
	}

	after, _ := st.GetPortfolio(ctx, "Alpha")
	if after.Cash != before.Cash {
		t.Errorf("expected cash unchanged after failed trade, before=%v after=%v", before.Cash, after.Cash)
	}
}

func TestExecuteInsufficientHoldings(t *testing.T) {
	ex, st, rc := newTestExecutor(t)
	ctx := t.Context()
	st.CreatePortfolio(ctx, "Alpha", 100000, time.Now())
	rc.Start(ctx, time.Now())

	_, err := ex.Execute(ctx, "Alpha", "INFY", -1, time.Now())
	if appCode(t, err) != apperr.CodeBadRequest {
		t.Fatalf("expected bad_request, got %v", err)
	}
}

func TestExecuteConcurrentBuysRespectCashLimit(t *testing.T) {
	ex, st, rc := newTestExecutor(t)
	ctx := t.Context()
	st.CreatePortfolio(ctx, "Alpha", 15000, time.Now()) // room for exactly 10 shares @ 1500
	rc.Start(ctx, time.Now())

	const n = 20
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := ex.Execute(ctx, "Alpha", "INFY", 1, time.Now())
			results <- err
		}()
	}

	successes := 0
	for i := 0; i < n; i++ {
		if err := <-results; err == nil {
			successes++
		} else if appCode(t, err) != apperr.CodeBadRequest {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if successes != 10 {
		t.Fatalf("expected exactly 10 successful buys, got %d", successes)
	}

	final, _ := st.GetPortfolio(ctx, "Alpha")
	if final.Cash != 0 {
		t.Errorf("expected cash exhausted to 0, got %v", final.Cash)
	}
	if final.Holdings["INFY"] != 10 {
		t.Errorf("expected 10 shares held, got %v", final.Holdings["INFY"])
	}
}
