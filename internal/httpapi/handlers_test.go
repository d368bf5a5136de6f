package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marketsim/tradefloor/internal/news"
	"github.com/marketsim/tradefloor/internal/query"
	"github.com/marketsim/tradefloor/internal/round"
	"github.com/marketsim/tradefloor/internal/store"
	"github.com/marketsim/tradefloor/internal/trade"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*http.ServeMux, store.Store, *round.Controller) {
	t.Helper()

	st := store.NewMemoryStore()
	if err := st.SeedInstruments(t.Context(), []store.Instrument{
		{Symbol: "INFY", DisplayName: "Infosys Ltd", Price: 1500.0},
	}); err != nil {
		t.Fatalf("seed instruments: %v", err)
	}

	rc := round.New(1800*time.Second, st)
	ex := trade.New(st, rc)
	q := query.New(st)
	ng := news.New("")

	srv := New(st, q, ex, rc, ng, nil, nil, testSecret, 100000)
	mux := http.NewServeMux()
	srv.Register(mux)
	return mux, st, rc
}

func doJSON(mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func mustDecode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestInitTeam(t *testing.T) {
	mux, _, _ := newTestServer(t)

	w := doJSON(mux, "POST", "/init_team", map[string]string{"team": "Alpha"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var out map[string]any
	mustDecode(t, w, &out)
	if out["cash"] != float64(100000) {
		t.Errorf("expected cash 100000, got %v", out["cash"])
	}

	// repeat → 409
	w = doJSON(mux, "POST", "/init_team", map[string]string{"team": "Alpha"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on repeat registration, got %d", w.Code)
	}
}

func TestInitTeamEmptyName(t *testing.T) {
	mux, _, _ := newTestServer(t)
	w := doJSON(mux, "POST", "/init_team", map[string]string{"team": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty team, got %d", w.Code)
	}
}

func TestTradeRoundClosed(t *testing.T) {
	mux, _, _ := newTestServer(t)
	doJSON(mux, "POST", "/init_team", map[string]string{"team": "Alpha"})

	w := doJSON(mux, "POST", "/trade", map[string]any{"team": "Alpha", "symbol": "INFY", "qty": 10})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 round_closed, got %d: %s", w.Code, w.Body)
	}
}

func TestTradeBuyThenSell(t *testing.T) {
	mux, _, rc := newTestServer(t)
	doJSON(mux, "POST", "/init_team", map[string]string{"team": "Alpha"})
	rc.Start(t.Context(), time.Now())

	w := doJSON(mux, "POST", "/trade", map[string]any{"team": "Alpha", "symbol": "INFY", "qty": 10})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	var out map[string]any
	mustDecode(t, w, &out)
	if out["cash"] != float64(85000) {
		t.Errorf("expected cash 85000 after buy, got %v", out["cash"])
	}

	w = doJSON(mux, "POST", "/trade", map[string]any{"team": "Alpha", "symbol": "INFY", "qty": -10})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on sell, got %d: %s", w.Code, w.Body)
	}
	mustDecode(t, w, &out)
	if out["cash"] != float64(100000) {
		t.Errorf("expected cash 100000 after sell, got %v", out["cash"])
	}
}

func TestTradeInsufficientCash(t *testing.T) {
	mux, _, rc := newTestServer(t)
	doJSON(mux, "POST", "/init_team", map[string]string{"team": "Alpha"})
	rc.Start(t.Context(), time.Now())

	w := doJSON(mux, "POST", "/trade", map[string]any{"team": "Alpha", "symbol": "INFY", "qty": 1000})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 insufficient_cash, got %d: %s", w.Code, w.Body)
	}
}

func TestRoundControlRequiresSecret(t *testing.T) {
	mux, _, _ := newTestServer(t)
	w := doJSON(mux, "POST", "/round/start", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", w.Code)
	}
}

func TestRoundLifecycle(t *testing.T) {
	mux, _, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/round/start?secret="+testSecret, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 starting round, got %d: %s", w.Code, w.Body)
	}

	var out map[string]any
	mustDecode(t, w, &out)
	if out["status"] != "RUNNING" {
		t.Errorf("expected RUNNING, got %v", out["status"])
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	mux, st, _ := newTestServer(t)
	ctx := t.Context()

	st.CreatePortfolio(ctx, "A", 100000, time.Now())
	st.CreatePortfolio(ctx, "B", 110000, time.Now())
	st.ApplyTrade(ctx, "B", "INFY", 40, time.Now())
	st.CreatePortfolio(ctx, "C", 105000, time.Now())
	st.ApplyTrade(ctx, "C", "INFY", 10, time.Now())

	w := doJSON(mux, "GET", "/leaderboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var out []map[string]any
	mustDecode(t, w, &out)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(out))
	}
	if out[0]["team"] != "B" || out[1]["team"] != "C" || out[2]["team"] != "A" {
		t.Errorf("unexpected leaderboard order: %v", out)
	}
}

func TestNewsFallback(t *testing.T) {
	mux, _, _ := newTestServer(t)
	w := doJSON(mux, "GET", "/news", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var out map[string][]map[string]string
	mustDecode(t, w, &out)
	if len(out["articles"]) == 0 {
		t.Error("expected non-empty fallback articles")
	}
}

func TestHealthz(t *testing.T) {
	mux, _, _ := newTestServer(t)
	w := doJSON(mux, "GET", "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
