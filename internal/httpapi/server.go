// Package httpapi wires the trading engine's components onto HTTP/JSON
// routes. This is the single place a result code becomes a status code.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketsim/tradefloor/internal/news"
	"github.com/marketsim/tradefloor/internal/query"
	"github.com/marketsim/tradefloor/internal/round"
	"github.com/marketsim/tradefloor/internal/store"
	"github.com/marketsim/tradefloor/internal/trade"
)

// Observers is the ops stream upgrade handler the server hands a client off
// to on a websocket upgrade.
type Observers interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// RoundBroadcaster notifies connected observers of a round transition.
type RoundBroadcaster interface {
	BroadcastRound(status string)
}

// Server holds every component the HTTP layer calls into. It owns no
// trading state itself.
type Server struct {
	store        store.Store
	query        *query.Service
	executor     *trade.Executor
	controller   *round.Controller
	news         *news.Gateway
	observers    Observers
	broadcaster  RoundBroadcaster
	organizerKey string
	initialCash  float64
	startAt      time.Time
}

// New constructs a Server. observers and broadcaster may be nil (the ops
// stream is optional).
func New(st store.Store, q *query.Service, ex *trade.Executor, rc *round.Controller, ng *news.Gateway, observers Observers, broadcaster RoundBroadcaster, organizerKey string, initialCash float64) *Server {
	return &Server{
		store:        st,
		query:        q,
		executor:     ex,
		controller:   rc,
		news:         ng,
		observers:    observers,
		broadcaster:  broadcaster,
		organizerKey: organizerKey,
		initialCash:  initialCash,
		startAt:      time.Now(),
	}
}

// Register attaches every route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /init_team", s.handleInitTeam)
	mux.HandleFunc("GET /portfolio/{team}", s.handlePortfolio)
	mux.HandleFunc("POST /trade", s.handleTrade)
	mux.HandleFunc("GET /stocks", s.handleStocks)
	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)
	mux.HandleFunc("POST /round/start", s.handleRoundStart)
	mux.HandleFunc("POST /round/pause", s.handleRoundPause)
	mux.HandleFunc("POST /round/resume", s.handleRoundResume)
	mux.HandleFunc("POST /round/reset", s.handleRoundReset)
	mux.HandleFunc("GET /round", s.handleRoundStatus)
	mux.HandleFunc("GET /news", s.handleNews)
	mux.HandleFunc("GET /trades/{team}", s.handleTrades)
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.Handle("GET /metrics", promhttp.Handler())
	if s.observers != nil {
		mux.HandleFunc("GET /stream", s.observers.ServeHTTP)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func parseIntParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
