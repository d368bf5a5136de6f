package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/marketsim/tradefloor/internal/apperr"
	"github.com/marketsim/tradefloor/internal/metrics"
	"github.com/marketsim/tradefloor/internal/round"
	"github.com/marketsim/tradefloor/internal/store"
)

type initTeamRequest struct {
	Team string `json:"team"`
}

func (s *Server) handleInitTeam(w http.ResponseWriter, r *http.Request) {
	var req initTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed json")
		return
	}

	team := strings.TrimSpace(req.Team)
	if team == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "empty team name")
		return
	}

	err := s.store.CreatePortfolio(r.Context(), team, s.initialCash, time.Now())
	if errors.Is(err, store.ErrAlreadyExists) {
		writeError(w, http.StatusConflict, "conflict", "team already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not create team")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cash": s.initialCash})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	team := r.PathValue("team")

	view, err := s.query.Portfolio(r.Context(), team)
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type tradeRequest struct {
	Team   string `json:"team"`
	Symbol string `json:"symbol"`
	Qty    int64  `json:"qty"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed json")
		return
	}

	side := "buy"
	if req.Qty < 0 {
		side = "sell"
	}

	result, err := s.executor.Execute(r.Context(), req.Team, req.Symbol, req.Qty, time.Now())
	if err != nil {
		metrics.IncTrade(side, resultCode(err))
		writeAppErr(w, err)
		return
	}

	metrics.IncTrade(side, "ok")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "cash": result.Cash, "holdings": result.Holdings})
}

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	views, err := s.query.Instruments(r.Context())
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.query.Leaderboard(r.Context())
	if err != nil {
		writeAppErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	team := r.PathValue("team")
	limit := parseIntParam(r, "limit", 50)
	offset := parseIntParam(r, "offset", 0)

	trades, err := s.store.ListTrades(r.Context(), store.TradeFilter{Team: team, Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not list trades")
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "uptimeSeconds": time.Since(s.startAt).Seconds()})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.news.Fetch(r.Context()))
}

// --- round control ---

func (s *Server) requireOrganizer(w http.ResponseWriter, r *http.Request) bool {
	if s.organizerKey == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "organizer secret not configured")
		return false
	}
	got := r.Header.Get("X-Organizer-Secret")
	if got == "" {
		got = r.URL.Query().Get("secret")
	}
	if got != s.organizerKey {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or incorrect organizer secret")
		return false
	}
	return true
}

func (s *Server) handleRoundStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrganizer(w, r) {
		return
	}
	status, err := s.controller.Start(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not persist round state")
		return
	}
	metrics.IncRoundTransition(string(status))
	s.broadcastRound(status)
	snap := s.controller.Snapshot(time.Now())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": status, "deadline": snap.Deadline})
}

func (s *Server) handleRoundPause(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrganizer(w, r) {
		return
	}
	status, err := s.controller.Pause(r.Context(), time.Now())
	if errors.Is(err, round.ErrInvalidTransition) {
		writeError(w, http.StatusConflict, "conflict", "cannot pause from the current status")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not persist round state")
		return
	}
	metrics.IncRoundTransition(string(status))
	s.broadcastRound(status)
	snap := s.controller.Snapshot(time.Now())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": status, "remaining": snap.Remaining.Seconds()})
}

func (s *Server) handleRoundResume(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrganizer(w, r) {
		return
	}
	status, err := s.controller.Resume(r.Context(), time.Now())
	if errors.Is(err, round.ErrInvalidTransition) {
		writeError(w, http.StatusConflict, "conflict", "cannot resume from the current status")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not persist round state")
		return
	}
	metrics.IncRoundTransition(string(status))
	s.broadcastRound(status)
	snap := s.controller.Snapshot(time.Now())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": status, "deadline": snap.Deadline})
}

func (s *Server) handleRoundReset(w http.ResponseWriter, r *http.Request) {
	if !s.requireOrganizer(w, r) {
		return
	}
	status, err := s.controller.Reset(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not persist round state")
		return
	}
	metrics.IncRoundTransition(string(status))
	s.broadcastRound(status)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": status})
}

func (s *Server) broadcastRound(status round.Status) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastRound(string(status))
	}
}

func (s *Server) handleRoundStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Snapshot(time.Now())

	resp := map[string]any{"status": snap.Status}
	switch snap.Status {
	case round.Running:
		resp["deadline"] = snap.Deadline
		resp["remaining"] = snap.Remaining.Seconds()
	case round.Paused:
		resp["remaining"] = snap.Remaining.Seconds()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- error translation ---

func writeAppErr(w http.ResponseWriter, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "unexpected error")
		return
	}

	status := http.StatusInternalServerError
	switch ae.Code {
	case apperr.CodeBadRequest:
		status = http.StatusBadRequest
	case apperr.CodeUnauthorized:
		status = http.StatusUnauthorized
	case apperr.CodeForbidden:
		status = http.StatusForbidden
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodeTimeout:
		status = http.StatusGatewayTimeout
	case apperr.CodeInternal:
		status = http.StatusInternalServerError
	}
	writeError(w, status, string(ae.Code), ae.Reason)
}

func resultCode(err error) string {
	if ae, ok := apperr.As(err); ok {
		return string(ae.Code)
	}
	return "internal"
}
