package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marketsim/tradefloor/internal/config"
	"github.com/marketsim/tradefloor/internal/httpapi"
	"github.com/marketsim/tradefloor/internal/instrument"
	"github.com/marketsim/tradefloor/internal/market"
	"github.com/marketsim/tradefloor/internal/news"
	"github.com/marketsim/tradefloor/internal/opsstream"
	"github.com/marketsim/tradefloor/internal/query"
	"github.com/marketsim/tradefloor/internal/rng"
	"github.com/marketsim/tradefloor/internal/round"
	"github.com/marketsim/tradefloor/internal/store"
	"github.com/marketsim/tradefloor/internal/trade"
)

func main() {
	cfg := config.Load()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	log.Info("tradefloor starting", "db_path", cfg.DBPath, "port", cfg.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		log.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer st.Close(context.Background())

	if err := st.Migrate(ctx); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}

	seeds := instrument.DefaultSeeds()
	toSeed := make([]store.Instrument, len(seeds))
	for i, s := range seeds {
		toSeed[i] = store.Instrument{Symbol: s.Symbol, DisplayName: s.DisplayName, Price: s.BasePrice, PreviousPrice: s.BasePrice}
	}
	if err := st.SeedInstruments(ctx, toSeed); err != nil {
		log.Error("instrument seeding failed", "err", err)
		os.Exit(1)
	}
	log.Info("seeded instruments", "count", len(toSeed))

	rngInst := rng.New(cfg.RNGSeed)
	log.Info("prng seeded", "seed", cfg.RNGSeed)

	roundController := round.New(cfg.RoundDuration(), st)
	if rs, ok, err := st.LoadRoundState(ctx); err != nil {
		log.Warn("failed to load round state", "err", err)
	} else if ok {
		roundController.Restore(rs, time.Now())
		log.Info("restored round state", "status", rs.Status)
	}

	opsMgr := opsstream.NewManager(cfg.ObserverSendBuffer, log)
	opsHandler := opsstream.NewHandler(opsMgr, log)

	marketSim := market.New(st, roundController, rngInst, cfg.TickInterval(), opsMgr, log)
	executor := trade.New(st, roundController)
	querySvc := query.New(st)
	newsGateway := news.New(cfg.NewsUpstreamURL)

	httpServer := httpapi.New(st, querySvc, executor, roundController, newsGateway, opsHandler, opsMgr, cfg.OrganizerSecret, cfg.InitialCash)

	mux := http.NewServeMux()
	httpServer.Register(mux)

	go marketSim.Run(ctx)
	go store.RunRetention(ctx, st, cfg.TradeRetentionDays, log)
	go snapshotRoundState(ctx, roundController, st, cfg.SnapshotIntervalSec, log)

	addr := cfg.Host + ":" + cfg.Port
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("http server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "err", err)
		os.Exit(1)
	}

	log.Info("tradefloor stopped")
}

// openStore picks the MongoDB-backed store, or the in-process MemoryStore
// when DB_PATH selects the embedded backend.
func openStore(ctx context.Context, dbPath string) (store.Store, error) {
	if dbPath == ":memory:" {
		return store.NewMemoryStore(), nil
	}
	return store.Open(ctx, dbPath)
}

// snapshotRoundState periodically persists the round controller's state so a
// restart can resume an in-flight round instead of losing it.
func snapshotRoundState(ctx context.Context, rc *round.Controller, st store.Store, intervalSec int, log *slog.Logger) {
	if intervalSec <= 0 {
		return
	}
	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := rc.Snapshot(time.Now())
			rs := store.RoundState{Status: string(snap.Status), Deadline: snap.Deadline, RemainingOnPause: snap.Remaining}
			if err := st.SaveRoundState(ctx, rs); err != nil {
				log.Warn("round state snapshot failed", "err", err)
			}
		}
	}
}
