package store

import (
	"context"
	"log/slog"
	"time"
)

// RunRetention periodically prunes trades older than retentionDays. Blocks
// until ctx is cancelled. Pass retentionDays <= 0 to disable.
func RunRetention(ctx context.Context, st Store, retentionDays int, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	if retentionDays <= 0 {
		log.Info("trade retention disabled, keeping trades forever")
		return
	}

	const interval = 1 * time.Hour
	log.Info("trade retention enabled", "retention_days", retentionDays, "interval", interval)

	prune(ctx, st, retentionDays, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune(ctx, st, retentionDays, log)
		}
	}
}

func prune(ctx context.Context, st Store, retentionDays int, log *slog.Logger) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	removed, err := st.PruneTrades(ctx, cutoff)
	if err != nil {
		log.Error("trade retention prune failed", "error", err)
		return
	}
	if removed > 0 {
		log.Info("trade retention pruned trades", "count", removed, "cutoff", cutoff.Format(time.DateOnly))
	}
}
