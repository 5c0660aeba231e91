package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// Retention periodically archives ticks older than the retention cutoff to
// object storage as JSONL and then purges them from the primary store. The
// purge only happens after a successful upload.
type Retention struct {
	store         domain.TickStore
	writer        domain.BlobWriter
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger
}

// NewRetention creates a Retention job. interval controls how often a run is
// attempted; a typical deployment uses 24h.
func NewRetention(store domain.TickStore, writer domain.BlobWriter, retentionDays int, interval time.Duration, logger *slog.Logger) *Retention {
	return &Retention{
		store:         store,
		writer:        writer,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With(slog.String("component", "retention")),
	}
}

// Run executes archive runs on the configured interval until ctx is
// cancelled. A failed run is logged and retried on the next interval.
func (r *Retention) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("retention job started",
		slog.Int("retention_days", r.retentionDays),
		slog.Duration("interval", r.interval),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("retention run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce archives and purges everything older than the cutoff.
func (r *Retention) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(r.retentionDays) * 24 * time.Hour)

	ticks, err := r.store.ListBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: list ticks before %v: %w", cutoff, err)
	}
	if len(ticks) == 0 {
		r.logger.Info("retention: nothing to archive", slog.Time("cutoff", cutoff))
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, t := range ticks {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("retention: encode tick: %w", err)
		}
	}

	key := fmt.Sprintf("archive/ticks/%s/ticks-%d.jsonl",
		cutoff.Format("2006/01/02"), time.Now().UTC().Unix())
	if err := r.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("retention: upload %s: %w", key, err)
	}

	deleted, err := r.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("retention: purge before %v: %w", cutoff, err)
	}

	r.logger.Info("retention run complete",
		slog.Int("archived", len(ticks)),
		slog.Int64("purged", deleted),
		slog.String("object", key),
	)
	return nil
}
