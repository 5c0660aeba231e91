package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/a7351220/BINANCE-TRADE/internal/book"
	"github.com/a7351220/BINANCE-TRADE/internal/feed"
	"github.com/a7351220/BINANCE-TRADE/internal/pipeline"
	"github.com/a7351220/BINANCE-TRADE/internal/server"
	"github.com/a7351220/BINANCE-TRADE/internal/server/handler"
	"github.com/a7351220/BINANCE-TRADE/internal/server/ws"
)

// StreamMode runs ingestion only: the exchange feed drives the pipeline,
// ticks are persisted and published on the bus, but no HTTP surface is
// exposed. Pair it with one or more server-mode processes consuming the bus.
func (a *App) StreamMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting stream mode")

	g, ctx := errgroup.WithContext(ctx)

	fanout := pipeline.NewFanOut(deps.TickStore, deps.TickCache, deps.SignalBus, a.logger)
	proc := pipeline.NewProcessor(book.NewRegistry(), fanout, a.cfg.Indicator.RangePct, nil, a.logger)

	a.startFeed(ctx, g, proc)
	a.startRetention(ctx, g, deps)

	return g.Wait()
}

// ServerMode runs the HTTP API and WebSocket hub without an exchange feed.
// Live payloads are relayed from the Redis bus, so a stream-mode process must
// be publishing for the hub to have anything to say. The anomaly endpoint is
// unavailable in this mode because the detector state lives in the ingesting
// process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(a.logger)
	if deps.SignalBus != nil {
		hub.AttachBus(deps.SignalBus, pipeline.ChannelTicks, pipeline.ChannelAnomalies)
	} else {
		a.logger.WarnContext(ctx, "server mode without redis: websocket clients will receive nothing")
	}
	g.Go(func() error {
		return hub.Run(ctx)
	})

	a.startHTTPServer(ctx, g, deps, hub, nil)

	return g.Wait()
}

// FullMode runs ingestion and the HTTP surface in one process. The hub is
// fed directly by the pipeline, and the anomaly endpoint serves live detector
// state.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	fanout := pipeline.NewFanOut(deps.TickStore, deps.TickCache, deps.SignalBus, a.logger)
	proc := pipeline.NewProcessor(book.NewRegistry(), fanout, a.cfg.Indicator.RangePct, nil, a.logger)

	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(a.logger)
		fanout.Attach(hub)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	a.startFeed(ctx, g, proc)
	a.startRetention(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, hub, proc)
	}

	return g.Wait()
}

// startFeed adds the exchange feed goroutine to the errgroup, wired to the
// given processor.
func (a *App) startFeed(ctx context.Context, g *errgroup.Group, proc *pipeline.Processor) {
	wsFeed := feed.NewBinanceFeed(
		a.cfg.Binance.WsURL,
		a.cfg.Binance.Symbols,
		proc.HandleDepth,
		proc.HandleTrade,
		a.logger,
	)
	g.Go(func() error {
		defer wsFeed.Close()
		return wsFeed.Run(ctx)
	})
}

// startRetention adds the archive job goroutine when archiving is enabled and
// both the store and the blob writer are wired.
func (a *App) startRetention(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Archive.Enabled {
		return
	}
	if deps.TickStore == nil || deps.BlobWriter == nil {
		a.logger.WarnContext(ctx, "archive enabled but store or blob writer missing, skipping retention job")
		return
	}

	job := pipeline.NewRetention(
		deps.TickStore,
		deps.BlobWriter,
		a.cfg.Archive.RetentionDays,
		time.Duration(a.cfg.Archive.IntervalHours)*time.Hour,
		a.logger,
	)
	g.Go(func() error {
		return job.Run(ctx)
	})
}

// startHTTPServer adds the HTTP server goroutines to the errgroup. anomalies
// may be nil when no detector runs in this process; the anomaly endpoint then
// answers 503.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	hub *ws.Hub,
	anomalies handler.AnomalySource,
) {
	defaultSymbol := "btcusdt"
	if len(a.cfg.Binance.Symbols) > 0 {
		defaultSymbol = a.cfg.Binance.Symbols[0]
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health: handler.NewHealthHandler(),
			Market: handler.NewMarketHandler(deps.TickStore, deps.TickCache, anomalies, defaultSymbol, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			a.logger.Warn("http server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})
}
