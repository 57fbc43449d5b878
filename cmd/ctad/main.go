// Command ctad launches the CTA strategy engine daemon against the built-in
// simulated venue.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"

	"github.com/quantfold/cta/config"
	"github.com/quantfold/cta/internal/engine"
	"github.com/quantfold/cta/internal/gateway/paper"
	"github.com/quantfold/cta/internal/persistence"
	"github.com/quantfold/cta/internal/persistence/postgres"
	"github.com/quantfold/cta/internal/strategy"
	"github.com/quantfold/cta/internal/strategy/strategies"
)

const (
	shutdownTimeout       = 30 * time.Second
	startPollInterval     = 200 * time.Millisecond
	metricsReadHeaderTime = 5 * time.Second
)

func main() {
	cfgPath := flag.String("config", "", "Path to YAML configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stderr, "[ctad] ", log.LstdFlags|log.Lmsgprefix)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.Printf("configuration initialised: env=%s, symbols=%d", cfg.Environment, len(cfg.Paper.Symbols))

	store, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("initialise store: %v", err)
	}
	defer closeStore()

	venue, err := paper.New(paper.Options{
		Symbols:      cfg.Paper.Symbols,
		TickInterval: cfg.Paper.TickInterval,
		Seed:         cfg.Paper.Seed,
		Logger:       log.New(os.Stderr, "[paper] ", log.LstdFlags|log.Lmsgprefix),
	})
	if err != nil {
		logger.Fatalf("initialise venue: %v", err)
	}

	registry := strategy.NewRegistry()
	if err := strategies.RegisterAll(registry); err != nil {
		logger.Fatalf("register strategies: %v", err)
	}
	logger.Printf("strategy classes registered: %d", len(registry.Names()))

	eng, err := engine.New(engine.Config{
		OrderRate:      cfg.Engine.OrderRate,
		OrderBurst:     cfg.Engine.OrderBurst,
		InitQueueDepth: cfg.Engine.InitQueueDepth,
	}, venue, nil, store, registry, nil, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatalf("initialise engine: %v", err)
	}

	if err := eng.Restore(ctx); err != nil {
		logger.Fatalf("restore strategies: %v", err)
	}
	logger.Printf("strategy instances restored: %d", len(eng.StrategyNames()))

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() { venue.Run(ctx) })
	lifecycle.Go(func() { pumpTicks(ctx, venue, eng) })
	lifecycle.Go(func() { pumpOrders(ctx, venue, eng) })
	lifecycle.Go(func() { pumpTrades(ctx, venue, eng) })

	metricsServer := startMetricsServer(&lifecycle, logger, cfg.Metrics.Addr)

	eng.InitAll()
	lifecycle.Go(func() { startWhenInited(ctx, eng) })

	logger.Print("ctad started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("metrics server shutdown: %v", err)
		}
	}
	venue.Stop()
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Printf("engine shutdown: %v", err)
	}
	lifecycle.Wait()
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

// buildStore selects Postgres when a DSN is configured and runs migrations,
// falling back to the in-memory store otherwise.
func buildStore(ctx context.Context, cfg config.Settings, logger *log.Logger) (persistence.Store, func(), error) {
	if cfg.Database.DSN == "" {
		logger.Print("no database configured, using in-memory store")
		return persistence.NewMemoryStore(), func() {}, nil
	}
	if err := postgres.Migrate(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir, logger); err != nil {
		return nil, nil, err
	}
	store, err := postgres.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func pumpTicks(ctx context.Context, venue *paper.Gateway, eng *engine.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-venue.Ticks():
			eng.ProcessTick(tick)
		}
	}
}

func pumpOrders(ctx context.Context, venue *paper.Gateway, eng *engine.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case order := <-venue.Orders():
			eng.ProcessOrder(order)
		}
	}
}

func pumpTrades(ctx context.Context, venue *paper.Gateway, eng *engine.Engine) {
	for {
		select {
		case <-ctx.Done():
			return
		case trade := <-venue.Trades():
			eng.ProcessTrade(trade)
		}
	}
}

// startWhenInited starts every strategy once its asynchronous initialization
// completes.
func startWhenInited(ctx context.Context, eng *engine.Engine) {
	pending := make(map[string]struct{})
	for _, name := range eng.StrategyNames() {
		pending[name] = struct{}{}
	}
	ticker := time.NewTicker(startPollInterval)
	defer ticker.Stop()
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name := range pending {
				status, ok := eng.Status(name)
				if !ok {
					delete(pending, name)
					continue
				}
				if status.Inited {
					_ = eng.StartStrategy(name)
					delete(pending, name)
				}
			}
		}
	}
}

func startMetricsServer(lifecycle *conc.WaitGroup, logger *log.Logger, addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{ //nolint:exhaustruct
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTime,
	}
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server: %v", err)
		}
	})
	logger.Printf("metrics listening on %s", addr)
	return server
}
