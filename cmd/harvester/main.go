package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"usage-harvester/internal/api"
	"usage-harvester/internal/config"
	"usage-harvester/internal/fetcher"
	"usage-harvester/internal/gateway"
	"usage-harvester/internal/harvest"
	"usage-harvester/internal/observability"
	"usage-harvester/internal/storage/adapters"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	obs := observability.NewProvider(observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
	})
	logger := obs.Logger("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "Starting harvester", observability.Fields{
		"service":     cfg.ServiceName,
		"environment": cfg.Environment,
		"gateway":     cfg.GatewayURL,
		"interval":    cfg.HarvestInterval.String(),
	})

	orchestrator := buildOrchestrator(cfg, obs)

	server := api.NewServer(cfg.ListenAddr, orchestrator, obs.Registry(), obs.Logger("api"))
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Admin server failed", err, nil)
			os.Exit(1)
		}
	}()

	runLoop(ctx, cfg, orchestrator, logger)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Admin server shutdown failed", err, nil)
	}
	logger.Info(context.Background(), "Harvester stopped", nil)
}

// buildOrchestrator wires the gateway client, the core components and
// the optional archive into one orchestrator.
func buildOrchestrator(cfg config.Config, obs *observability.Provider) *harvest.Orchestrator {
	gw := gateway.NewClient(cfg, obs.Logger("gateway"), obs.Metrics("gateway"))

	registry := harvest.NewFetcherRegistry()
	registry.Register(fetcher.ServiceType, fetcher.NewFactory(cfg.HTTPTimeout, cfg.UserAgent))

	archive, err := adapters.New(cfg, obs.Logger("archive"), obs.Metrics("archive"))
	if err != nil {
		log.Fatalf("Failed to initialize archive: %v", err)
	}

	return harvest.NewOrchestrator(
		cfg,
		gw,
		harvest.NewSessionManager(gw, cfg, obs.Logger("session"), obs.Metrics("session")),
		harvest.NewProviderCatalog(gw, cfg, obs.Logger("catalog"), obs.Metrics("catalog")),
		harvest.NewPlanner(gw, cfg, obs.Logger("planner"), obs.Metrics("planner")),
		harvest.NewUpserter(gw, obs.Logger("upserter"), obs.Metrics("upserter")),
		registry,
		archive,
		obs.Logger("orchestrator"),
		obs.Metrics("orchestrator"),
	)
}

// runLoop runs once at startup, then on every interval tick until the
// process context is cancelled. A zero interval disables the timer so
// runs only happen at startup and via the admin API.
func runLoop(ctx context.Context, cfg config.Config, orchestrator *harvest.Orchestrator, logger observability.Logger) {
	if err := orchestrator.Run(ctx); err != nil {
		logger.Error(ctx, "Harvesting run failed", err, nil)
	}

	if cfg.HarvestInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(cfg.HarvestInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := orchestrator.Run(ctx); err != nil {
				logger.Error(ctx, "Harvesting run failed", err, nil)
			}
		}
	}
}
