package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bancora/internal/shared/config"
	"bancora/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize telemetry (if enabled)
	var telemetryShutdown func(context.Context) error
	if cfg.Telemetry.Enabled {
		telemetryShutdown, err = telemetry.Init(context.Background(), telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Telemetry.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		})
		if err != nil {
			log.Printf("Warning: telemetry initialization failed: %v", err)
		}
	}

	// Initialize dependencies
	deps, err := NewDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	// The worker pool always runs (the webhook handler needs it); the
	// interval loop only when the sweeper is enabled.
	if cfg.Scheduler.Enabled {
		deps.Sweeper.Start()
	} else {
		log.Println("Sweeper is disabled, starting worker pool only")
		deps.Sweeper.Pool().Start()
	}

	// Setup routes and start servers
	handler := SetupRoutes(deps, cfg)
	srv, redirectSrv := StartServers(NewServerConfigFromConfig(handler, cfg))

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	GracefulShutdown(srv, redirectSrv, deps.Sweeper, 30*time.Second)

	if telemetryShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetryShutdown(ctx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}

	return nil
}
