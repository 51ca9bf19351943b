// cmd/worker-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"template-verifier/internal/common/camunda"
	"template-verifier/internal/common/config"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/common/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewFromOptions(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	log = log.WithFields(map[string]interface{}{
		"service":     cfg.App.Name,
		"environment": cfg.App.Environment,
	})

	if err := run(cfg, log); err != nil {
		log.Error("worker manager failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting worker manager", nil)

	obs := observability.New(cfg.App.Name, observability.WithSampleRatio(cfg.Observability.SampleRatio))
	defer obs.Shutdown()

	comps, err := buildComponents(ctx, cfg, obs, log)
	if err != nil {
		return err
	}
	defer comps.Close(log)

	// --- Zeebe client with retry ---
	zeebe, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: cfg.Camunda.Plaintext,
		RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
	}, log)
	if err != nil {
		return err
	}
	comps.addCloser(zeebe.Close)
	comps.pingers["zeebe"] = zeebe
	log.Info("zeebe client connected", map[string]interface{}{"gateway": cfg.Camunda.BrokerAddress})

	// --- Workers ---
	regs, err := buildRegistrations(cfg, comps, log)
	if err != nil {
		return err
	}
	workers := startWorkers(zeebe.GetClient(), enabledRegistrations(cfg, regs, log), obs, log)

	// --- Health & metrics server ---
	srv := newOpsServer(cfg.App.Name, cfg.App.Version, comps.pingers, obs.TracerProvider())
	addr := fmt.Sprintf(":%d", cfg.App.HTTPPort)
	go func() {
		log.Info("ops server listening", map[string]interface{}{"addr": addr})
		if err := srv.Start(addr); err != nil {
			log.Error("ops server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received, stopping workers", nil)

	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("ops server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("worker manager stopped gracefully", nil)
	return nil
}
