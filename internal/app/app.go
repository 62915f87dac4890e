package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"streamloader/internal/config"
	"streamloader/internal/monitor"
	"streamloader/internal/sink"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// StartProducerApp builds the sink, monitor and producer, runs the production
// loop and shuts everything down on SIGINT/SIGTERM. A returned error means the
// producer never started or its generator failed.
func StartProducerApp(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	if err := ValidateRun(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snk, err := sink.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create %s sink: %w", cfg.SinkBackend, err)
	}
	// left open when the producer outlives the shutdown timeout
	closeSink := true
	defer func() {
		if !closeSink {
			return
		}
		if err := snk.Close(); err != nil {
			logger.Warnw("sink close failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitor.NewMetrics(reg)
	hub := monitor.NewHub(logger)
	stats := NewProductionStats()

	producer, err := NewProducer(ProducerOptions{
		Config:   cfg,
		Sink:     snk,
		Logger:   logger,
		Observer: metrics,
		Reporters: []CycleReporter{
			metrics.ObserveCycle,
			hub.PublishCycle,
			stats.Observe,
		},
	})
	if err != nil {
		return err
	}
	metrics.SetQuota(producer.Quota())

	srv := monitor.StartHealthCheck(monitor.ServerOptions{
		Addr:      cfg.MonitorAddr,
		Sink:      snk,
		Hub:       hub,
		Gatherer:  reg,
		JWTSecret: cfg.MonitorJWTSecret,
		Logger:    logger,
	})
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnw("monitor server shutdown failed", "error", err)
		}
	}()

	stats.StartSummary(ctx, cfg.SummaryInterval, logger)

	done := make(chan error, 1)
	go func() {
		done <- producer.Run(ctx)
	}()

	// --- Graceful shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Infow("signal received, shutting down producer", "signal", sig)
		cancel()
	case err := <-done:
		return err
	}

	// Wait for the loop to leave its current cycle
	err = waitForProducer(done, shutdownTimeout)
	if errors.Is(err, ErrShutdownTimeout) {
		closeSink = false
		logger.Errorw("timeout waiting for producer to stop, leaving sink open", "timeout", shutdownTimeout)
		return err
	}
	logger.Info("producer stopped gracefully")
	return err
}

const shutdownTimeout = 30 * time.Second

// ErrShutdownTimeout means the production loop was still running when the
// shutdown wait ran out.
var ErrShutdownTimeout = errors.New("producer did not stop before shutdown timeout")

func waitForProducer(done <-chan error, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrShutdownTimeout
	}
}
