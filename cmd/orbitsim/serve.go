package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/illum/orbitsim/pkg/animation"
	"github.com/illum/orbitsim/pkg/health"
	"github.com/illum/orbitsim/pkg/logging"
	"github.com/illum/orbitsim/pkg/metrics"
	"github.com/illum/orbitsim/pkg/network"
	"github.com/illum/orbitsim/pkg/resource"
	"github.com/illum/orbitsim/pkg/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orbit session server",
	Long: `Serve the orbit session over HTTP and WebSocket.

Routes:
  GET  /api/state              current state, quantities and labels
  GET  /api/presets            known presets
  POST /api/presets/{name}     load a preset
  POST /api/eccentricity       {"value": 0.5}
  POST /api/semi-major-axis    {"au": 1} or {"text": "1"}
  POST /api/central-mass       {"mantissa": 1.989, "exponent": 30} or text fields
  GET  /ws                     state_changed and rate_sample stream
  GET  /health, /ready         liveness and readiness
  GET  /metrics                Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides the configured one")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error(ctx, "failed to load configuration", err, "config_path", configPath)
		return err
	}
	if serveAddr != "" {
		cfg.Server.Address = serveAddr
	}

	sess := session.New(nil, logger)
	if cfg.Simulation.Preset != "" {
		if _, err := sess.LoadPreset(cfg.Simulation.Preset); err != nil {
			return fmt.Errorf("loading preset %q: %w", cfg.Simulation.Preset, err)
		}
	}

	rec, err := metrics.NewRecorder(nil)
	if err != nil {
		return err
	}
	rec.Attach(sess.EventBus)
	defer rec.Detach()

	rm := resource.NewResourceManager(cfg.Resources, logger)
	if err := rm.Start(); err != nil {
		return err
	}

	hc := health.NewHealthChecker()
	hc.AddCheck(resource.NewHealthCheck(rm))
	hc.AddCheck(health.NewMemoryHealthCheck(cfg.Resources.MaxMemoryMB, rm.MemoryUsageMB))
	if cfg.Simulation.AutoStart {
		hc.AddCheck(health.NewSamplingHealthCheck(sess.Sampling))
	}

	srv := network.NewServer(cfg, sess, network.Options{
		Logger:    logger,
		Metrics:   rec,
		Health:    hc,
		Resources: rm,
	})

	driver := animation.NewDriver(sess, animation.NewPathTransition(cfg.Simulation.CycleDuration.Std()), logger)
	defer driver.Close()

	var animating <-chan struct{}
	if cfg.Simulation.AutoStart {
		if animating, err = driver.Run(ctx, animation.NewClock(cfg.Simulation.SampleInterval.Std())); err != nil {
			return fmt.Errorf("starting animation: %w", err)
		}
	}

	if err := srv.Start(); err != nil {
		logger.Error(ctx, "failed to start server", err, "address", cfg.Server.Address)
		return err
	}
	logger.Info(ctx, "orbitsim serving",
		"address", srv.Addr(),
		"preset", cfg.Simulation.Preset,
		"animating", cfg.Simulation.AutoStart,
	)

	<-ctx.Done()
	logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "server shutdown failed", err)
	}
	if animating != nil {
		select {
		case <-animating:
		case <-shutdownCtx.Done():
		}
	}
	return rm.Shutdown(shutdownCtx)
}
