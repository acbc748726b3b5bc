package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	delivery "github.com/FilipeAphrody/sentinel-panel/internal/delivery/http"
)

func newServeCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), version)
		},
	}
}

func runServe(ctx context.Context, version string) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	delivery.Version = version
	metrics := delivery.NewMetrics(prometheus.NewRegistry())
	e := delivery.NewRouter(a.cfg, delivery.Services{
		Sessions:  a.sessions,
		TwoFactor: a.twoFactor,
		Keys:      a.keys,
		Access:    a.access,
	}, metrics, a.logger)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting sentinel-panel", slog.String("port", a.cfg.Port), slog.String("environment", a.cfg.Environment))
		if err := e.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("server exited")
	return nil
}
