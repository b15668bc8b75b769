package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/axellelanca/portfolio-payments/cmd"
	"github.com/axellelanca/portfolio-payments/internal/api"
	"github.com/axellelanca/portfolio-payments/internal/logging"
	"github.com/axellelanca/portfolio-payments/internal/monitor"
	"github.com/axellelanca/portfolio-payments/internal/services"
	"github.com/axellelanca/portfolio-payments/internal/workers"
)

const shutdownTimeout = 10 * time.Second

// RunServerCmd représente la commande 'run-server' de Cobra.
// C'est le point d'entrée pour lancer le serveur de l'application.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Lance le serveur HTTP des dons et des liens d'affiliation.",
	Long: `Cette commande initialise la base de données, les passerelles Stripe et
PayPal configurées, les workers de clics (analytics.async) et le moniteur des
liens d'affiliation (monitor.enabled), puis lance le serveur HTTP.`,
	RunE: runServer,
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}

func runServer(_ *cobra.Command, _ []string) error {
	app, err := cmd.NewApp()
	if err != nil {
		return err
	}
	defer app.Close()
	cfg, logger := app.Config, app.Logger

	var recorder services.ClickRecorder
	var dispatcher *workers.Dispatcher
	if cfg.Analytics.Async {
		dispatcher = workers.StartClickWorkers(cfg.Analytics.WorkerCount, cfg.Analytics.BufferSize, app.Clicks, logger)
		recorder = dispatcher
	}
	svc := app.Services(recorder)

	var linkMonitor *monitor.AffiliateLinkMonitor
	if cfg.Monitor.Enabled {
		interval := time.Duration(cfg.Monitor.IntervalMinutes) * time.Minute
		linkMonitor = monitor.NewAffiliateLinkMonitor(app.Products, interval, logger)
		if err := linkMonitor.Start(); err != nil {
			return err
		}
	}

	if logging.ParseLevel(cfg.Log.Level) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestID(), api.RequestLogger(logger))
	api.SetupRoutes(router, svc, cfg.Server.AdminToken, logger)
	if cfg.Server.AdminToken == "" {
		logger.Warn("server.admin_token not set, report and product routes are disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if linkMonitor != nil {
		if err := linkMonitor.Stop(); err != nil {
			logger.Error("monitor shutdown failed", "error", err)
		}
	}
	if dispatcher != nil {
		dispatcher.Close()
	}
	logger.Info("server stopped")
	return nil
}
