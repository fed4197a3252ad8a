package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/microsave/internal/advice"
	"github.com/Dan9191/microsave/internal/audit"
	"github.com/Dan9191/microsave/internal/config"
	"github.com/Dan9191/microsave/internal/handler"
	"github.com/Dan9191/microsave/internal/repository"
	"github.com/Dan9191/microsave/internal/risk"
	"github.com/Dan9191/microsave/internal/service"
	"github.com/Dan9191/microsave/internal/utils/email"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "microsave",
		Short: "Round-up savings and peer lending ledger",
		RunE:  func(cmd *cobra.Command, args []string) error { return serve() },
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  func(cmd *cobra.Command, args []string) error { return serve() },
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "audit",
		Short: "Run the ledger conservation check once and print the report",
		RunE:  func(cmd *cobra.Command, args []string) error { return runAudit(cmd) },
	})
	return cmd
}

func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	return logger
}

func newAuditor(cfg *config.Config, store repository.Store, logger *logrus.Logger) *audit.Auditor {
	var alerter audit.Alerter
	if cfg.AlertsEnabled() {
		alerter = email.NewSender(cfg, logger)
	}
	return audit.NewAuditor(store, alerter, logger)
}

func serve() error {
	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := newLogger(cfg.LogLevel)

	// Initialize ledger store
	store, err := repository.Open(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open ledger store: %v", err)
	}
	defer store.Close()

	// Initialize layers
	gate := risk.New(cfg, logger)
	advisor := advice.New(cfg, logger)
	svc := service.NewService(store, gate, advisor, logger, cfg)
	h := handler.NewHandler(svc, logger)
	r := handler.NewRouter(h, cfg, logger)

	if cfg.AuditSchedule != "" {
		scheduler, err := audit.Schedule(newAuditor(cfg, store, logger), cfg.AuditSchedule, time.Minute)
		if err != nil {
			logger.Fatalf("Failed to schedule ledger audit: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Errorf("Server failed: %v", err)
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Error shutting down server: %v", err)
		}
	}
	return nil
}

func runAudit(cmd *cobra.Command) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	store, err := repository.Open(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open ledger store: %w", err)
	}
	defer store.Close()

	report, err := newAuditor(cfg, store, logger).Run(cmd.Context())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if !report.Balanced {
		return fmt.Errorf("ledger is not balanced")
	}
	return nil
}
