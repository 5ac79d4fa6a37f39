package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trailnotify/internal/bootstrap"
	"trailnotify/internal/config"
	"trailnotify/internal/harness"
	"trailnotify/internal/logging"
)

func newServeCmd() *cobra.Command {
	var (
		addr   string
		dryRun bool
		useSSM bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the notifier behind a local HTTP harness",
		Long: `Run the notifier behind a local HTTP harness.

Configuration is loaded exactly as in Lambda; APP_ENV=local with a .env file
is the usual setup. POST a CloudWatch Logs envelope to /invoke to run a batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var provider config.SecretProvider = config.NewEnvVarProvider()
			if useSSM {
				provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
			}

			cfg, err := config.LoadConfig(provider)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)

			components, err := bootstrap.Build(cmd.Context(), cfg, logging.NewAdapter(logger), bootstrap.Options{DryRun: dryRun})
			if err != nil {
				return err
			}

			srv, err := harness.NewServer(components.Notifier, components.Rules, logger, cfg.Build)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runHTTPServer(ctx, srv.Handler(), addr, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log the Slack message instead of posting it")
	cmd.Flags().BoolVar(&useSSM, "ssm", false, "Resolve <VAR>_SSM_PARAM variables from Parameter Store instead of the environment")
	return cmd
}

// runHTTPServer serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func runHTTPServer(ctx context.Context, handler http.Handler, addr string, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped cleanly")
	return nil
}
