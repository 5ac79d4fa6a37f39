// Package main is the entrypoint for the CloudTrail CIS notifier Lambda.
//
// The function is subscribed to the CloudTrail log group. Each invocation
// receives one CloudWatch Logs subscription batch, classifies every event
// against the CIS section 3 rule table and posts at most one Slack message.
//
// Cold Start (main):
//  1. Load configuration (HOOK_URL usually arrives via HOOK_URL_SSM_PARAM).
//  2. Initialize the structured logger at LOG_LEVEL.
//  3. Compile the rule table and build formatter, dispatcher and metrics.
//  4. Register the handler and call lambda.Start.
//
// A configuration error is fatal: the process exits before lambda.Start so
// the failure is visible as an init error rather than as silent drops.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"trailnotify/internal/bootstrap"
	"trailnotify/internal/config"
	"trailnotify/internal/logging"
)

func main() {
	// Until LOG_LEVEL is known, log at info.
	initLogger := logging.New(os.Stdout, "info")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		initLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel).With(
		slog.String("service", cfg.Service),
		slog.String("version", cfg.Build.Version),
	)
	logger.Info("notifier initializing (cold start)", "environment", cfg.Environment)

	components, err := bootstrap.Build(context.Background(), cfg, logging.NewAdapter(logger), bootstrap.Options{})
	if err != nil {
		logger.Error("failed to build notifier", "error", err)
		os.Exit(1)
	}

	logger.Info("notifier initialized",
		"rules", len(components.Rules),
		"channel", cfg.Slack.Channel,
		"resource_name", cfg.Trail.ResourceName,
		"alert_on_match_error", cfg.Classifier.AlertOnMatchError,
		"metrics_enabled", cfg.Observability.MetricsEnabled,
		"timeout", cfg.Webhook.Timeout.String(),
	)

	lambda.Start(components.Notifier.Handle)
}
