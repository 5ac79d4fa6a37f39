// Package bootstrap assembles the notifier from a loaded Config. Both the
// Lambda entrypoint and `trailctl serve` build their pipeline here so the two
// never drift apart.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"trailnotify/internal/config"
	"trailnotify/internal/notifications/slack"
	"trailnotify/internal/notifier"
	"trailnotify/internal/rules"
	"trailnotify/internal/telemetry"
	"trailnotify/internal/types"
)

// Options adjust the assembly for local use.
type Options struct {
	// DryRun logs the outbound message instead of posting it, and disables
	// metrics.
	DryRun bool

	// CloudWatch overrides the metrics client. When nil and metrics are
	// enabled, one is created from the default AWS credential chain.
	CloudWatch telemetry.CloudWatchClient
}

// Components is the assembled pipeline.
type Components struct {
	Notifier *notifier.Notifier
	Rules    []rules.Rule
	Sender   slack.Sender
	Metrics  telemetry.BatchMetrics
}

// Build compiles the rule table and wires classifier, formatter, sender and
// metrics from cfg.
func Build(ctx context.Context, cfg *config.Config, logger types.Logger, opts Options) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config must not be nil")
	}
	if logger == nil {
		logger = types.NopLogger{}
	}

	table, err := rules.LoadTable(cfg.Trail.ResourceName)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load rule table: %w", err)
	}

	formatter := slack.NewAttachmentFormatter(slack.FormatterConfig{
		AccountName:  cfg.Trail.AccountName,
		SearchPrefix: cfg.Trail.SearchPrefix,
		FooterIcon:   cfg.Webhook.FooterIcon,
	})

	var sender slack.Sender
	if opts.DryRun {
		sender = &slack.LogDispatcher{Channel: cfg.Slack.Channel, Logger: logger}
	} else {
		d, err := slack.NewDispatcher(slack.DispatcherConfig{
			HookURL:   cfg.Slack.HookURL,
			Channel:   cfg.Slack.Channel,
			UserAgent: cfg.Webhook.UserAgent,
			Timeout:   cfg.Webhook.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		sender = d
	}

	metrics, err := newMetrics(ctx, cfg, logger, opts)
	if err != nil {
		return nil, err
	}

	n := notifier.New(
		rules.NewClassifier(table),
		formatter,
		sender,
		metrics,
		logger,
		notifier.Options{AlertOnMatchError: cfg.Classifier.AlertOnMatchError},
	)

	return &Components{Notifier: n, Rules: table, Sender: sender, Metrics: metrics}, nil
}

func newMetrics(ctx context.Context, cfg *config.Config, logger types.Logger, opts Options) (telemetry.BatchMetrics, error) {
	if !cfg.Observability.MetricsEnabled || opts.DryRun {
		return telemetry.NopMetrics{}, nil
	}

	client := opts.CloudWatch
	if client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load AWS config: %w", err)
		}
		client = cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
	}
	return telemetry.NewCloudWatchBatchMetrics(client, cfg.Observability.MetricNamespace, cfg.Service, logger), nil
}
