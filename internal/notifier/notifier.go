// Package notifier wires the CloudTrail alert pipeline together:
//
//	envelope -> decoder -> classifier -> formatter -> sender
//
// One invocation handles one batch, sequentially and in record order, and
// produces at most one outbound Slack message.
package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"trailnotify/internal/decoder"
	"trailnotify/internal/notifications/slack"
	"trailnotify/internal/telemetry"
	"trailnotify/internal/types"
)

// Classifier assigns a rule to a record.
type Classifier interface {
	Classify(rec types.Record) types.Classification
}

// Formatter renders a record and its alert label as an attachment.
type Formatter interface {
	Format(rec types.Record, label string) types.Attachment
}

// Options are the policy switches of the pipeline.
type Options struct {
	// AlertOnMatchError turns classification failures into
	// "Match Error: ..." alerts. When false they are logged and skipped.
	AlertOnMatchError bool
}

// Notifier runs the pipeline. It holds no per-batch state and is safe for
// concurrent use.
type Notifier struct {
	classifier Classifier
	formatter  Formatter
	sender     slack.Sender
	metrics    telemetry.BatchMetrics
	logger     types.Logger
	opts       Options
}

// New creates a Notifier. A nil metrics publisher disables metrics.
func New(classifier Classifier, formatter Formatter, sender slack.Sender, metrics telemetry.BatchMetrics, logger types.Logger, opts Options) *Notifier {
	if metrics == nil {
		metrics = telemetry.NopMetrics{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &Notifier{
		classifier: classifier,
		formatter:  formatter,
		sender:     sender,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
	}
}

// Handle is the Lambda handler for CloudWatch Logs subscription events.
// Only a malformed envelope is returned as an error; delivery failures are
// logged and swallowed.
func (n *Notifier) Handle(ctx context.Context, ev events.CloudwatchLogsEvent) error {
	logger := n.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("request_id", lc.AwsRequestID)
		ctx = types.WithRequestID(ctx, lc.AwsRequestID)
	}
	ctx = types.WithLogger(ctx, logger)

	if ev.AWSLogs.Data == "" {
		logger.Info("skipping: no records in event")
		return nil
	}

	if _, err := n.ProcessData(ctx, ev.AWSLogs.Data); err != nil {
		return fmt.Errorf("process cloudwatch logs event: %w", err)
	}
	return nil
}

// ProcessData decodes an awslogs.data payload and runs the pipeline over it.
// A *types.DecodeError aborts the batch before anything is classified.
func (n *Notifier) ProcessData(ctx context.Context, data string) (*Summary, error) {
	logger := n.loggerFrom(ctx)

	logData, err := decoder.DecodeLogData(data)
	if err != nil {
		logDecodeError(logger, err)
		return nil, err
	}
	logger = logger.With("log_group", logData.LogGroup, "log_stream", logData.LogStream)

	records, err := decoder.Records(logData)
	if err != nil {
		logDecodeError(logger, err)
		return nil, err
	}

	return n.ProcessRecords(types.WithLogger(ctx, logger), records), nil
}

// ProcessRecords classifies, formats and dispatches already decoded records.
func (n *Notifier) ProcessRecords(ctx context.Context, records []types.Record) *Summary {
	logger := n.loggerFrom(ctx)
	summary := &Summary{Records: len(records)}

	if len(records) == 0 {
		logger.Info("skipping: no events in data")
		return summary
	}

	attachments := make([]types.Attachment, 0, len(records))
	for i, rec := range records {
		c := n.classifier.Classify(rec)

		switch c.Outcome {
		case types.OutcomeMatch:
			summary.Matched++
		case types.OutcomeFailure:
			summary.ClassificationFailures++
			logger.Error("classification failed",
				"index", i,
				"rule_id", c.RuleID,
				"event_id", rec.StringOr("", "eventID"),
				"error", errString(c.Err),
			)
			if !n.opts.AlertOnMatchError {
				summary.Skipped++
				continue
			}
		default:
			summary.Skipped++
			continue
		}

		label := c.AlertLabel()
		attachments = append(attachments, n.formatter.Format(rec, label))
		summary.Alerts = append(summary.Alerts, Alert{
			Index:   i,
			RuleID:  c.RuleID,
			Label:   label,
			EventID: rec.StringOr("", "eventID"),
		})
	}
	summary.Attachments = len(attachments)

	if summary.Skipped > 0 {
		logger.Info("skipped events", "count", summary.Skipped)
	}

	if len(attachments) > 0 {
		summary.Delivery = n.sender.Dispatch(ctx, attachments)
	}

	n.metrics.RecordBatch(ctx, summary.stats())

	logger.Info("batch processed", summary.LogArgs()...)
	return summary
}

func (n *Notifier) loggerFrom(ctx context.Context) types.Logger {
	if l := types.LoggerFromContext(ctx); l != nil {
		return l
	}
	return n.logger
}

func logDecodeError(logger types.Logger, err error) {
	var de *types.DecodeError
	if errors.As(err, &de) {
		logger.Error("failed to decode batch",
			"stage", string(de.Stage),
			"index", de.Index,
			"event_id", de.EventID,
			"error", de.Err.Error(),
		)
		return
	}
	logger.Error("failed to decode batch", "error", err.Error())
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
