// Package slack renders CloudTrail alerts as Slack attachments and posts
// them to an incoming webhook.
//
// Delivery is fire-and-forget: a batch produces at most one POST, failures
// are logged and reported in the DeliveryResult, and nothing is retried.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"trailnotify/internal/types"
)

// DefaultTimeout bounds a delivery when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// DeadlineMargin is kept free before the invocation deadline so the handler
// can still log and return after a slow webhook.
const DeadlineMargin = time.Second

// maxResponseBodyRead limits how much of a response body we read for error
// messages.
const maxResponseBodyRead = 4096

// Sender delivers one batch of attachments.
type Sender interface {
	Dispatch(ctx context.Context, attachments []types.Attachment) *types.DeliveryResult
}

var (
	_ Sender = (*Dispatcher)(nil)
	_ Sender = (*LogDispatcher)(nil)
)

// DispatcherConfig configures the webhook target.
type DispatcherConfig struct {
	HookURL   types.SecretString
	Channel   string
	UserAgent string
	Timeout   time.Duration
}

// Dispatcher posts AlertMessages to a Slack incoming webhook.
type Dispatcher struct {
	cfg        DispatcherConfig
	httpClient *http.Client
	logger     types.Logger
	clock      types.Clock
}

// NewDispatcher creates a Dispatcher with its own HTTP client. Per-request
// timeouts come from the context, so the client itself has none.
func NewDispatcher(cfg DispatcherConfig, logger types.Logger) (*Dispatcher, error) {
	if cfg.HookURL.IsZero() {
		return nil, fmt.Errorf("slack dispatcher: hook url is empty")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("slack dispatcher: channel is empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("slack dispatcher: logger is nil")
	}
	return NewDispatcherWithClient(cfg, &http.Client{}, logger), nil
}

// NewDispatcherWithClient creates a Dispatcher with a caller-supplied HTTP
// client. Used by tests to target an httptest server.
func NewDispatcherWithClient(cfg DispatcherConfig, httpClient *http.Client, logger types.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Dispatcher{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		clock:      types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (d *Dispatcher) SetClock(c types.Clock) {
	d.clock = c
}

// Timeout returns the delivery timeout for ctx: the configured timeout,
// shortened to the context deadline minus DeadlineMargin when that is sooner.
func (d *Dispatcher) Timeout(ctx context.Context) time.Duration {
	timeout := d.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := deadline.Sub(d.clock.Now()) - DeadlineMargin; remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

// Dispatch posts all attachments as a single message. An empty slice makes
// no network call. The result is never nil.
func (d *Dispatcher) Dispatch(ctx context.Context, attachments []types.Attachment) *types.DeliveryResult {
	if len(attachments) == 0 {
		return &types.DeliveryResult{Status: types.DeliveryStatusSkipped}
	}

	start := d.clock.Now()
	result := d.deliver(ctx, attachments)
	result.Attachments = len(attachments)
	result.Duration = d.clock.Now().Sub(start)
	return result
}

func (d *Dispatcher) deliver(ctx context.Context, attachments []types.Attachment) *types.DeliveryResult {
	timeout := d.Timeout(ctx)
	if timeout <= 0 {
		d.logger.Error("slack delivery skipped: invocation deadline too close",
			"channel", d.cfg.Channel,
			"attachments", len(attachments),
		)
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusFailed,
			FailureReason: "deadline_exceeded: no time left before invocation deadline",
		}
	}

	payload, err := json.Marshal(types.AlertMessage{Channel: d.cfg.Channel, Attachments: attachments})
	if err != nil {
		d.logger.Error("slack payload marshal failed", "error", err.Error())
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusFailed,
			FailureReason: fmt.Sprintf("marshal_error: %v", err),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.HookURL.Unmask(), bytes.NewReader(payload))
	if err != nil {
		// The error text can embed the URL, which is a credential.
		d.logger.Error("slack request build failed", "channel", d.cfg.Channel)
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusFailed,
			FailureReason: "request_error: invalid webhook url",
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		reason := networkFailureReason(ctx, err)
		d.logger.Error("server connection failed",
			"channel", d.cfg.Channel,
			"timeout", timeout.String(),
			"reason", reason,
		)
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusFailed,
			FailureReason: reason,
		}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := "server_error"
		if resp.StatusCode < 500 {
			kind = "client_error"
		}
		d.logger.Error("request failed",
			"channel", d.cfg.Channel,
			"status", resp.StatusCode,
			"reason", http.StatusText(resp.StatusCode),
			"body", truncateBody(body),
		)
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusFailed,
			StatusCode:    resp.StatusCode,
			FailureReason: fmt.Sprintf("%s_%d: %s", kind, resp.StatusCode, truncateBody(body)),
		}
	}

	if err := ValidateResponse(resp.StatusCode, body); err != nil {
		d.logger.Warn("slack soft failure on 2xx",
			"channel", d.cfg.Channel,
			"status", resp.StatusCode,
			"error", err.Error(),
		)
		return &types.DeliveryResult{
			Status:        types.DeliveryStatusFailed,
			StatusCode:    resp.StatusCode,
			FailureReason: fmt.Sprintf("soft_failure: %v", err),
		}
	}

	msgID := extractProviderMessageID(resp, d.clock)
	d.logger.Info("message posted",
		"channel", d.cfg.Channel,
		"attachments", len(attachments),
		"provider_message_id", msgID,
	)
	return &types.DeliveryResult{
		Status:            types.DeliveryStatusSent,
		StatusCode:        resp.StatusCode,
		ProviderMessageID: msgID,
	}
}

// LogDispatcher logs the message it would have sent. Used by the local
// harness in dry-run mode.
type LogDispatcher struct {
	Channel string
	Logger  types.Logger
}

// Dispatch logs the AlertMessage and reports it as sent.
func (l *LogDispatcher) Dispatch(_ context.Context, attachments []types.Attachment) *types.DeliveryResult {
	if len(attachments) == 0 {
		return &types.DeliveryResult{Status: types.DeliveryStatusSkipped}
	}
	msg := types.AlertMessage{Channel: l.Channel, Attachments: attachments}
	l.Logger.Info("dry run: message not sent", "message", msg)
	return &types.DeliveryResult{
		Status:            types.DeliveryStatusSent,
		ProviderMessageID: "dry-run",
		Attachments:       len(attachments),
	}
}
