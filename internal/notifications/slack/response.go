package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"trailnotify/internal/types"
)

// knownErrors are the plain-text bodies Slack returns with HTTP 200 when an
// incoming webhook rejects a message.
var knownErrors = []string{
	"no_text",
	"channel_not_found",
	"channel_is_archived",
	"invalid_payload",
	"too_many_attachments",
	"no_service",
	"action_prohibited",
}

// ValidateResponse detects Slack soft failures: a 2xx response whose body
// is a plain-text error code or a JSON document with "ok": false.
func ValidateResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("slack: unexpected status %d", statusCode)
	}

	bodyStr := strings.TrimSpace(string(body))
	if bodyStr == "ok" || bodyStr == "" {
		return nil
	}

	var resp struct {
		OK    *bool  `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && resp.OK != nil && !*resp.OK {
		if resp.Error == "" {
			resp.Error = "unknown error"
		}
		return fmt.Errorf("slack: API error: %s", resp.Error)
	}

	for _, known := range knownErrors {
		if bodyStr == known {
			return fmt.Errorf("slack: API error: %s", bodyStr)
		}
	}
	return nil
}

// extractProviderMessageID returns Slack's request id, falling back to a
// synthetic id of the form slack-{status}-{unix}-{uuid8}.
func extractProviderMessageID(resp *http.Response, clock types.Clock) string {
	if reqID := resp.Header.Get("X-Slack-Req-Id"); reqID != "" {
		return reqID
	}
	return fmt.Sprintf("slack-%d-%d-%s", resp.StatusCode, clock.Now().Unix(), uuid.New().String()[:8])
}

func networkFailureReason(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "timeout: webhook did not respond in time"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled: invocation context canceled"
	}
	// url.Error embeds the hook URL; report only the cause.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Sprintf("network_error: %v", uerr.Err)
	}
	return "network_error: connection failed"
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
