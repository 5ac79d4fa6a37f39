package notifier

import (
	"trailnotify/internal/telemetry"
	"trailnotify/internal/types"
)

// Summary describes what one batch produced.
// Records == Attachments + Skipped always holds.
type Summary struct {
	Records                int                   `json:"records"`
	Matched                int                   `json:"matched"`
	Skipped                int                   `json:"skipped"`
	ClassificationFailures int                   `json:"match_errors"`
	Attachments            int                   `json:"attachments"`
	Alerts                 []Alert               `json:"alerts,omitempty"`
	Delivery               *types.DeliveryResult `json:"delivery,omitempty"`
}

// Alert identifies one record that produced an attachment.
type Alert struct {
	Index   int    `json:"index"`
	RuleID  string `json:"rule_id"`
	Label   string `json:"label"`
	EventID string `json:"event_id,omitempty"`
}

// DeliveryStatus returns the dispatch status, "skipped" when nothing was sent.
func (s *Summary) DeliveryStatus() types.DeliveryStatus {
	if s.Delivery == nil {
		return types.DeliveryStatusSkipped
	}
	return s.Delivery.Status
}

// LogArgs returns the summary as structured log key/value pairs.
func (s *Summary) LogArgs() []any {
	args := []any{
		"records", s.Records,
		"matched", s.Matched,
		"skipped", s.Skipped,
		"match_errors", s.ClassificationFailures,
		"attachments", s.Attachments,
		"delivery_status", string(s.DeliveryStatus()),
	}
	if s.Delivery != nil && s.Delivery.FailureReason != "" {
		args = append(args, "delivery_failure", s.Delivery.FailureReason)
	}
	return args
}

func (s *Summary) stats() telemetry.BatchStats {
	return telemetry.BatchStats{
		Records:                s.Records,
		Matched:                s.Matched,
		Skipped:                s.Skipped,
		ClassificationFailures: s.ClassificationFailures,
		Delivery:               s.Delivery,
	}
}
