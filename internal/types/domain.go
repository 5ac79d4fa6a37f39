package types

import "time"

// MatchErrorPrefix prefixes the alert label of a record whose classification
// failed.
const MatchErrorPrefix = "Match Error: "

// Classification is the result of evaluating the rule table against one record.
type Classification struct {
	Outcome Outcome
	RuleID  string
	Label   string
	Err     error
}

// AlertLabel returns the label an alert should carry: the rule label for a
// match, "Match Error: <detail>" for a failure, and "" when nothing matched.
func (c Classification) AlertLabel() string {
	switch c.Outcome {
	case OutcomeMatch:
		return c.Label
	case OutcomeFailure:
		if c.Err == nil {
			return MatchErrorPrefix + "unknown error"
		}
		return MatchErrorPrefix + c.Err.Error()
	default:
		return ""
	}
}

// Attachment is one Slack message attachment describing a single event.
type Attachment struct {
	Fallback   string `json:"fallback"`
	Color      string `json:"color"`
	AuthorName string `json:"author_name"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	TitleLink  string `json:"title_link"`
	Footer     string `json:"footer"`
	FooterIcon string `json:"footer_icon"`
	Timestamp  int64  `json:"ts"`
}

// AlertMessage is the single outbound notification built for a batch.
type AlertMessage struct {
	Channel     string       `json:"channel"`
	Attachments []Attachment `json:"attachments"`
}

// DeliveryResult describes what happened to one dispatch. It is informational:
// delivery failures are reported here and never as errors.
type DeliveryResult struct {
	Status            DeliveryStatus `json:"status"`
	StatusCode        int            `json:"status_code,omitempty"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Attachments       int            `json:"attachments"`
	Duration          time.Duration  `json:"duration_ns"`
}
