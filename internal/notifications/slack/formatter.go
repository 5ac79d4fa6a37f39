package slack

import (
	"fmt"
	"time"

	"trailnotify/internal/types"
)

// DefaultFooterIcon is the AWS logo shown next to every attachment footer.
const DefaultFooterIcon = "https://a0.awsstatic.com/main/images/logos/aws_logo_smile_1200x630.png"

// RootColor highlights attachments raised by the root account.
const RootColor = "#cc0000"

const (
	maxUserAgentLen = 40
	eventTimeLayout = "2006-01-02T15:04:05Z"
)

// FormatterConfig holds the per-deployment values rendered into attachments.
type FormatterConfig struct {
	// AccountName is an optional human label shown next to the account id.
	AccountName string
	// SearchPrefix is the CloudWatch Logs console URL the event id filter is
	// appended to.
	SearchPrefix string
	FooterIcon   string
}

// AttachmentFormatter renders classified records as Slack attachments.
// It performs no I/O.
type AttachmentFormatter struct {
	cfg FormatterConfig
}

// NewAttachmentFormatter creates a formatter. An empty FooterIcon falls back
// to DefaultFooterIcon.
func NewAttachmentFormatter(cfg FormatterConfig) *AttachmentFormatter {
	if cfg.FooterIcon == "" {
		cfg.FooterIcon = DefaultFooterIcon
	}
	return &AttachmentFormatter{cfg: cfg}
}

// Format builds the attachment for a record and its non-empty alert label.
// Absent or mistyped fields render as empty strings.
func (f *AttachmentFormatter) Format(rec types.Record, label string) types.Attachment {
	title := eventTitle(rec)
	user := identity(rec)

	return types.Attachment{
		Fallback:   fmt.Sprintf("AWS Event %s by %s", title, user),
		Color:      color(rec),
		AuthorName: fmt.Sprintf("%s on Account: %s", user, f.account(rec)),
		Title:      title,
		Text:       fmt.Sprintf("%s - %s", label, rec.StringOr("", "eventType")),
		TitleLink:  fmt.Sprintf("%s;filter=%%22%s%%22", f.cfg.SearchPrefix, rec.StringOr("", "eventID")),
		Footer:     footer(rec),
		FooterIcon: f.cfg.FooterIcon,
		Timestamp:  eventTimestamp(rec),
	}
}

func (f *AttachmentFormatter) account(rec types.Record) string {
	id := rec.StringOr("", "recipientAccountId")
	if f.cfg.AccountName == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", f.cfg.AccountName, id)
}

func eventTitle(rec types.Record) string {
	return fmt.Sprintf("%s - %s", rec.StringOr("", "eventName"), rec.StringOr("", "eventSource"))
}

func identity(rec types.Record) string {
	ui, ok, err := rec.Object("userIdentity")
	if err != nil || !ok {
		return "Unknown User Identity"
	}

	typ := ui.StringOr("", "type")
	switch typ {
	case "IAMUser":
		return "User " + ui.StringOr("", "userName")
	case "Root":
		return "ROOT Account"
	case "AssumedRole":
		issuer := ui.StringOr("", "sessionContext", "sessionIssuer", "type")
		p := "Assumed Role by " + issuer
		if issuer != "Root" {
			p += " " + ui.StringOr("", "sessionContext", "sessionIssuer", "userName")
		}
		return p
	default:
		return typ
	}
}

// color compares against lowercase "root". CloudTrail reports the root
// identity as "Root", so root alerts currently go out without a color.
// Matching "Root" would change alert output and needs sign-off from the
// security channel owners first.
func color(rec types.Record) string {
	if rec.StringOr("", "userIdentity", "type") == "root" {
		return RootColor
	}
	return ""
}

func footer(rec types.Record) string {
	ua := []rune(rec.StringOr("", "userAgent"))
	if len(ua) > maxUserAgentLen {
		return "Agent: " + string(ua[:maxUserAgentLen]) + "..."
	}
	return "Agent: " + string(ua)
}

// eventTimestamp converts eventTime to epoch seconds, or 0 when it is absent
// or unparseable.
func eventTimestamp(rec types.Record) int64 {
	raw := rec.StringOr("", "eventTime")
	if raw == "" {
		return 0
	}
	t, err := time.Parse(eventTimeLayout, raw)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, raw); err != nil {
			return 0
		}
	}
	return t.UTC().Unix()
}
