package types

import "log/slog"

const redacted = "[redacted]"

// SecretString holds a credential such as the Slack webhook URL. Every
// rendering path (fmt, JSON, slog) prints a placeholder; Unmask is the only
// way to read the value and should only feed the HTTP client.
type SecretString string

func (s SecretString) String() string { return redacted }

// MarshalJSON keeps the secret out of config dumps and harness responses.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value { return slog.StringValue(redacted) }

// IsZero reports whether no secret was configured.
func (s SecretString) IsZero() bool { return s == "" }

// Unmask returns the plaintext value.
func (s SecretString) Unmask() string { return string(s) }
