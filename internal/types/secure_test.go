package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testHook = "https://hooks.slack.com/services/T000/B000/XXXXXXXX"

func TestSecretString_Fmt(t *testing.T) {
	s := SecretString(testHook)

	for _, verb := range []string{"%s", "%v", "%+v"} {
		out := fmt.Sprintf(verb, s)
		if strings.Contains(out, testHook) {
			t.Errorf("fmt %s leaked the hook url: %s", verb, out)
		}
		if out != redacted {
			t.Errorf("fmt %s = %q, want %q", verb, out, redacted)
		}
	}
}

func TestSecretString_JSON(t *testing.T) {
	payload := struct {
		Hook SecretString `json:"hook"`
	}{Hook: SecretString(testHook)}

	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	if strings.Contains(string(b), testHook) {
		t.Errorf("json leaked the hook url: %s", b)
	}
	if string(b) != `{"hook":"[redacted]"}` {
		t.Errorf("json = %s", b)
	}
}

func TestSecretString_Slog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("config loaded", "hook_url", SecretString(testHook))

	if strings.Contains(buf.String(), testHook) {
		t.Errorf("slog leaked the hook url: %s", buf.String())
	}
	if !strings.Contains(buf.String(), redacted) {
		t.Errorf("slog output missing placeholder: %s", buf.String())
	}
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString(testHook)
	if s.Unmask() != testHook {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testHook)
	}
	if s.IsZero() {
		t.Error("IsZero() = true for a configured secret")
	}
	if !SecretString("").IsZero() {
		t.Error("IsZero() = false for an empty secret")
	}
}
