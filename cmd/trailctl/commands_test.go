package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

// run executes the root command with args and stdin, returning stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRulesCmd(t *testing.T) {
	out, err := run(t, "", "rules")
	if err != nil {
		t.Fatalf("rules returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 19 {
		t.Fatalf("expected header + 18 rules, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "cis-3.1 ") {
		t.Errorf("first rule should be cis-3.1, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[18], "cis-3.15 ") {
		t.Errorf("last rule should be cis-3.15, got %q", lines[18])
	}
}

func TestRulesCmd_JSON(t *testing.T) {
	out, err := run(t, "", "rules", "--json")
	if err != nil {
		t.Fatalf("rules --json returned error: %v", err)
	}
	var table []map[string]any
	if err := json.Unmarshal([]byte(out), &table); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(table) != 18 || table[0]["id"] != "cis-3.1" {
		t.Errorf("unexpected table: %v", table)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	records := `[{"eventID":"e-1","eventName":"CreateVpc"},{"eventID":"e-2","errorCode":"AccessDenied"}]`

	envelope, err := run(t, records, "encode")
	if err != nil {
		t.Fatalf("encode returned error: %v", err)
	}
	var ev events.CloudwatchLogsEvent
	if err := json.Unmarshal([]byte(envelope), &ev); err != nil || ev.AWSLogs.Data == "" {
		t.Fatalf("encode did not produce an envelope: %v\n%s", err, envelope)
	}

	out, err := run(t, envelope, "decode", "-")
	if err != nil {
		t.Fatalf("decode returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d:\n%s", len(lines), out)
	}
	if lines[0] != `{"eventID":"e-1","eventName":"CreateVpc"}` {
		t.Errorf("record 0 = %s", lines[0])
	}
	if lines[1] != `{"errorCode":"AccessDenied","eventID":"e-2"}` {
		t.Errorf("record 1 = %s", lines[1])
	}
}

func TestDecodeCmd_RawFromFile(t *testing.T) {
	data, err := run(t, `{"eventID":"e-1"}`, "encode", "--raw")
	if err != nil {
		t.Fatalf("encode --raw returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "data.txt")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "", "decode", "--raw", path)
	if err != nil {
		t.Fatalf("decode --raw returned error: %v", err)
	}
	if strings.TrimSpace(out) != `{"eventID":"e-1"}` {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestDecodeCmd_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"no data", `{"awslogs":{}}`, []string{"decode"}, "no awslogs.data"},
		{"not an envelope", `nope`, []string{"decode"}, "parse envelope"},
		{"bad base64", `not base64!!`, []string{"decode", "--raw"}, "decode base64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestClassifyCmd(t *testing.T) {
	input := `[
		{"eventName":"ConsoleLogin","additionalEventData":{"MFAUsed":"No"}},
		{"eventName":"DescribeInstances"},
		{"eventName":"UpdateFunctionCode20150331v2","responseElements":{"functionName":"cis-notifier"}},
		{"errorCode":42}
	]`

	out, err := run(t, input, "classify", "--resource-name", "cis-notifier")
	if err != nil {
		t.Fatalf("classify returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d:\n%s", len(lines), out)
	}

	wants := []struct{ outcome, rule string }{
		{"match", "cis-3.2"},
		{"no_match", "-"},
		{"match", "cis-3.5-notifier-code"},
		{"failure", "cis-3.1"},
	}
	for i, want := range wants {
		fields := strings.Fields(lines[i+1])
		if len(fields) < 3 || fields[1] != want.outcome || fields[2] != want.rule {
			t.Errorf("row %d = %q, want outcome %s rule %s", i, lines[i+1], want.outcome, want.rule)
		}
	}
	if !strings.Contains(lines[4], "Match Error: ") {
		t.Errorf("failure row should carry the match error label: %q", lines[4])
	}
}

func TestClassifyCmd_SingleObject(t *testing.T) {
	out, err := run(t, `{"eventSource":"kms.amazonaws.com","eventName":"DisableKey"}`, "classify")
	if err != nil {
		t.Fatalf("classify returned error: %v", err)
	}
	if !strings.Contains(out, "cis-3.7") {
		t.Errorf("expected cis-3.7 in output:\n%s", out)
	}
}

func TestParseRecords_Errors(t *testing.T) {
	for _, input := range []string{"", "   ", "null", "[1]", "[null]", `"text"`} {
		if _, err := parseRecords([]byte(input)); err == nil {
			t.Errorf("parseRecords(%q) should fail", input)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.HasPrefix(out, "trailctl dev") {
		t.Errorf("unexpected version output: %q", out)
	}
}
