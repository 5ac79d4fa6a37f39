package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTable(t *testing.T) {
	rs, err := LoadTable("cis-notifier")
	require.NoError(t, err)

	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		ids = append(ids, r.ID)
		assert.NotNil(t, r.Predicate, "rule %s has no compiled predicate", r.ID)
		assert.NotEmpty(t, r.Label)
	}

	assert.Equal(t, []string{
		"cis-3.1", "cis-3.2", "cis-3.3", "cis-3.4", "cis-3.5",
		"cis-3.5-notifier-code", "cis-3.5-notifier-logs",
		"cis-3.6-failed-auth", "cis-3.6",
		"cis-3.7", "cis-3.8", "cis-3.9", "cis-3.10", "cis-3.11",
		"cis-3.12", "cis-3.13", "cis-3.14", "cis-3.15",
	}, ids)
}

func TestLoadTable_EventNameCounts(t *testing.T) {
	rs, err := LoadTable("cis-notifier")
	require.NoError(t, err)

	want := map[string]int{
		"cis-3.4":  16,
		"cis-3.5":  5,
		"cis-3.7":  2,
		"cis-3.8":  9,
		"cis-3.9":  4,
		"cis-3.10": 6,
		"cis-3.11": 6,
		"cis-3.12": 6,
		"cis-3.13": 7,
		"cis-3.14": 11,
		"cis-3.15": 4,
	}
	for _, r := range rs {
		if n, ok := want[r.ID]; ok {
			assert.Len(t, r.EventNames, n, "rule %s", r.ID)
		}
	}
}

func TestLoadTableYAML_Validation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "empty document",
			doc:     `rules: []`,
			wantErr: "no rules in yaml",
		},
		{
			name:    "malformed yaml",
			doc:     "rules: [",
			wantErr: "parse rules yaml",
		},
		{
			name: "missing id",
			doc: `rules:
  - label: Something
    match: unauthorized_api`,
			wantErr: "missing id",
		},
		{
			name: "missing label",
			doc: `rules:
  - id: r1
    match: unauthorized_api`,
			wantErr: "missing label",
		},
		{
			name: "unknown match kind",
			doc: `rules:
  - id: r1
    label: Something
    match: regex`,
			wantErr: `invalid match "regex"`,
		},
		{
			name: "event_name without names",
			doc: `rules:
  - id: r1
    label: Something
    match: event_name`,
			wantErr: "event_names is required",
		},
		{
			name: "notifier_log_group without prefixes",
			doc: `rules:
  - id: r1
    label: Something
    match: notifier_log_group
    event_names: [DeleteLogGroup]`,
			wantErr: "log_group_prefixes is required",
		},
		{
			name: "empty event name",
			doc: `rules:
  - id: r1
    label: Something
    match: event_name
    event_names: ["CreateVpc", " "]`,
			wantErr: "event_names contains empty value",
		},
		{
			name: "duplicate id",
			doc: `rules:
  - id: r1
    label: One
    match: unauthorized_api
  - id: r1
    label: Two
    match: root_account_usage`,
			wantErr: `duplicate rule id "r1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTableYAML([]byte(tt.doc), "cis-notifier")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadTableYAML_TrimsFields(t *testing.T) {
	rs, err := LoadTableYAML([]byte(`rules:
  - id: "  r1 "
    label: " Custom "
    match: event_name
    event_source: " ec2.amazonaws.com "
    event_names: [RunInstances]`), "")
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, "r1", rs[0].ID)
	assert.Equal(t, "Custom", rs[0].Label)
	assert.Equal(t, "ec2.amazonaws.com", rs[0].EventSource)
}
