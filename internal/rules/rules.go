// Package rules holds the ordered CIS rule table and the classifier that
// evaluates it against CloudTrail records.
package rules

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"trailnotify/internal/types"
)

const builtinRulesFile = "rules/cis.yaml"

//go:embed rules/*.yaml
var rulesFS embed.FS

// Match kinds understood by the table loader.
const (
	KindUnauthorizedAPI                  = "unauthorized_api"
	KindConsoleLoginWithoutMFA           = "console_login_without_mfa"
	KindRootAccountUsage                 = "root_account_usage"
	KindEventName                        = "event_name"
	KindNotifierFunctionCode             = "notifier_function_code"
	KindNotifierLogGroup                 = "notifier_log_group"
	KindConsoleLoginFailedAuthentication = "console_login_failed_authentication"
	KindConsoleLoginFailure              = "console_login_failure"
)

// Predicate reports whether a record satisfies a rule. A non-nil error means
// the record could not be evaluated.
type Predicate func(types.Record) (bool, error)

// Rule is one compiled row of the table.
type Rule struct {
	ID               string   `yaml:"id" json:"id"`
	Label            string   `yaml:"label" json:"label"`
	Match            string   `yaml:"match" json:"match"`
	EventSource      string   `yaml:"event_source,omitempty" json:"event_source,omitempty"`
	EventNames       []string `yaml:"event_names,omitempty" json:"event_names,omitempty"`
	LogGroupPrefixes []string `yaml:"log_group_prefixes,omitempty" json:"log_group_prefixes,omitempty"`

	Predicate Predicate `yaml:"-" json:"-"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadTable parses and compiles the embedded CIS table. resourceName is the
// notifier's own function and log group name, watched by the cis-3.5-notifier
// rules.
func LoadTable(resourceName string) ([]Rule, error) {
	b, err := rulesFS.ReadFile(builtinRulesFile)
	if err != nil {
		return nil, fmt.Errorf("read builtin rules (%s): %w", builtinRulesFile, err)
	}
	return LoadTableYAML(b, resourceName)
}

// LoadTableYAML parses, validates and compiles a rule table document.
func LoadTableYAML(b []byte, resourceName string) ([]Rule, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(b, &rf); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("no rules in yaml")
	}

	out := make([]Rule, 0, len(rf.Rules))
	seen := map[string]struct{}{}
	for _, r := range rf.Rules {
		if err := compileRule(&r, resourceName); err != nil {
			return nil, fmt.Errorf("rule %q: %w", strings.TrimSpace(r.ID), err)
		}
		if _, ok := seen[r.ID]; ok {
			return nil, fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

func compileRule(r *Rule, resourceName string) error {
	r.ID = strings.TrimSpace(r.ID)
	r.Label = strings.TrimSpace(r.Label)
	r.Match = strings.TrimSpace(r.Match)
	r.EventSource = strings.TrimSpace(r.EventSource)

	if r.ID == "" {
		return fmt.Errorf("missing id")
	}
	if r.Label == "" {
		return fmt.Errorf("missing label")
	}
	for _, n := range r.EventNames {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("event_names contains empty value")
		}
	}

	switch r.Match {
	case KindUnauthorizedAPI:
		r.Predicate = unauthorizedAPI
	case KindConsoleLoginWithoutMFA:
		r.Predicate = consoleLoginWithoutMFA
	case KindRootAccountUsage:
		r.Predicate = rootAccountUsage
	case KindConsoleLoginFailedAuthentication:
		r.Predicate = consoleLoginFailedAuthentication
	case KindConsoleLoginFailure:
		r.Predicate = consoleLoginFailure
	case KindNotifierFunctionCode:
		r.Predicate = notifierFunctionCode(resourceName)
	case KindEventName:
		if len(r.EventNames) == 0 {
			return fmt.Errorf("match %s: event_names is required", r.Match)
		}
		r.Predicate = eventNameIn(r.EventSource, r.EventNames)
	case KindNotifierLogGroup:
		if len(r.EventNames) == 0 {
			return fmt.Errorf("match %s: event_names is required", r.Match)
		}
		if len(r.LogGroupPrefixes) == 0 {
			return fmt.Errorf("match %s: log_group_prefixes is required", r.Match)
		}
		r.Predicate = notifierLogGroup(r.EventSource, r.EventNames, r.LogGroupPrefixes, resourceName)
	default:
		return fmt.Errorf("invalid match %q", r.Match)
	}
	return nil
}
