package rules

import (
	"slices"
	"strings"

	"trailnotify/internal/types"
)

// A predicate reads fields in order and stops at the first one that rules the
// record out. Absent fields never match; a present field of the wrong JSON
// type is returned as an error. Key presence checks (errorMessage, invokedBy)
// use Record.Present, so a key set to null still counts.

const consoleLogin = "ConsoleLogin"

func unauthorizedAPI(r types.Record) (bool, error) {
	code, ok, err := r.String("errorCode")
	if err != nil || !ok {
		return false, err
	}
	return strings.Contains(code, "UnauthorizedOperation") || strings.Contains(code, "AccessDenied"), nil
}

func consoleLoginWithoutMFA(r types.Record) (bool, error) {
	if ok, err := fieldEquals(r, consoleLogin, "eventName"); err != nil || !ok {
		return false, err
	}
	mfa, ok, err := r.String("additionalEventData", "MFAUsed")
	if err != nil || !ok {
		return false, err
	}
	return mfa != "Yes" && !r.Present("errorMessage"), nil
}

func rootAccountUsage(r types.Record) (bool, error) {
	if ok, err := fieldEquals(r, "Root", "userIdentity", "type"); err != nil || !ok {
		return false, err
	}
	if r.Present("userIdentity", "invokedBy") {
		return false, nil
	}
	eventType, ok, err := r.String("eventType")
	if err != nil || !ok {
		return false, err
	}
	return eventType != "AwsServiceEvent", nil
}

func consoleLoginFailedAuthentication(r types.Record) (bool, error) {
	if ok, err := fieldEquals(r, consoleLogin, "eventName"); err != nil || !ok {
		return false, err
	}
	return fieldEquals(r, "Failed authentication", "errorMessage")
}

func consoleLoginFailure(r types.Record) (bool, error) {
	if ok, err := fieldEquals(r, consoleLogin, "eventName"); err != nil || !ok {
		return false, err
	}
	return r.Present("errorMessage"), nil
}

func notifierFunctionCode(resourceName string) Predicate {
	return func(r types.Record) (bool, error) {
		if resourceName == "" {
			return false, nil
		}
		name, ok, err := r.String("eventName")
		if err != nil || !ok || !strings.Contains(name, "UpdateFunctionCode") {
			return false, err
		}
		return fieldEquals(r, resourceName, "responseElements", "functionName")
	}
}

func notifierLogGroup(source string, names, prefixes []string, resourceName string) Predicate {
	groups := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		groups = append(groups, p+resourceName)
	}
	matchName := eventNameIn(source, names)

	return func(r types.Record) (bool, error) {
		if resourceName == "" {
			return false, nil
		}
		if ok, err := matchName(r); err != nil || !ok {
			return false, err
		}
		group, ok, err := r.String("requestParameters", "logGroupName")
		if err != nil || !ok {
			return false, err
		}
		return slices.Contains(groups, group), nil
	}
}

// eventNameIn matches eventName against names, and eventSource against source
// when source is set. The source is checked first.
func eventNameIn(source string, names []string) Predicate {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.TrimSpace(n)] = struct{}{}
	}

	return func(r types.Record) (bool, error) {
		if source != "" {
			if ok, err := fieldEquals(r, source, "eventSource"); err != nil || !ok {
				return false, err
			}
		}
		name, ok, err := r.String("eventName")
		if err != nil || !ok {
			return false, err
		}
		_, hit := set[name]
		return hit, nil
	}
}

func fieldEquals(r types.Record, want string, path ...string) (bool, error) {
	got, ok, err := r.String(path...)
	if err != nil || !ok {
		return false, err
	}
	return got == want, nil
}
