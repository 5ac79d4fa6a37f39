package rules

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailnotify/internal/types"
)

const testResource = "cis-notifier"

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	rs, err := LoadTable(testResource)
	require.NoError(t, err)
	return NewClassifier(rs)
}

func record(t *testing.T, raw string) types.Record {
	t.Helper()
	var r types.Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	return r
}

func TestClassify_EveryRule(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		ruleID string
		label  string
		event  string
	}{
		{"cis-3.1", "3.1 Unauthorized API Call", `{"errorCode":"Client.UnauthorizedOperation","eventName":"RunInstances"}`},
		{"cis-3.1", "3.1 Unauthorized API Call", `{"errorCode":"AccessDenied"}`},
		{"cis-3.2", "3.2 Console Login without MFA", `{"eventName":"ConsoleLogin","additionalEventData":{"MFAUsed":"No"},"userIdentity":{"type":"IAMUser"}}`},
		{"cis-3.3", "3.3 Root Account Used", `{"eventName":"DescribeInstances","userIdentity":{"type":"Root"},"eventType":"AwsApiCall"}`},
		{"cis-3.4", "3.4 IAM Policy Changed", `{"eventName":"PutUserPolicy","eventSource":"iam.amazonaws.com"}`},
		{"cis-3.4", "3.4 IAM Policy Changed", `{"eventName":"DetachGroupPolicy"}`},
		{"cis-3.5", "3.5 CloudTrail Configuration Changed", `{"eventName":"StopLogging","eventSource":"cloudtrail.amazonaws.com"}`},
		{"cis-3.5-notifier-code", "3.5 CIS Slack Notifier Lambda Code Changed", `{"eventName":"UpdateFunctionCode20150331v2","responseElements":{"functionName":"cis-notifier"}}`},
		{"cis-3.5-notifier-logs", "3.5 CIS Slack Notifier Log Group or Subscription Filter Changed", `{"eventSource":"logs.amazonaws.com","eventName":"DeleteSubscriptionFilter","requestParameters":{"logGroupName":"/aws/cloudtrail/cis-notifier"}}`},
		{"cis-3.5-notifier-logs", "3.5 CIS Slack Notifier Log Group or Subscription Filter Changed", `{"eventSource":"logs.amazonaws.com","eventName":"DeleteLogGroup","requestParameters":{"logGroupName":"/aws/lambda/cis-notifier"}}`},
		{"cis-3.6-failed-auth", "3.6 Console Login Failure - Failed Authentication", `{"eventName":"ConsoleLogin","errorMessage":"Failed authentication","additionalEventData":{"MFAUsed":"No"}}`},
		{"cis-3.6", "3.6 Console Login Failure", `{"eventName":"ConsoleLogin","errorMessage":"No username found in supplied account"}`},
		{"cis-3.7", "3.7 Scheduled Deletion of KMS", `{"eventSource":"kms.amazonaws.com","eventName":"ScheduleKeyDeletion"}`},
		{"cis-3.8", "3.8 S3 Bucket Policy Changed", `{"eventSource":"s3.amazonaws.com","eventName":"PutBucketPolicy"}`},
		{"cis-3.9", "3.9 Config Service Changed", `{"eventSource":"config.amazonaws.com","eventName":"StopConfigurationRecorder"}`},
		{"cis-3.10", "3.10 Security Group Changed", `{"eventName":"AuthorizeSecurityGroupIngress"}`},
		{"cis-3.11", "3.11 Network ACL Changed", `{"eventName":"CreateNetworkAclEntry"}`},
		{"cis-3.12", "3.12 Network Gateway Changed", `{"eventName":"AttachInternetGateway"}`},
		{"cis-3.13", "3.13 Network Route Table Changed", `{"eventName":"CreateRoute"}`},
		{"cis-3.14", "3.14 VPC Changed", `{"eventName":"CreateVpcPeeringConnection"}`},
		{"cis-3.15", "3.15 SNS Subscribers Changed", `{"eventSource":"sns.amazonaws.com","eventName":"Subscribe"}`},
	}

	for _, tt := range tests {
		t.Run(tt.ruleID, func(t *testing.T) {
			got := c.Classify(record(t, tt.event))
			require.Equal(t, types.OutcomeMatch, got.Outcome, "err: %v", got.Err)
			assert.Equal(t, tt.ruleID, got.RuleID)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.label, got.AlertLabel())
		})
	}
}

func TestClassify_NoMatch(t *testing.T) {
	c := newTestClassifier(t)

	tests := map[string]string{
		"empty record":                 `{}`,
		"benign event":                 `{"eventName":"CreateLogStream","eventSource":"logs.amazonaws.com"}`,
		"console login with MFA":       `{"eventName":"ConsoleLogin","additionalEventData":{"MFAUsed":"Yes"}}`,
		"console login without flag":   `{"eventName":"ConsoleLogin","additionalEventData":{}}`,
		"root invoked by service":      `{"userIdentity":{"type":"Root","invokedBy":"signin.amazonaws.com"},"eventType":"AwsApiCall"}`,
		"root service event":           `{"userIdentity":{"type":"Root"},"eventType":"AwsServiceEvent"}`,
		"root without event type":      `{"userIdentity":{"type":"Root"}}`,
		"kms name from other source":   `{"eventSource":"ec2.amazonaws.com","eventName":"DisableKey"}`,
		"sns name without source":      `{"eventName":"Subscribe"}`,
		"other function code":          `{"eventName":"UpdateFunctionCode20150331v2","responseElements":{"functionName":"billing"}}`,
		"function code without result": `{"eventName":"UpdateFunctionCode20150331v2","responseElements":null}`,
		"other log group":              `{"eventSource":"logs.amazonaws.com","eventName":"DeleteLogGroup","requestParameters":{"logGroupName":"/aws/lambda/billing"}}`,
		"unrelated error code":         `{"errorCode":"ThrottlingException"}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			got := c.Classify(record(t, raw))
			assert.Equal(t, types.OutcomeNoMatch, got.Outcome, "got %+v", got)
			assert.Empty(t, got.AlertLabel())
		})
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify(record(t, `{
		"errorCode": "AccessDenied",
		"userIdentity": {"type": "Root"},
		"eventType": "AwsApiCall",
		"eventName": "StopLogging"
	}`))
	assert.Equal(t, "cis-3.1", got.RuleID)
	assert.Equal(t, "3.1 Unauthorized API Call", got.Label)
}

func TestClassify_ErrorCodeWinsOverMistypedFields(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify(record(t, `{"errorCode":"UnauthorizedOperation","eventName":42,"userIdentity":"root"}`))
	assert.Equal(t, types.OutcomeMatch, got.Outcome)
	assert.Equal(t, "cis-3.1", got.RuleID)
}

func TestClassify_MistypedFieldIsFailure(t *testing.T) {
	c := newTestClassifier(t)

	t.Run("event name is a number", func(t *testing.T) {
		got := c.Classify(record(t, `{"eventName":42}`))
		require.Equal(t, types.OutcomeFailure, got.Outcome)
		assert.Equal(t, "cis-3.2", got.RuleID)
		assert.Equal(t, `Match Error: field "eventName": expected string, got number`, got.AlertLabel())

		var fte *types.FieldTypeError
		assert.True(t, errors.As(got.Err, &fte))
	})

	t.Run("identity is a string", func(t *testing.T) {
		got := c.Classify(record(t, `{"eventName":"DescribeRegions","userIdentity":"root"}`))
		require.Equal(t, types.OutcomeFailure, got.Outcome)
		assert.Equal(t, "cis-3.3", got.RuleID)
		assert.Equal(t, `Match Error: field "userIdentity": expected object, got string`, got.AlertLabel())
	})

	t.Run("identity type is a number", func(t *testing.T) {
		got := c.Classify(record(t, `{"eventName":"CreateTrail","userIdentity":{"type":5}}`))
		require.Equal(t, types.OutcomeFailure, got.Outcome)
		assert.Equal(t, "cis-3.3", got.RuleID)
		assert.Contains(t, got.AlertLabel(), "userIdentity.type")
	})

	t.Run("error code is an object", func(t *testing.T) {
		got := c.Classify(record(t, `{"errorCode":{"code":"AccessDenied"}}`))
		require.Equal(t, types.OutcomeFailure, got.Outcome)
		assert.Equal(t, "cis-3.1", got.RuleID)
	})
}

func TestClassify_NullKeysCountAsPresent(t *testing.T) {
	c := newTestClassifier(t)

	t.Run("null error message is a login failure", func(t *testing.T) {
		got := c.Classify(record(t, `{"eventName":"ConsoleLogin","additionalEventData":{"MFAUsed":"No"},"errorMessage":null}`))
		require.Equal(t, types.OutcomeMatch, got.Outcome)
		assert.Equal(t, "cis-3.6", got.RuleID)
		assert.Equal(t, "3.6 Console Login Failure", got.Label)
	})

	t.Run("null invokedBy is not direct root usage", func(t *testing.T) {
		got := c.Classify(record(t, `{"userIdentity":{"type":"Root","invokedBy":null},"eventType":"AwsApiCall"}`))
		assert.Equal(t, types.OutcomeNoMatch, got.Outcome)
	})
}

func TestClassify_RecoversPanics(t *testing.T) {
	c := NewClassifier([]Rule{
		{ID: "boom", Label: "Boom", Predicate: func(types.Record) (bool, error) {
			var m map[string]int
			m["x"] = 1
			return true, nil
		}},
		{ID: "never", Label: "Never", Predicate: func(types.Record) (bool, error) { return true, nil }},
	})

	got := c.Classify(types.Record{})
	require.Equal(t, types.OutcomeFailure, got.Outcome)
	assert.Equal(t, "boom", got.RuleID)

	var pe *types.PredicatePanicError
	require.True(t, errors.As(got.Err, &pe))
	assert.Equal(t, "boom", pe.RuleID)
	assert.Contains(t, got.AlertLabel(), "Match Error: rule boom panicked")
}

func TestClassify_WithoutResourceName(t *testing.T) {
	rs, err := LoadTable("")
	require.NoError(t, err)
	c := NewClassifier(rs)

	got := c.Classify(record(t, `{"eventName":"UpdateFunctionCode20150331v2","responseElements":{"functionName":""}}`))
	assert.Equal(t, types.OutcomeNoMatch, got.Outcome)

	got = c.Classify(record(t, `{"eventSource":"logs.amazonaws.com","eventName":"DeleteLogGroup","requestParameters":{"logGroupName":"/aws/lambda/"}}`))
	assert.Equal(t, types.OutcomeNoMatch, got.Outcome)
}

func TestClassifier_RulesIsACopy(t *testing.T) {
	c := newTestClassifier(t)

	rs := c.Rules()
	rs[0].Label = "mutated"
	assert.Equal(t, "3.1 Unauthorized API Call", c.Rules()[0].Label)
}
