// Package config loads the notifier configuration once at cold start.
//
// Values are resolved in priority order:
//
//	OS environment -> .env file -> SSM Parameter Store (<VAR>_SSM_PARAM)
//
// A missing required value or an invalid one fails the load; the Lambda
// entrypoint treats that as fatal.
package config

import (
	"time"

	"trailnotify/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the immutable process configuration. Constructors receive the
// sub-struct they need rather than the whole value.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"prod" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"cloudtrail-cis-notifier"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Slack         SlackConfig
	Trail         TrailConfig
	Webhook       WebhookConfig
	Classifier    ClassifierConfig
	Observability ObservabilityConfig
	AWS           AWSConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// SlackConfig is the incoming webhook target. HOOK_URL is usually resolved
// from SSM through HOOK_URL_SSM_PARAM.
type SlackConfig struct {
	HookURL SecretString `envconfig:"HOOK_URL" validate:"required,url"`
	Channel string       `envconfig:"SLACK_CHANNEL" validate:"required"`
}

// TrailConfig describes the monitored account and the notifier's own
// resources.
type TrailConfig struct {
	AccountName  string `envconfig:"ACCOUNT_NAME"`
	SearchPrefix string `envconfig:"SEARCH_PREFIX" validate:"required,url"`
	// ResourceName is the name shared by the notifier function and its log
	// groups (/aws/lambda/<name>, /aws/cloudtrail/<name>).
	ResourceName string `envconfig:"RESOURCE_NAME" validate:"required"`
}

// WebhookConfig holds settings for outbound webhook delivery.
type WebhookConfig struct {
	UserAgent  string        `envconfig:"WEBHOOK_USER_AGENT" default:"CloudTrail-CIS-Notifier/1.0"`
	Timeout    time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s" validate:"gt=0"`
	FooterIcon string        `envconfig:"FOOTER_ICON_URL" default:"https://a0.awsstatic.com/main/images/logos/aws_logo_smile_1200x630.png" validate:"url"`
}

// ClassifierConfig holds the classification failure policy.
type ClassifierConfig struct {
	AlertOnMatchError bool `envconfig:"ALERT_ON_MATCH_ERROR" default:"true"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsEnabled  bool   `envconfig:"METRICS_ENABLED" default:"true"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"CloudTrailCISNotifier"`
}

// AWSConfig holds regional settings for the SDK clients.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`
	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// IsLocal reports whether the process runs outside AWS.
func (c *Config) IsLocal() bool {
	return c.Environment == localEnv
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
