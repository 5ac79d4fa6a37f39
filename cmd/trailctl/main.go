// Command trailctl is the operator tool for the CloudTrail CIS notifier. It
// decodes and crafts CloudWatch Logs envelopes, classifies sample events
// against the rule table and runs the pipeline behind a local HTTP harness.
//
// Usage:
//
//	trailctl decode envelope.json
//	trailctl encode records.json > envelope.json
//	trailctl classify --resource-name cis-notifier events.json
//	trailctl rules
//	APP_ENV=local trailctl serve --addr :8080 --dry-run
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
