package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricRecordsProcessed      = "RecordsProcessed"
	MetricRecordsMatched        = "RecordsMatched"
	MetricRecordsSkipped        = "RecordsSkipped"
	MetricClassificationFailure = "ClassificationFailure"
	MetricDeliveryAttempt       = "DeliveryAttempt"
	MetricDeliveryLatency       = "DeliveryLatency"

	// Dimension Keys
	DimService = "Service"
	DimResult  = "Result"

	// Metric Namespace
	MetricNamespace = "CloudTrailCISNotifier"
)
