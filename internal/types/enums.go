package types

// DeliveryStatus enumerates the outcomes of a webhook dispatch.
type DeliveryStatus string

const (
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusFailed  DeliveryStatus = "failed"
	DeliveryStatusSkipped DeliveryStatus = "skipped"
)

// Outcome is the kind of result the classifier produced for one record.
type Outcome int

const (
	// OutcomeNoMatch means no rule matched; the record is skipped.
	OutcomeNoMatch Outcome = iota
	// OutcomeMatch means a rule matched and Label is set.
	OutcomeMatch
	// OutcomeFailure means a predicate could not be evaluated; Err is set.
	OutcomeFailure
)

// String returns the log/metric name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeFailure:
		return "failure"
	default:
		return "no_match"
	}
}
