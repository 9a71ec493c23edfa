package authprovider

import "time"

// Authentication outcomes reported to Metrics and tracing.
const (
	OutcomeCached   = "cached"
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics receives one observation per Authenticate call.
//
// Implementations must be safe for concurrent use. A nil Metrics disables
// collection (see pkg/metrics).
type Metrics interface {
	RecordAuthentication(outcome string, duration time.Duration)
}

func recordAuthentication(m Metrics, outcome string, d time.Duration) {
	if m != nil {
		m.RecordAuthentication(outcome, d)
	}
}
