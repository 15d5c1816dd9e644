package models

// Outcome tags the result of probing one plant ID
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeSoftAnomaly
	OutcomeNotFound
	OutcomeTransportError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeSoftAnomaly:
		return "soft_anomaly"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Included reports whether records with this outcome are part of the extract output
func (o Outcome) Included() bool {
	return o == OutcomeFound || o == OutcomeSoftAnomaly
}
