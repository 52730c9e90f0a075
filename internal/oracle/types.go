package oracle

// Context is the traffic summary sent to the decision oracle for one key.
type Context struct {
	Tier             string  `json:"tier"`
	Endpoint         string  `json:"endpoint"`
	RevenueWeight    float64 `json:"revenue_weight"`
	CurrentLimit     float64 `json:"current_limit"`
	CurrentRPS       float64 `json:"current_rps"`
	Utilization      float64 `json:"utilization"`
	BlockedRatio     float64 `json:"blocked_ratio"`
	SurgeProbability float64 `json:"surge_probability"`
}

// Action is the oracle's proposed direction for the limit.
type Action string

// Oracle actions.
const (
	ActionUp   Action = "up"
	ActionDown Action = "down"
	ActionSame Action = "same"
)

// Decision is a validated oracle response.
type Decision struct {
	Action             Action  `json:"action"`
	NewRPS             float64 `json:"new_rps"`
	NewBurst           int     `json:"new_burst"`
	Confidence         float64 `json:"confidence"`
	Reasoning          string  `json:"reasoning"`
	GovernanceRequired bool    `json:"governance_required"`
}

// Status is the terminal outcome of one oracle consultation. Everything but
// StatusDecision means "no decision": the caller keeps the current policy.
type Status int

// Consultation outcomes.
const (
	StatusDecision Status = iota
	StatusTimeout
	StatusTransportError
	StatusParseFailure
	StatusInvalid
)

// String returns the status label used in logs and metrics.
func (s Status) String() string {
	switch s {
	case StatusDecision:
		return "decision"
	case StatusTimeout:
		return "timeout"
	case StatusTransportError:
		return "transport_error"
	case StatusParseFailure:
		return "parse_failure"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one consultation. Decision is only
// meaningful when Status is StatusDecision.
type Result struct {
	Status   Status
	Decision Decision
	Err      error
}

// Decided reports whether the result carries a usable decision.
func (r Result) Decided() bool {
	return r.Status == StatusDecision
}
