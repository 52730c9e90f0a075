// Package metrics exposes the engine's Prometheus collectors. All components
// report through the package-level vectors; the admin server serves them on
// /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "limitwarden"

var (
	// RequestsTotal counts admission outcomes by tier, endpoint, and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests seen by the admission gate.",
		},
		[]string{"tier", "endpoint", "outcome"},
	)

	// PolicyRPS reports the committed limit per key.
	PolicyRPS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policy_rps",
			Help:      "Current committed RPS limit.",
		},
		[]string{"tier", "endpoint"},
	)

	// PolicyBurst reports the committed burst capacity per key.
	PolicyBurst = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policy_burst",
			Help:      "Current committed burst capacity.",
		},
		[]string{"tier", "endpoint"},
	)

	// EffectiveRPS reports the observed admitted rate per key.
	EffectiveRPS = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "effective_rps",
			Help:      "Observed admitted requests per second.",
		},
		[]string{"tier", "endpoint"},
	)

	// BlockedRatio reports the windowed blocked share per key.
	BlockedRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blocked_ratio",
			Help:      "Blocked share of requests over the metrics window.",
		},
		[]string{"tier", "endpoint"},
	)

	// SurgeProbability reports the predictor output per key.
	SurgeProbability = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "surge_probability",
			Help:      "Surge probability in [0,1].",
		},
		[]string{"tier", "endpoint"},
	)

	// OracleCallsTotal counts oracle consultations by terminal status.
	OracleCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Decision oracle calls by outcome status.",
		},
		[]string{"status"},
	)

	// OracleConfidence reports the last accepted oracle confidence per tier.
	OracleConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "oracle_confidence",
			Help:      "Confidence reported by the last oracle decision.",
		},
		[]string{"tier"},
	)

	// DecisionsTotal counts arbiter decisions by action and disposition.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Arbiter decisions by action and whether they were applied directly.",
		},
		[]string{"tier", "endpoint", "action", "applied"},
	)

	// GovernancePending reports the number of undecided governance entries.
	GovernancePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "governance_pending",
			Help:      "Governance entries awaiting a decision.",
		},
	)

	// RevenueProtectedTotal accumulates tier-weighted revenue of admitted requests.
	RevenueProtectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_protected_total",
			Help:      "Revenue protected by admitted requests, in dollars.",
		},
		[]string{"tier"},
	)

	// RevenueLostTotal accumulates tier-weighted revenue of blocked requests.
	RevenueLostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_lost_total",
			Help:      "Revenue lost to blocked requests, in dollars.",
		},
		[]string{"tier"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the given registerer, defaulting to
// the global one. Safe to call more than once.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			RequestsTotal,
			PolicyRPS,
			PolicyBurst,
			EffectiveRPS,
			BlockedRatio,
			SurgeProbability,
			OracleCallsTotal,
			OracleConfidence,
			DecisionsTotal,
			GovernancePending,
			RevenueProtectedTotal,
			RevenueLostTotal,
		)
	})
}
