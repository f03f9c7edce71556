// Package metrics exposes the Prometheus counters this core emits for
// envelope decode failures, resolution outcomes, login outcomes,
// impersonation starts, and sliding renewals — wiring the prometheus/client_golang
// dependency the teacher repo carries but never used to an actual
// observability surface of its own.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EnvelopeDecodeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webauthcore",
		Name:      "envelope_decode_failures_total",
		Help:      "Envelope decode/authentication failures, by source (bearer, session_cookie, long_term_cookie).",
	}, []string{"source"})

	ResolutionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webauthcore",
		Name:      "resolution_outcomes_total",
		Help:      "Credential resolution outcomes, by path (bearer, session_cookie, long_term_cookie, synthesize, none).",
	}, []string{"path"})

	LoginOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webauthcore",
		Name:      "login_outcomes_total",
		Help:      "UnifiedLogin outcomes, by result (success, login_failure, policy_error, backend_error).",
	}, []string{"result"})

	ImpersonationStarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "webauthcore",
		Name:      "impersonation_starts_total",
		Help:      "Number of successful logins that began an impersonation session.",
	})

	SlidingRenewals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "webauthcore",
		Name:      "sliding_renewals_total",
		Help:      "Number of times the resolver extended expires under the sliding-expiration rule.",
	})
)
