package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guardpost/internal/logger"
)

var (
	// EventsConsumed counts inbound events by type.
	EventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardpost_events_consumed_total",
		Help: "Inbound gateway events consumed, by event type.",
	}, []string{"type"})

	// ParseFailures counts envelopes that could not be parsed.
	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardpost_parse_failures_total",
		Help: "Inbound envelopes dropped due to parse errors.",
	})

	// Detections counts detection hits by kind.
	Detections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardpost_detections_total",
		Help: "Detection hits, by kind (bot, spam, rule, raid).",
	}, []string{"kind"})

	// ActionsRequested counts emitted moderation action requests by kind.
	ActionsRequested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardpost_actions_requested_total",
		Help: "Moderation action requests emitted, by action kind.",
	}, []string{"kind"})

	// ActionFailures counts executor-reported failures by result.
	ActionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardpost_action_failures_total",
		Help: "Executor-reported action failures, by result.",
	}, []string{"result"})

	// VerificationOutcomes counts terminal verification transitions.
	VerificationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guardpost_verification_outcomes_total",
		Help: "Verification challenge outcomes (verified, failed, expired).",
	}, []string{"outcome"})

	// RaidLockdowns counts raid lockdown activations.
	RaidLockdowns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "guardpost_raid_lockdowns_total",
		Help: "Raid lockdowns engaged.",
	})
)

// Serve exposes /metrics on addr. Blocks until the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Infof("Metrics endpoint listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
