// Package metrics holds the bot's Prometheus collectors. Labels are fixed
// enums (handler names, flows, outcomes) so cardinality stays bounded; ids
// never become label values.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Interactions counts inbound interactions by kind (command, component,
	// modal) and outcome (ok, error, limited, panic).
	Interactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameshare_interactions_total",
			Help: "Interactions handled, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gameshare_handler_duration_seconds",
			Help:    "Time spent in a handler.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler"},
	)

	// PromptsSent counts DM prompts by flow (share, unknown).
	PromptsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameshare_prompts_sent_total",
			Help: "DM prompts sent, by flow.",
		},
		[]string{"flow"},
	)

	SharesPosted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gameshare_shares_posted_total",
			Help: "Announcements posted to a server channel.",
		},
	)

	// RoleChanges counts reaction driven role grants/revokes.
	RoleChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gameshare_reaction_role_changes_total",
			Help: "Role changes triggered by announcement reactions, by op and outcome.",
		},
		[]string{"op", "outcome"},
	)

	PendingShares = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gameshare_pending_shares",
			Help: "Share drafts currently cached in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(Interactions, HandlerDuration, PromptsSent, SharesPosted, RoleChanges, PendingShares)
}

// ObserveSince records the time elapsed since start for handler.
func ObserveSince(handler string, start time.Time) {
	HandlerDuration.WithLabelValues(handler).Observe(time.Since(start).Seconds())
}

// Outcome maps an error to the ok/error label.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
