package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	botUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicbook",
			Name:      "bot_updates_total",
			Help:      "Telegram updates by kind.",
		},
		[]string{"kind"},
	)

	catalogFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicbook",
			Name:      "catalog_fetches_total",
			Help:      "Platform catalog fetches by resource and outcome.",
		},
		[]string{"resource", "outcome"},
	)

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clinicbook",
			Name:      "appointment_submissions_total",
			Help:      "Appointment submissions by outcome.",
		},
		[]string{"outcome"},
	)

	wizardSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clinicbook",
			Name:      "wizard_sessions_started_total",
			Help:      "Booking wizard sessions started.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(botUpdates, catalogFetches, submissions, wizardSessions)
	})
}

// IncUpdate increments the Telegram update counter for a kind label.
func IncUpdate(kind string) {
	botUpdates.WithLabelValues(kind).Inc()
}

// IncCatalogFetch counts a catalog fetch, outcome is "ok" or "error".
func IncCatalogFetch(resource, outcome string) {
	catalogFetches.WithLabelValues(resource, outcome).Inc()
}

// IncSubmission counts a submission, outcome is "accepted", "rejected" or "failed".
func IncSubmission(outcome string) {
	submissions.WithLabelValues(outcome).Inc()
}

// IncWizardSession counts a started wizard session.
func IncWizardSession() {
	wizardSessions.Inc()
}
