package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "campusres"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	reservationsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_submitted_total",
			Help:      "Reservation submissions by resource kind and result.",
		},
		[]string{"kind", "result"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_status_transitions_total",
			Help:      "Reservation status changes by target status.",
		},
		[]string{"status"},
	)

	advisoryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "advisory_outcomes_total",
			Help:      "Generative advisory results by operation and state.",
		},
		[]string{"op", "state"},
	)

	notificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Failed notification deliveries by channel.",
		},
		[]string{"channel"},
	)

	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sqlite_backups_total",
			Help:      "SQLite snapshot attempts by result.",
		},
		[]string{"result"},
	)

	botUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_updates_total",
			Help:      "Telegram updates handled by kind.",
		},
		[]string{"kind"},
	)

	botUpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telegram_update_processing_seconds",
			Help:      "Time spent processing a Telegram update.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationsSubmitted,
			statusTransitions,
			advisoryOutcomes,
			notificationFailures,
			backups,
			botUpdates,
			botUpdateDuration,
		)
	})
}

func IncHTTP(route, code string) {
	httpRequests.WithLabelValues(route, code).Inc()
}

// IncSubmitted records a Submit result: "accepted", "conflict" or "invalid".
func IncSubmitted(kind, result string) {
	reservationsSubmitted.WithLabelValues(kind, result).Inc()
}

func IncTransition(status string) {
	statusTransitions.WithLabelValues(status).Inc()
}

func IncAdvisory(op, state string) {
	advisoryOutcomes.WithLabelValues(op, state).Inc()
}

func IncNotificationFailure(channel string) {
	notificationFailures.WithLabelValues(channel).Inc()
}

func IncBackup(result string) {
	backups.WithLabelValues(result).Inc()
}

// IncBotUpdate counts a Telegram update: "command", "callback", "message" or "panic".
func IncBotUpdate(kind string) {
	botUpdates.WithLabelValues(kind).Inc()
}

func ObserveBotUpdate(d time.Duration) {
	botUpdateDuration.Observe(d.Seconds())
}
