package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ferrybook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code class.",
		},
		[]string{"endpoint", "code"},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created by channel.",
		},
		[]string{"channel"},
	)

	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_transitions_total",
			Help:      "Booking status changes by source and target status.",
		},
		[]string{"from", "to"},
	)

	capacityRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capacity_rejections_total",
			Help:      "Reservations rejected because a capacity class was full.",
		},
		[]string{"class"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Sweep executions by sweep and outcome.",
		},
		[]string{"sweep", "outcome"},
	)

	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Sweep execution time.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)

	refunds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refund status changes by target status.",
		},
		[]string{"status"},
	)

	notificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Operator notifications by outcome.",
		},
		[]string{"outcome"},
	)

	botCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_commands_total",
			Help:      "Operator bot commands by command and outcome.",
		},
		[]string{"command", "outcome"},
	)

	botUpdateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bot_update_processing_seconds",
			Help:      "Time spent processing one bot update.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingsCreated,
			statusTransitions,
			capacityRejections,
			sweepRuns,
			sweepDuration,
			refunds,
			notificationsSent,
			botCommands,
			botUpdateDuration,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncBookingCreated(channel string) {
	bookingsCreated.WithLabelValues(channel).Inc()
}

func IncStatusTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

func IncCapacityRejection(class string) {
	capacityRejections.WithLabelValues(class).Inc()
}

// ObserveSweep records one sweep run. Skipped runs carry no duration.
func ObserveSweep(sweep, outcome string, took time.Duration) {
	sweepRuns.WithLabelValues(sweep, outcome).Inc()
	if outcome != "skipped" {
		sweepDuration.WithLabelValues(sweep).Observe(took.Seconds())
	}
}

func IncRefund(status string) {
	refunds.WithLabelValues(status).Inc()
}

func IncNotification(outcome string) {
	notificationsSent.WithLabelValues(outcome).Inc()
}

func IncBotCommand(command, outcome string) {
	botCommands.WithLabelValues(command, outcome).Inc()
}

func ObserveBotUpdate(took time.Duration) {
	botUpdateDuration.Observe(took.Seconds())
}
