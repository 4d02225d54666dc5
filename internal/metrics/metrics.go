package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fitcoach_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PackagesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_packages_created_total",
			Help: "Total number of packages created from checkout",
		},
		[]string{"type"},
	)

	LedgerDebitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitcoach_ledger_debits_total",
			Help: "Total sessions debited from packages",
		},
	)

	LedgerCreditsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitcoach_ledger_credits_total",
			Help: "Total sessions credited back to packages",
		},
	)

	SessionsBookedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_sessions_booked_total",
			Help: "Total number of sessions booked",
		},
		[]string{"type", "source"},
	)

	SessionCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitcoach_session_cancellations_total",
			Help: "Total number of session cancellations",
		},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_webhook_events_total",
			Help: "Total number of webhook events processed",
		},
		[]string{"provider", "event", "status"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fitcoach_notifications_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"channel", "status"},
	)

	RemindersSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fitcoach_reminders_sent_total",
			Help: "Total number of session reminders dispatched",
		},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fitcoach_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPackageCreated(packageType string) {
	PackagesCreatedTotal.WithLabelValues(packageType).Inc()
}

func RecordLedgerDebit(count int) {
	LedgerDebitsTotal.Add(float64(count))
}

func RecordLedgerCredit(count int) {
	LedgerCreditsTotal.Add(float64(count))
}

func RecordSessionsBooked(sessionType, source string, count int) {
	SessionsBookedTotal.WithLabelValues(sessionType, source).Add(float64(count))
}

func RecordSessionCancellation() {
	SessionCancellationsTotal.Inc()
}

func RecordWebhookEvent(provider, event, status string) {
	WebhookEventsTotal.WithLabelValues(provider, event, status).Inc()
}

func RecordNotification(channel, status string) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}

func RecordReminderSent() {
	RemindersSentTotal.Inc()
}
