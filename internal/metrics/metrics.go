package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxbook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boxbook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	EnrollmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxbook_enrollments_total",
			Help: "Total number of enrollment attempts by outcome",
		},
		[]string{"outcome"},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxbook_cancellations_total",
			Help: "Total number of cancellations",
		},
		[]string{"late"},
	)

	PromotionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxbook_waitlist_promotions_total",
			Help: "Total number of waitlist promotions",
		},
	)

	WaitlistDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxbook_waitlist_drops_total",
			Help: "Total number of waitlisted users dropped as ineligible at promotion time",
		},
	)

	CreditDebitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxbook_credit_debits_total",
			Help: "Total number of credits debited",
		},
	)

	CreditRefundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "boxbook_credit_refunds_total",
			Help: "Total number of credits refunded",
		},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxbook_notifications_sent_total",
			Help: "Total number of notifications sent",
		},
		[]string{"type", "status"},
	)

	NotifyQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "boxbook_notify_queue_length",
			Help: "Current length of the notification queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordEnrollment(outcome string) {
	EnrollmentsTotal.WithLabelValues(outcome).Inc()
}

func RecordCancellation(late bool) {
	if late {
		CancellationsTotal.WithLabelValues("true").Inc()
	} else {
		CancellationsTotal.WithLabelValues("false").Inc()
	}
}

func RecordPromotion() {
	PromotionsTotal.Inc()
}

func RecordWaitlistDrop() {
	WaitlistDropsTotal.Inc()
}

func RecordDebit() {
	CreditDebitsTotal.Inc()
}

func RecordRefund() {
	CreditRefundsTotal.Inc()
}

func RecordNotification(eventType, status string) {
	NotificationsSentTotal.WithLabelValues(eventType, status).Inc()
}
