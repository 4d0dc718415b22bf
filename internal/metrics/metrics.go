// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evently_bookings_total",
			Help: "Bookings created, by resulting status",
		},
		[]string{"status"},
	)

	bookingConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evently_booking_conflicts_total",
			Help: "Rejected booking attempts, by reason",
		},
		[]string{"reason"},
	)

	idempotentReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evently_booking_replays_total",
			Help: "Booking requests answered from an earlier idempotency key",
		},
	)

	cancellations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evently_booking_cancellations_total",
			Help: "Bookings cancelled",
		},
	)

	promotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evently_waitlist_promotions_total",
			Help: "Waitlisted bookings promoted to confirmed",
		},
	)

	bookingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evently_booking_duration_seconds",
			Help:    "Time spent in the booking transaction",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"outcome"},
	)

	// HTTPRequests and HTTPDuration are fed by the request middleware.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evently_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		},
		[]string{"route", "method", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evently_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evently_stream_subscribers",
			Help: "Open server-sent event streams",
		},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "evently_notifications_dropped_total",
			Help: "Notifications dropped because a subscriber was too slow",
		},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evently_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by backend",
		},
		[]string{"backend"},
	)
)

// Recorder is the booking engine's view of the metrics.  Tests may pass
// Nop.
type Recorder interface {
	BookingCreated(status string, took time.Duration)
	BookingRejected(reason string, took time.Duration)
	BookingReplayed()
	BookingCancelled()
	Promoted(n int)
}

// Prometheus records into the package collectors.
type Prometheus struct{}

func (Prometheus) BookingCreated(status string, took time.Duration) {
	bookingsTotal.WithLabelValues(status).Inc()
	bookingDuration.WithLabelValues("created").Observe(took.Seconds())
}

func (Prometheus) BookingRejected(reason string, took time.Duration) {
	bookingConflicts.WithLabelValues(reason).Inc()
	bookingDuration.WithLabelValues("rejected").Observe(took.Seconds())
}

func (Prometheus) BookingReplayed() { idempotentReplays.Inc() }

func (Prometheus) BookingCancelled() { cancellations.Inc() }

func (Prometheus) Promoted(n int) {
	if n > 0 {
		promotions.Add(float64(n))
	}
}

// Nop discards everything.
type Nop struct{}

func (Nop) BookingCreated(string, time.Duration)  {}
func (Nop) BookingRejected(string, time.Duration) {}
func (Nop) BookingReplayed()                      {}
func (Nop) BookingCancelled()                     {}
func (Nop) Promoted(int)                          {}
