package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dental_clinic",
			Name:      "reservations_total",
			Help:      "Count of slot reservations by outcome.",
		},
		[]string{"outcome"},
	)

	requestDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dental_clinic",
			Name:      "request_decisions_total",
			Help:      "Count of staff decisions over patient requests.",
		},
		[]string{"decision"},
	)

	missedSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dental_clinic",
			Name:      "appointments_missed_total",
			Help:      "Count of appointments moved to missed by the sweep.",
		},
	)

	broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dental_clinic",
			Name:      "broadcast_messages_total",
			Help:      "Count of realtime messages by result.",
		},
		[]string{"result"},
	)

	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dental_clinic",
			Name:      "realtime_connections",
			Help:      "Open realtime connections across tenants.",
		},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dental_clinic",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2, 5},
		},
		[]string{"method", "route", "status"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservations, requestDecisions, missedSwept, broadcasts, connections, requestDuration)
	})
}

func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func IncRequestDecision(decision string) {
	requestDecisions.WithLabelValues(decision).Inc()
}

func AddMissed(n int64) {
	if n > 0 {
		missedSwept.Add(float64(n))
	}
}

func IncBroadcast(result string) {
	broadcasts.WithLabelValues(result).Inc()
}

func ConnectionOpened() {
	connections.Inc()
}

func ConnectionClosed() {
	connections.Dec()
}

func ObserveRequest(method, route, status string, elapsed time.Duration) {
	requestDuration.WithLabelValues(method, route, status).Observe(elapsed.Seconds())
}
