package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	proctorSessionsActive prometheus.Gauge
	proctorViolations     *prometheus.CounterVec
	gradingVerdictsTotal  *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentra_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		proctorSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentra_proctor_sessions_active",
			Help: "Number of live proctored exam sessions.",
		})

		proctorViolations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_proctor_violations_total",
			Help: "Integrity violations recorded across proctored sessions.",
		}, []string{"kind"})

		gradingVerdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentra_grading_verdicts_total",
			Help: "Graded submissions partitioned by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			proctorSessionsActive,
			proctorViolations,
			gradingVerdictsTotal,
		)
	})
}

// HTTPRequests exposes the counter for API requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for API requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the counter for API error responses.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ProctorSessionsActive exposes the live session gauge.
func ProctorSessionsActive() prometheus.Gauge {
	RegisterMetrics()
	return proctorSessionsActive
}

// ObserveViolation counts a recorded integrity violation.
func ObserveViolation(kind string) {
	RegisterMetrics()
	proctorViolations.WithLabelValues(kind).Inc()
}

// ObserveGrading counts a graded submission by outcome.
func ObserveGrading(passed, fallback bool) {
	RegisterMetrics()
	outcome := "failed"
	switch {
	case fallback:
		outcome = "fallback"
	case passed:
		outcome = "passed"
	}
	gradingVerdictsTotal.WithLabelValues(outcome).Inc()
}
