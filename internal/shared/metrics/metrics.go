package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inspectionsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspections_submitted_total",
		Help: "Total inspection jobs submitted.",
	})
	inspectionsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inspections_succeeded_total",
		Help: "Total inspection jobs that reached succeeded.",
	})
	inspectionsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inspections_failed_total",
		Help: "Total inspection jobs that reached failed, by reason.",
	}, []string{"reason"})
	inspectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inspection_duration_seconds",
		Help:    "Time from submission to terminal state.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
	enginePollFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_poll_failures_total",
		Help: "Transient engine status poll failures.",
	})
)

// IncInspectionSubmitted increments the submitted counter.
func IncInspectionSubmitted() {
	inspectionsSubmitted.Inc()
}

// IncInspectionSucceeded increments the succeeded counter.
func IncInspectionSucceeded() {
	inspectionsSucceeded.Inc()
}

// IncInspectionFailed increments the failed counter for a reason.
func IncInspectionFailed(reason string) {
	inspectionsFailed.WithLabelValues(reason).Inc()
}

// ObserveInspectionDuration records submission-to-terminal time in seconds.
func ObserveInspectionDuration(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	inspectionDuration.Observe(seconds)
}

// IncEnginePollFailure increments the transient poll failure counter.
func IncEnginePollFailure() {
	enginePollFailures.Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
