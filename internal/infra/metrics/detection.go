package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		detectionRunsTotal,
		detectionCandidatesTotal,
		detectionRejectedTotal,
		subscriptionsDecayedTotal,
		subscriptionsInactivatedTotal,
		detectionRunSeconds,
	)
}

var (
	detectionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_runs_total",
			Help: "Detection runs by outcome.",
		},
		[]string{"outcome"}, // 'ok', 'error', 'locked'
	)

	detectionCandidatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "detection_candidates_total",
			Help: "Total subscription candidates that passed cadence matching.",
		},
	)

	detectionRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_rejected_clusters_total",
			Help: "Clusters rejected during detection, by reason.",
		},
		[]string{"reason"},
	)

	subscriptionsDecayedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_decayed_total",
			Help: "Subscriptions whose confidence was reduced by the decay sweep.",
		},
	)

	subscriptionsInactivatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_inactivated_total",
			Help: "Subscriptions flipped inactive by the decay sweep.",
		},
	)

	detectionRunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detection_run_seconds",
			Help:    "Wall time of a single per-user detection run.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
)

func IncDetectionRun(outcome string) {
	detectionRunsTotal.WithLabelValues(outcome).Inc()
}

func AddDetectionCandidates(n int) {
	detectionCandidatesTotal.Add(float64(n))
}

func IncDetectionRejected(reason string) {
	detectionRejectedTotal.WithLabelValues(reason).Inc()
}

func AddSubscriptionsDecayed(n int) {
	subscriptionsDecayedTotal.Add(float64(n))
}

func AddSubscriptionsInactivated(n int) {
	subscriptionsInactivatedTotal.Add(float64(n))
}

func ObserveDetectionRunDuration(d time.Duration) {
	detectionRunSeconds.Observe(d.Seconds())
}
