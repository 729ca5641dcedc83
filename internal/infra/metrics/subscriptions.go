package metrics

import (
	"subscription-radar/internal/domain/model"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		subscriptionsTotal,
		notificationsCreatedTotal,
	)
}

var (
	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by status.",
		},
		[]string{"status"}, // 'active', 'paused', 'canceled', 'inactive'
	)

	notificationsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Upcoming-payment notifications created by the worker.",
		},
	)
)

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusActive,
		model.SubscriptionStatusPaused,
		model.SubscriptionStatusCanceled,
		model.SubscriptionStatusInactive,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			subscriptionsTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}

func AddNotificationsCreated(n int) {
	notificationsCreatedTotal.Add(float64(n))
}
