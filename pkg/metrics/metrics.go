package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Intake metrics
	SubmissionsAccepted *prometheus.CounterVec
	SubmissionsRejected *prometheus.CounterVec

	// Webhook delivery metrics
	DeliveryAttempts  prometheus.Counter
	DeliveryFailures  prometheus.Counter
	DeliveryExhausted prometheus.Counter
	DeliveryLatency   prometheus.Histogram

	// Fallback metrics
	FallbackNotifications *prometheus.CounterVec

	// Store metrics
	StoreOperations *prometheus.CounterVec
}

// New creates and registers all application metrics on reg. Passing a
// fresh registry keeps tests from colliding on the default one.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SubmissionsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_accepted_total",
			Help:      "Total number of submissions that passed validation and the abuse filter",
		}, []string{"form_type"}),
		SubmissionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_rejected_total",
			Help:      "Total number of submissions rejected before persistence",
		}, []string{"reason"}),
		DeliveryAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_attempts_total",
			Help:      "Total number of webhook delivery attempts",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_failures_total",
			Help:      "Total number of failed webhook delivery attempts",
		}),
		DeliveryExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_exhausted_total",
			Help:      "Total number of submissions whose delivery attempts were all exhausted",
		}),
		DeliveryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_delivery_duration_seconds",
			Help:      "Time spent delivering a submission to the webhook, including retries",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		FallbackNotifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_notifications_total",
			Help:      "Total number of fallback email notifications by outcome",
		}, []string{"outcome"}),
		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Total number of submission store operations by operation and result",
		}, []string{"operation", "result"}),
	}
}
