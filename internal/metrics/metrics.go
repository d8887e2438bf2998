package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	actionsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "actions_enqueued_total",
			Help:      "Actions queued while offline, by action type.",
		},
		[]string{"action_type"},
	)

	actionsSynced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "actions_synced_total",
			Help:      "Actions successfully replayed, by action type.",
		},
		[]string{"action_type"},
	)

	actionsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "actions_failed_total",
			Help:      "Action replay failures, by action type.",
		},
		[]string{"action_type"},
	)

	syncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "sync_runs_total",
			Help:      "Replay batches by outcome (completed, paused_auth, paused_failure).",
		},
		[]string{"outcome"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "driftq",
			Name:      "queue_depth",
			Help:      "Actions currently waiting for replay.",
		},
	)

	networkTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "network_transitions_total",
			Help:      "Detector online/offline transitions.",
		},
		[]string{"to"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftq",
			Name:      "http_requests_total",
			Help:      "Control API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			actionsEnqueued,
			actionsSynced,
			actionsFailed,
			syncRuns,
			queueDepth,
			networkTransitions,
			httpRequests,
		)
	})
}

func IncEnqueued(actionType string) {
	actionsEnqueued.WithLabelValues(actionType).Inc()
}

func IncSynced(actionType string) {
	actionsSynced.WithLabelValues(actionType).Inc()
}

func IncFailed(actionType string) {
	actionsFailed.WithLabelValues(actionType).Inc()
}

func IncSyncRun(outcome string) {
	syncRuns.WithLabelValues(outcome).Inc()
}

func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

func IncNetworkTransition(online bool) {
	to := "offline"
	if online {
		to = "online"
	}
	networkTransitions.WithLabelValues(to).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
