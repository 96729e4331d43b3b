package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal  *prometheus.CounterVec
	responsesTotal     *prometheus.CounterVec
	upvoteRetriesTotal prometheus.Counter
	liveChangesTotal   prometheus.Counter
	wsConnections      *prometheus.GaugeVec
	synthesisTotal     *prometheus.CounterVec
	registerOnce       sync.Once
)

// Register initializes Prometheus metrics on the default registry.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepoll",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the API.",
		}, []string{"method", "path", "status"})
		responsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepoll",
			Name:      "responses_submitted_total",
			Help:      "Responses accepted, by activity type.",
		}, []string{"type"})
		upvoteRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "livepoll",
			Name:      "upvote_retries_total",
			Help:      "Upvote toggles retried after a write conflict.",
		})
		liveChangesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "livepoll",
			Name:      "live_pointer_changes_total",
			Help:      "Live pointer activations and deactivations.",
		})
		wsConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "livepoll",
			Name:      "ws_connections",
			Help:      "Open WebSocket connections by role.",
		}, []string{"role"})
		synthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "livepoll",
			Name:      "synthesis_runs_total",
			Help:      "Synthesis runs by final status.",
		}, []string{"status"})
	})
}

// IncRequest increments the http_requests_total counter with the given labels.
func IncRequest(method, path string, status int) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

func IncResponse(activityType string) {
	if responsesTotal == nil {
		return
	}
	responsesTotal.WithLabelValues(activityType).Inc()
}

func IncUpvoteRetry() {
	if upvoteRetriesTotal == nil {
		return
	}
	upvoteRetriesTotal.Inc()
}

func IncLiveChange() {
	if liveChangesTotal == nil {
		return
	}
	liveChangesTotal.Inc()
}

// AddWSConnection adjusts the open-connection gauge for role by delta
func AddWSConnection(role string, delta float64) {
	if wsConnections == nil {
		return
	}
	wsConnections.WithLabelValues(role).Add(delta)
}

func IncSynthesis(status string) {
	if synthesisTotal == nil {
		return
	}
	synthesisTotal.WithLabelValues(status).Inc()
}
