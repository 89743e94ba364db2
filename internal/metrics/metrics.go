// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "statusboard_"

var messagesReceivedCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "messages_received",
		Help: "Number of snapshot messages delivered by the stream source",
	},
	[]string{"source"},
)

var messagesDroppedCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "messages_dropped",
		Help: "Number of snapshot messages dropped before reconciliation",
	},
	[]string{"reason"},
)

var instructionsCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "render_instructions",
		Help: "Number of render instructions emitted by the reconciler",
	},
	[]string{"op"},
)

var renderMissesCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "render_misses",
		Help: "Number of render instructions skipped because the target element was missing",
	},
)

var unknownStatesCounter = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "unknown_states",
		Help: "Number of lifecycle states that resolved to the fallback color",
	},
)

func RecordMessageReceived(source string) {
	messagesReceivedCounter.With(prometheus.Labels{"source": source}).Inc()
}

func RecordMessageDropped(reason string) {
	messagesDroppedCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

func RecordInstruction(op string) {
	instructionsCounter.With(prometheus.Labels{"op": op}).Inc()
}

func RecordRenderMiss() {
	renderMissesCounter.Inc()
}

func RecordUnknownState() {
	unknownStatesCounter.Inc()
}
