package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bridge tracks health of the event pipeline: what comes in from the
// agent, what gets rejected, and what reaches subscribers.
type Bridge struct {
	ingested            prometheus.CounterVec
	parseFailures       prometheus.Counter
	translationFailures prometheus.Counter
	rejectedTransitions prometheus.Counter
	fallbackPairings    prometheus.Counter
	delivered           prometheus.Counter
	dropped             prometheus.Counter
	subscribers         prometheus.Gauge
	sessions            prometheus.Gauge
}

var (
	defaultBridge     *Bridge
	defaultBridgeOnce sync.Once
)

// NewBridge builds a Bridge recorder using the default registry.
func NewBridge() *Bridge {
	defaultBridgeOnce.Do(func() {
		defaultBridge = newBridge(prometheus.DefaultRegisterer)
	})
	return defaultBridge
}

// NewBridgeWithRegisterer allows tests to provide a dedicated registry.
func NewBridgeWithRegisterer(reg prometheus.Registerer) *Bridge {
	return newBridge(reg)
}

func newBridge(reg prometheus.Registerer) *Bridge {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Bridge{
		ingested: *factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "ingested_total",
			Help:      "Inbound agent payloads received, by payload kind",
		}, []string{"kind"}),
		parseFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "parse_failure_total",
			Help:      "Inbound payloads dropped because they failed to parse",
		}),
		translationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "translation_failure_total",
			Help:      "Well-formed payloads the translator could not map to events",
		}),
		rejectedTransitions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "rejected_transition_total",
			Help:      "Events rejected because the session was in an incompatible state",
		}),
		fallbackPairings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "fallback_pairing_total",
			Help:      "Tool results paired with the oldest open call because their id matched nothing",
		}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "delivered_total",
			Help:      "Events delivered to subscriber channels",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "dropped_total",
			Help:      "Events dropped for individual subscribers whose buffers were full",
		}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "subscribers",
			Help:      "Currently connected subscribers across all sessions",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agui",
			Subsystem: "bridge",
			Name:      "sessions",
			Help:      "Sessions currently held by the registry",
		}),
	}
}

// RecordIngested counts one inbound payload of the given kind.
func (m *Bridge) RecordIngested(kind string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(kind).Inc()
}

// RecordParseFailure counts one dropped unparseable payload.
func (m *Bridge) RecordParseFailure() {
	if m == nil || m.parseFailures == nil {
		return
	}
	m.parseFailures.Inc()
}

// RecordTranslationFailure counts one payload the translator skipped.
func (m *Bridge) RecordTranslationFailure() {
	if m == nil || m.translationFailures == nil {
		return
	}
	m.translationFailures.Inc()
}

// RecordRejectedTransition counts one event refused by the state machine.
func (m *Bridge) RecordRejectedTransition() {
	if m == nil || m.rejectedTransitions == nil {
		return
	}
	m.rejectedTransitions.Inc()
}

// RecordFallbackPairing counts one tool result re-pointed at the oldest
// open call.
func (m *Bridge) RecordFallbackPairing() {
	if m == nil || m.fallbackPairings == nil {
		return
	}
	m.fallbackPairings.Inc()
}

// RecordDelivered counts one event handed to a subscriber channel.
func (m *Bridge) RecordDelivered() {
	if m == nil || m.delivered == nil {
		return
	}
	m.delivered.Inc()
}

// RecordDropped counts one event a slow subscriber missed.
func (m *Bridge) RecordDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}

// SubscriberAdded moves the subscriber gauge up.
func (m *Bridge) SubscriberAdded() {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.Inc()
}

// SubscriberRemoved moves the subscriber gauge down.
func (m *Bridge) SubscriberRemoved() {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.Dec()
}

// SessionOpened moves the session gauge up.
func (m *Bridge) SessionOpened() {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed moves the session gauge down.
func (m *Bridge) SessionClosed() {
	if m == nil || m.sessions == nil {
		return
	}
	m.sessions.Dec()
}
