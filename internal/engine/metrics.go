package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks dispatch volume and fault counts for the engine.
type Metrics struct {
	ticksTotal           prometheus.Counter
	ordersTotal          prometheus.Counter
	tradesTotal          prometheus.Counter
	duplicateTradesTotal prometheus.Counter
	stopOrdersTriggered  prometheus.Counter
	stopOrdersActive     prometheus.Gauge
	strategyFaults       *prometheus.CounterVec
}

// NewMetrics constructs and registers engine metrics with the provided
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "cta",
			Subsystem: "engine",
			Name:      "ticks_total",
			Help:      "Ticks dispatched to at least one subscribed strategy.",
		}),
		ordersTotal: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "cta",
			Subsystem: "engine",
			Name:      "order_events_total",
			Help:      "Order events attributed to a tracked strategy.",
		}),
		tradesTotal: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "cta",
			Subsystem: "engine",
			Name:      "trade_events_total",
			Help:      "Trade events attributed to a tracked strategy.",
		}),
		duplicateTradesTotal: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "cta",
			Subsystem: "engine",
			Name:      "duplicate_trades_total",
			Help:      "Trade events dropped by the de-duplication filter.",
		}),
		stopOrdersTriggered: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "cta",
			Subsystem: "engine",
			Name:      "stop_orders_triggered_total",
			Help:      "Local stop orders converted into real limit orders.",
		}),
		stopOrdersActive: prometheus.NewGauge(prometheus.GaugeOpts{ //nolint:exhaustruct
			Namespace: "cta",
			Subsystem: "engine",
			Name:      "stop_orders_active",
			Help:      "Local stop orders currently waiting for their trigger.",
		}),
		strategyFaults: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "cta",
			Subsystem: "engine",
			Name:      "strategy_faults_total",
			Help:      "Faults contained by the strategy call guard.",
		}, []string{"strategy"}),
	}
	reg.MustRegister(
		m.ticksTotal,
		m.ordersTotal,
		m.tradesTotal,
		m.duplicateTradesTotal,
		m.stopOrdersTriggered,
		m.stopOrdersActive,
		m.strategyFaults,
	)
	return m
}
