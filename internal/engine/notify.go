package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/cta/internal/schema"
)

// LogEntry is a log notification tagged with an optional strategy name.
type LogEntry struct {
	Time     time.Time
	Strategy string
	Message  string
}

// StrategyStatus is a strategy state snapshot emitted after every
// state-changing operation, consumed by presentation layers.
type StrategyStatus struct {
	Name       string
	ClassName  string
	Symbol     string
	Inited     bool
	Trading    bool
	Pos        decimal.Decimal
	Parameters map[string]any
	Variables  map[string]any
}

// Notifier receives engine notifications. Implementations are invoked on the
// dispatch path and must not block.
type Notifier interface {
	PutLog(entry LogEntry)
	PutStopOrder(stopOrder schema.StopOrder)
	PutStrategyStatus(status StrategyStatus)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) PutLog(LogEntry)                  {}
func (NopNotifier) PutStopOrder(schema.StopOrder)    {}
func (NopNotifier) PutStrategyStatus(StrategyStatus) {}
