package schema

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// StopOrderPrefix marks engine-generated stop-order ids. Ids carrying the
// prefix are simulated locally and never reach the venue.
const StopOrderPrefix = "STOP"

// StopOrderStatus tracks the lifecycle of a locally simulated stop order.
type StopOrderStatus string

const (
	StopOrderWaiting   StopOrderStatus = "WAITING"
	StopOrderCancelled StopOrderStatus = "CANCELLED"
	StopOrderTriggered StopOrderStatus = "TRIGGERED"
)

// StopOrder is a conditional order simulated by the engine until its trigger
// price is reached, at which point it converts into real limit orders.
type StopOrder struct {
	Symbol       string
	Exchange     Exchange
	Direction    Direction
	Offset       Offset
	Price        decimal.Decimal
	Volume       decimal.Decimal
	StopOrderID  string
	StrategyName string
	CreatedAt    time.Time
	Lock         bool
	Net          bool
	// OrderIDs holds the real order ids spawned once the stop triggered;
	// empty while the order is Waiting.
	OrderIDs []string
	Status   StopOrderStatus
}

// QualifiedSymbol returns the market-qualified symbol of the stop order.
func (s *StopOrder) QualifiedSymbol() string {
	return QualifySymbol(s.Symbol, s.Exchange)
}

// IsStopOrderID reports whether the id names a locally simulated stop order.
func IsStopOrderID(id string) bool {
	return strings.HasPrefix(id, StopOrderPrefix+".")
}

// StopStatusFromOrder maps a broker order status onto the stop-order view
// used when the venue fills stop orders natively.
func StopStatusFromOrder(status OrderStatus) StopOrderStatus {
	switch status {
	case StatusSubmitting, StatusNotTraded:
		return StopOrderWaiting
	case StatusPartTraded, StatusAllTraded:
		return StopOrderTriggered
	case StatusCancelled, StatusRejected:
		return StopOrderCancelled
	default:
		return StopOrderWaiting
	}
}
