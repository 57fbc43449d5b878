package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction marks the side of an order or trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Offset carries the open/close semantics of a position-changing order.
type Offset string

const (
	OffsetOpen           Offset = "OPEN"
	OffsetClose          Offset = "CLOSE"
	OffsetCloseToday     Offset = "CLOSE_TODAY"
	OffsetCloseYesterday Offset = "CLOSE_YESTERDAY"
)

// OrderType identifies the kind of order request sent to a venue.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
	// OrderTypeStop is a venue-native stop order; only valid when the
	// contract advertises stop support.
	OrderTypeStop OrderType = "STOP"
)

// OrderStatus tracks the broker-reported lifecycle of an order.
type OrderStatus string

const (
	StatusSubmitting OrderStatus = "SUBMITTING"
	StatusNotTraded  OrderStatus = "NOT_TRADED"
	StatusPartTraded OrderStatus = "PART_TRADED"
	StatusAllTraded  OrderStatus = "ALL_TRADED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusRejected   OrderStatus = "REJECTED"
)

// Active reports whether an order in this status still rests on the venue.
func (s OrderStatus) Active() bool {
	switch s {
	case StatusSubmitting, StatusNotTraded, StatusPartTraded:
		return true
	default:
		return false
	}
}

// Order is a broker-reported order lifecycle snapshot.
type Order struct {
	OrderID   string
	Symbol    string
	Exchange  Exchange
	Type      OrderType
	Direction Direction
	Offset    Offset
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Traded    decimal.Decimal
	Status    OrderStatus
	Reference string
	Time      time.Time
}

// Active reports whether the order still rests on the venue.
func (o *Order) Active() bool {
	if o == nil {
		return false
	}
	return o.Status.Active()
}

// Trade is a broker-reported fill attributed to an order.
type Trade struct {
	TradeID   string
	OrderID   string
	Symbol    string
	Exchange  Exchange
	Direction Direction
	Offset    Offset
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Time      time.Time
}

// Contract describes a tradable instrument as advertised by the gateway.
type Contract struct {
	Symbol           string
	Exchange         Exchange
	Name             string
	PriceTick        decimal.Decimal
	MinVolume        decimal.Decimal
	Size             decimal.Decimal
	StopSupported    bool
	HistorySupported bool
}

// QualifiedSymbol returns the market-qualified symbol of the contract.
func (c *Contract) QualifiedSymbol() string {
	return QualifySymbol(c.Symbol, c.Exchange)
}

// OrderRequest is a single logical order submission to the gateway.
type OrderRequest struct {
	Symbol    string
	Exchange  Exchange
	Direction Direction
	Offset    Offset
	Type      OrderType
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Reference string
}

// QualifiedSymbol returns the market-qualified symbol of the request.
func (r *OrderRequest) QualifiedSymbol() string {
	return QualifySymbol(r.Symbol, r.Exchange)
}

// CancelRequest asks the gateway to cancel a resting order.
type CancelRequest struct {
	OrderID  string
	Symbol   string
	Exchange Exchange
}
