// Package strategy defines the contract pluggable trading strategies must
// satisfy and the engine surface they trade through.
package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/cta/internal/schema"
)

// Strategy is the capability contract every pluggable strategy implements.
// The engine drives the callbacks; everything else is attribute plumbing the
// Base helper provides.
type Strategy interface {
	Name() string
	ClassName() string
	Symbol() string

	Inited() bool
	SetInited(v bool)
	Trading() bool
	SetTrading(v bool)
	Pos() decimal.Decimal
	SetPos(pos decimal.Decimal)

	// Parameters returns the current parameter values of the instance.
	Parameters() map[string]any
	// Variables returns the runtime variable snapshot persisted across
	// restarts. Status flags (inited, trading) are not variables.
	Variables() map[string]any
	// ApplyVariables restores previously persisted variable values by name.
	ApplyVariables(values map[string]any)
	// UpdateSetting applies new parameter values to a live instance.
	UpdateSetting(setting map[string]any)

	OnInit()
	OnStart()
	OnStop()
	OnTick(tick *schema.Tick)
	OnOrder(order *schema.Order)
	OnTrade(trade *schema.Trade)
	OnStopOrder(stopOrder *schema.StopOrder)
}

// Trader is the engine surface injected into strategies. Order routing
// methods must only be called from within engine-delivered callbacks
// (OnStart, OnStop, OnTick, OnOrder, OnTrade, OnStopOrder): the engine lock
// is already held there and the dispatch path provides the required
// serialization. Only WriteLog and LoadBar are safe during OnInit.
type Trader interface {
	// SendOrder routes a trade intent into one or more venue order
	// requests. With stop=true and no native venue stop support the
	// request becomes a locally simulated stop order. The returned slice
	// holds the resulting order ids; empty means total submission failure.
	SendOrder(s Strategy, direction schema.Direction, offset schema.Offset, price, volume decimal.Decimal, stop, lock, net bool) []string
	// CancelOrder cancels by id. Local stop-order ids cancel synchronously;
	// venue order ids cancel fire-and-forget.
	CancelOrder(s Strategy, orderID string)
	// CancelAll cancels every active order of the strategy.
	CancelAll(s Strategy)
	// WriteLog emits a log notification tagged with the strategy name.
	WriteLog(msg string, s Strategy)
	// PriceTick returns the contract's minimum price increment.
	PriceTick(s Strategy) (decimal.Decimal, bool)
	// ContractSize returns the contract multiplier.
	ContractSize(s Strategy) (decimal.Decimal, bool)
	// LoadBar loads historical bars for warm-up; callable from OnInit.
	LoadBar(s Strategy, days int, interval schema.Interval) []schema.Bar
}

// Factory instantiates a strategy bound to the given trader, instance name,
// market-qualified symbol and setting map.
type Factory func(trader Trader, name, symbol string, setting map[string]any) Strategy
