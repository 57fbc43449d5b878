package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/cta/internal/schema"
)

// Base supplies the attribute plumbing of the Strategy contract. Concrete
// strategies embed it and override the callbacks and snapshot methods they
// care about.
type Base struct {
	trader    Trader
	name      string
	className string
	symbol    string

	inited  bool
	trading bool
	pos     decimal.Decimal
}

// NewBase binds the common strategy attributes.
func NewBase(trader Trader, className, name, symbol string) Base {
	return Base{
		trader:    trader,
		name:      name,
		className: className,
		symbol:    symbol,
		inited:    false,
		trading:   false,
		pos:       decimal.Zero,
	}
}

// Trader returns the engine surface the strategy trades through.
func (b *Base) Trader() Trader { return b.trader }

func (b *Base) Name() string      { return b.name }
func (b *Base) ClassName() string { return b.className }
func (b *Base) Symbol() string    { return b.symbol }

func (b *Base) Inited() bool         { return b.inited }
func (b *Base) SetInited(v bool)     { b.inited = v }
func (b *Base) Trading() bool        { return b.trading }
func (b *Base) SetTrading(v bool)    { b.trading = v }
func (b *Base) Pos() decimal.Decimal { return b.pos }
func (b *Base) SetPos(pos decimal.Decimal) {
	b.pos = pos
}

// Parameters returns no parameters by default.
func (b *Base) Parameters() map[string]any { return map[string]any{} }

// Variables returns no variables by default.
func (b *Base) Variables() map[string]any { return map[string]any{} }

// ApplyVariables ignores unknown values by default.
func (b *Base) ApplyVariables(map[string]any) {}

// UpdateSetting ignores unknown settings by default.
func (b *Base) UpdateSetting(map[string]any) {}

func (b *Base) OnInit()                       {}
func (b *Base) OnStart()                      {}
func (b *Base) OnStop()                       {}
func (b *Base) OnTick(*schema.Tick)           {}
func (b *Base) OnOrder(*schema.Order)         {}
func (b *Base) OnTrade(*schema.Trade)         {}
func (b *Base) OnStopOrder(*schema.StopOrder) {}

// Buy opens a long position at the given price.
func (b *Base) Buy(s Strategy, price, volume decimal.Decimal, stop bool) []string {
	return b.trader.SendOrder(s, schema.DirectionLong, schema.OffsetOpen, price, volume, stop, false, false)
}

// Sell closes a long position at the given price.
func (b *Base) Sell(s Strategy, price, volume decimal.Decimal, stop bool) []string {
	return b.trader.SendOrder(s, schema.DirectionShort, schema.OffsetClose, price, volume, stop, false, false)
}

// Short opens a short position at the given price.
func (b *Base) Short(s Strategy, price, volume decimal.Decimal, stop bool) []string {
	return b.trader.SendOrder(s, schema.DirectionShort, schema.OffsetOpen, price, volume, stop, false, false)
}

// Cover closes a short position at the given price.
func (b *Base) Cover(s Strategy, price, volume decimal.Decimal, stop bool) []string {
	return b.trader.SendOrder(s, schema.DirectionLong, schema.OffsetClose, price, volume, stop, false, false)
}
