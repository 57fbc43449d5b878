package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookDepth is the number of quote levels carried on a tick.
const BookDepth = 5

// PriceLevel is a single quoted level of the order book.
type PriceLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Tick is a market data snapshot for one instrument. A zero LimitUp or
// LimitDown means the venue did not publish a price limit.
type Tick struct {
	Symbol    string
	Exchange  Exchange
	Time      time.Time
	LastPrice decimal.Decimal
	Volume    decimal.Decimal
	LimitUp   decimal.Decimal
	LimitDown decimal.Decimal
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// QualifiedSymbol returns the market-qualified symbol of the tick.
func (t *Tick) QualifiedSymbol() string {
	return QualifySymbol(t.Symbol, t.Exchange)
}

// AskPrice returns the quoted ask price at the given 1-based level, or zero
// when the book does not carry that depth.
func (t *Tick) AskPrice(level int) decimal.Decimal {
	return levelPrice(t.Asks, level)
}

// BidPrice returns the quoted bid price at the given 1-based level, or zero
// when the book does not carry that depth.
func (t *Tick) BidPrice(level int) decimal.Decimal {
	return levelPrice(t.Bids, level)
}

func levelPrice(levels []PriceLevel, level int) decimal.Decimal {
	if level < 1 || level > len(levels) {
		return decimal.Zero
	}
	return levels[level-1].Price
}

// Interval identifies a bar aggregation window.
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalHour   Interval = "1h"
	IntervalDaily  Interval = "d"
)

// Bar is one aggregated candle of historical market data.
type Bar struct {
	Symbol   string
	Exchange Exchange
	Interval Interval
	Time     time.Time
	Open     decimal.Decimal
	High     decimal.Decimal
	Low      decimal.Decimal
	Close    decimal.Decimal
	Volume   decimal.Decimal
}

// HistoryRequest asks a history provider for bars over a time range.
type HistoryRequest struct {
	Symbol   string
	Exchange Exchange
	Interval Interval
	Start    time.Time
	End      time.Time
}
