// Package strategies holds the built-in strategy classes shipped with the
// daemon.
package strategies

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/cta/internal/schema"
	"github.com/quantfold/cta/internal/strategy"
)

// ChannelBreakout trades breakouts of a rolling price channel. While flat it
// rests stop entries at the channel bounds; once positioned it trails a
// protective stop on the opposite side.
type ChannelBreakout struct {
	strategy.Base

	// parameters
	window    int
	volume    decimal.Decimal
	stopRatio decimal.Decimal

	// variables
	channelHigh decimal.Decimal
	channelLow  decimal.Decimal
	entryPrice  decimal.Decimal

	prices   []decimal.Decimal
	orderIDs []string
}

const (
	defaultWindow    = 20
	defaultVolume    = "1"
	defaultStopRatio = "0.02"
)

// NewChannelBreakout builds a channel breakout instance from a setting map.
func NewChannelBreakout(trader strategy.Trader, name, symbol string, setting map[string]any) strategy.Strategy {
	s := &ChannelBreakout{
		Base:      strategy.NewBase(trader, "ChannelBreakout", name, symbol),
		window:    defaultWindow,
		volume:    decimal.RequireFromString(defaultVolume),
		stopRatio: decimal.RequireFromString(defaultStopRatio),
	}
	s.UpdateSetting(setting)
	return s
}

func (s *ChannelBreakout) Parameters() map[string]any {
	return map[string]any{
		"window":     s.window,
		"volume":     s.volume.String(),
		"stop_ratio": s.stopRatio.String(),
	}
}

func (s *ChannelBreakout) Variables() map[string]any {
	return map[string]any{
		"channel_high": s.channelHigh.String(),
		"channel_low":  s.channelLow.String(),
		"entry_price":  s.entryPrice.String(),
	}
}

func (s *ChannelBreakout) ApplyVariables(values map[string]any) {
	if v, ok := decimalValue(values, "channel_high"); ok {
		s.channelHigh = v
	}
	if v, ok := decimalValue(values, "channel_low"); ok {
		s.channelLow = v
	}
	if v, ok := decimalValue(values, "entry_price"); ok {
		s.entryPrice = v
	}
}

func (s *ChannelBreakout) UpdateSetting(setting map[string]any) {
	if v, ok := intValue(setting, "window"); ok && v > 1 {
		s.window = v
	}
	if v, ok := decimalValue(setting, "volume"); ok && v.IsPositive() {
		s.volume = v
	}
	if v, ok := decimalValue(setting, "stop_ratio"); ok && v.IsPositive() {
		s.stopRatio = v
	}
}

func (s *ChannelBreakout) OnInit() {
	bars := s.Trader().LoadBar(s, 10, schema.IntervalMinute)
	for _, bar := range bars {
		s.pushPrice(bar.Close)
	}
	s.Trader().WriteLog("warmed up with history bars", s)
}

func (s *ChannelBreakout) OnStop() {
	s.orderIDs = nil
}

func (s *ChannelBreakout) OnTick(tick *schema.Tick) {
	s.pushPrice(tick.LastPrice)
	if !s.Trading() || len(s.prices) < s.window {
		return
	}

	s.Trader().CancelAll(s)
	s.orderIDs = nil

	switch {
	case s.Pos().IsZero():
		// Rest stop entries on both channel bounds.
		s.orderIDs = append(s.orderIDs, s.Buy(s, s.channelHigh, s.volume, true)...)
		s.orderIDs = append(s.orderIDs, s.Short(s, s.channelLow, s.volume, true)...)
	case s.Pos().IsPositive():
		stop := s.entryPrice.Mul(decimal.NewFromInt(1).Sub(s.stopRatio))
		s.orderIDs = append(s.orderIDs, s.Sell(s, stop, s.Pos(), true)...)
	default:
		stop := s.entryPrice.Mul(decimal.NewFromInt(1).Add(s.stopRatio))
		s.orderIDs = append(s.orderIDs, s.Cover(s, stop, s.Pos().Neg(), true)...)
	}
}

func (s *ChannelBreakout) OnTrade(trade *schema.Trade) {
	s.entryPrice = trade.Price
}

func (s *ChannelBreakout) pushPrice(price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	s.prices = append(s.prices, price)
	if len(s.prices) > s.window {
		s.prices = s.prices[len(s.prices)-s.window:]
	}
	high, low := s.prices[0], s.prices[0]
	for _, p := range s.prices[1:] {
		if p.GreaterThan(high) {
			high = p
		}
		if p.LessThan(low) {
			low = p
		}
	}
	s.channelHigh, s.channelLow = high, low
}

func intValue(values map[string]any, key string) (int, bool) {
	raw, ok := values[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func decimalValue(values map[string]any, key string) (decimal.Decimal, bool) {
	raw, ok := values[key]
	if !ok {
		return decimal.Zero, false
	}
	switch v := raw.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case decimal.Decimal:
		return v, true
	default:
		return decimal.Zero, false
	}
}
