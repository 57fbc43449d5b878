package strategies

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/cta/internal/schema"
	"github.com/quantfold/cta/internal/strategy"
)

// fakeTrader records routed intents and serves canned bars.
type fakeTrader struct {
	sent    []sentOrder
	cancels int
	bars    []schema.Bar
	nextID  int
}

type sentOrder struct {
	direction schema.Direction
	offset    schema.Offset
	price     decimal.Decimal
	volume    decimal.Decimal
	stop      bool
}

func (f *fakeTrader) SendOrder(_ strategy.Strategy, direction schema.Direction, offset schema.Offset, price, volume decimal.Decimal, stop, _, _ bool) []string {
	f.sent = append(f.sent, sentOrder{direction: direction, offset: offset, price: price, volume: volume, stop: stop})
	f.nextID++
	return []string{fmt.Sprintf("STOP.%d", f.nextID)}
}

func (f *fakeTrader) CancelOrder(strategy.Strategy, string) {}
func (f *fakeTrader) CancelAll(strategy.Strategy)           { f.cancels++ }
func (f *fakeTrader) WriteLog(string, strategy.Strategy)    {}

func (f *fakeTrader) PriceTick(strategy.Strategy) (decimal.Decimal, bool) {
	return decimal.RequireFromString("0.01"), true
}

func (f *fakeTrader) ContractSize(strategy.Strategy) (decimal.Decimal, bool) {
	return decimal.NewFromInt(1), true
}

func (f *fakeTrader) LoadBar(strategy.Strategy, int, schema.Interval) []schema.Bar {
	return f.bars
}

func newBreakout(t *testing.T, trader strategy.Trader, setting map[string]any) *ChannelBreakout {
	t.Helper()
	s, ok := NewChannelBreakout(trader, "alpha", "BTCUSDT.SIM", setting).(*ChannelBreakout)
	require.True(t, ok)
	return s
}

func feedTicks(s *ChannelBreakout, prices ...string) {
	for _, price := range prices {
		s.OnTick(&schema.Tick{
			Symbol:    "BTCUSDT",
			Exchange:  schema.ExchangeSim,
			Time:      time.Now(),
			LastPrice: decimal.RequireFromString(price),
		})
	}
}

func TestRegisterAll(t *testing.T) {
	reg := strategy.NewRegistry()
	require.NoError(t, RegisterAll(reg))
	require.Contains(t, reg.Names(), "ChannelBreakout")
}

func TestSettingOverridesDefaults(t *testing.T) {
	s := newBreakout(t, &fakeTrader{}, map[string]any{
		"window":     5,
		"volume":     "2",
		"stop_ratio": 0.05,
	})
	params := s.Parameters()
	require.Equal(t, 5, params["window"])
	require.Equal(t, "2", params["volume"])
	require.Equal(t, "0.05", params["stop_ratio"])

	// Bad values are ignored.
	s.UpdateSetting(map[string]any{"window": 0, "volume": "-1"})
	require.Equal(t, 5, s.Parameters()["window"])
	require.Equal(t, "2", s.Parameters()["volume"])
}

func TestOnInitWarmsUpFromHistory(t *testing.T) {
	trader := &fakeTrader{}
	for i := 0; i < 5; i++ {
		trader.bars = append(trader.bars, schema.Bar{Close: decimal.NewFromInt(int64(100 + i))})
	}
	s := newBreakout(t, trader, map[string]any{"window": 5})

	s.OnInit()
	vars := s.Variables()
	require.Equal(t, "104", vars["channel_high"])
	require.Equal(t, "100", vars["channel_low"])
}

func TestFlatStrategyRestsEntriesOnChannelBounds(t *testing.T) {
	trader := &fakeTrader{}
	s := newBreakout(t, trader, map[string]any{"window": 3})
	s.SetInited(true)
	s.SetTrading(true)

	feedTicks(s, "100", "105", "95")

	require.Equal(t, 1, trader.cancels, "working orders are refreshed before re-quoting")
	require.Len(t, trader.sent, 2)
	require.Equal(t, schema.DirectionLong, trader.sent[0].direction)
	require.Equal(t, schema.OffsetOpen, trader.sent[0].offset)
	require.True(t, trader.sent[0].stop)
	require.True(t, trader.sent[0].price.Equal(decimal.NewFromInt(105)))
	require.Equal(t, schema.DirectionShort, trader.sent[1].direction)
	require.True(t, trader.sent[1].price.Equal(decimal.NewFromInt(95)))
}

func TestPositionedStrategyTrailsProtectiveStop(t *testing.T) {
	trader := &fakeTrader{}
	s := newBreakout(t, trader, map[string]any{"window": 2, "stop_ratio": "0.1"})
	s.SetInited(true)
	s.SetTrading(true)
	s.SetPos(decimal.NewFromInt(2))
	s.OnTrade(&schema.Trade{Price: decimal.NewFromInt(100)})

	feedTicks(s, "100", "101")

	last := trader.sent[len(trader.sent)-1]
	require.Equal(t, schema.DirectionShort, last.direction)
	require.Equal(t, schema.OffsetClose, last.offset)
	require.True(t, last.stop)
	require.True(t, last.price.Equal(decimal.NewFromInt(90)), "stop 10%% under entry, got %s", last.price)
	require.True(t, last.volume.Equal(decimal.NewFromInt(2)))
}

func TestShortPositionCoversAboveEntry(t *testing.T) {
	trader := &fakeTrader{}
	s := newBreakout(t, trader, map[string]any{"window": 2, "stop_ratio": "0.1"})
	s.SetInited(true)
	s.SetTrading(true)
	s.SetPos(decimal.NewFromInt(-1))
	s.OnTrade(&schema.Trade{Price: decimal.NewFromInt(100)})

	feedTicks(s, "100", "99")

	last := trader.sent[len(trader.sent)-1]
	require.Equal(t, schema.DirectionLong, last.direction)
	require.Equal(t, schema.OffsetClose, last.offset)
	require.True(t, last.price.Equal(decimal.NewFromInt(110)))
	require.True(t, last.volume.Equal(decimal.NewFromInt(1)))
}

func TestNotTradingPlacesNoOrders(t *testing.T) {
	trader := &fakeTrader{}
	s := newBreakout(t, trader, map[string]any{"window": 2})
	s.SetInited(true)

	feedTicks(s, "100", "101", "102")
	require.Empty(t, trader.sent)
	require.Zero(t, trader.cancels)
}

func TestVariablesRestore(t *testing.T) {
	s := newBreakout(t, &fakeTrader{}, nil)
	s.ApplyVariables(map[string]any{
		"channel_high": "110",
		"channel_low":  "90",
		"entry_price":  "100.5",
	})
	vars := s.Variables()
	require.Equal(t, "110", vars["channel_high"])
	require.Equal(t, "90", vars["channel_low"])
	require.Equal(t, "100.5", vars["entry_price"])
}
