package paper

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/cta/internal/schema"
)

const testSymbol = "BTCUSDT.SIM"

func newVenue(t *testing.T) *Gateway {
	t.Helper()
	g, err := New(Options{
		Symbols:      []string{testSymbol},
		TickInterval: 10 * time.Millisecond,
		Seed:         1,
	})
	require.NoError(t, err)
	return g
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{Symbols: []string{"nodot"}})
	require.Error(t, err)

	_, err = New(Options{Symbols: []string{"BTCUSDT.MARS"}})
	require.Error(t, err)
}

func TestContractMetadata(t *testing.T) {
	g := newVenue(t)
	contract, ok := g.Contract(testSymbol)
	require.True(t, ok)
	require.Equal(t, "BTCUSDT", contract.Symbol)
	require.Equal(t, schema.ExchangeSim, contract.Exchange)
	require.False(t, contract.StopSupported, "stops are simulated by the engine")
	require.True(t, contract.HistorySupported)

	_, ok = g.Contract("ETHUSDT.SIM")
	require.False(t, ok)
}

func TestSubscribeUnknownInstrument(t *testing.T) {
	g := newVenue(t)
	require.NoError(t, g.Subscribe(testSymbol))
	require.Error(t, g.Subscribe("ETHUSDT.SIM"))
}

func TestMarketableOrderFillsImmediately(t *testing.T) {
	g := newVenue(t)
	last := g.state[testSymbol].lastPrice

	id := g.SendOrder(context.Background(), &schema.OrderRequest{
		Symbol:    "BTCUSDT",
		Exchange:  schema.ExchangeSim,
		Direction: schema.DirectionLong,
		Offset:    schema.OffsetOpen,
		Type:      schema.OrderTypeLimit,
		Price:     last.Add(decimal.NewFromInt(1)),
		Volume:    decimal.NewFromInt(1),
	})
	require.NotEmpty(t, id)

	order, ok := g.Order(id)
	require.True(t, ok)
	require.Equal(t, schema.StatusAllTraded, order.Status)

	// Submitting then AllTraded on the order stream, one fill on trades.
	first := <-g.Orders()
	require.Equal(t, schema.StatusSubmitting, first.Status)
	second := <-g.Orders()
	require.Equal(t, schema.StatusAllTraded, second.Status)
	trade := <-g.Trades()
	require.Equal(t, id, trade.OrderID)
	require.True(t, trade.Price.Equal(last))
}

func TestPassiveOrderRestsAndCancels(t *testing.T) {
	g := newVenue(t)
	last := g.state[testSymbol].lastPrice

	id := g.SendOrder(context.Background(), &schema.OrderRequest{
		Symbol:    "BTCUSDT",
		Exchange:  schema.ExchangeSim,
		Direction: schema.DirectionLong,
		Offset:    schema.OffsetOpen,
		Type:      schema.OrderTypeLimit,
		Price:     last.Sub(decimal.NewFromInt(10)),
		Volume:    decimal.NewFromInt(1),
	})
	require.NotEmpty(t, id)

	order, ok := g.Order(id)
	require.True(t, ok)
	require.Equal(t, schema.StatusNotTraded, order.Status)

	g.CancelOrder(context.Background(), &schema.CancelRequest{OrderID: id})
	order, ok = g.Order(id)
	require.True(t, ok)
	require.Equal(t, schema.StatusCancelled, order.Status)

	// Cancelling again is dropped.
	g.CancelOrder(context.Background(), &schema.CancelRequest{OrderID: id})
}

func TestRejectsBadOrders(t *testing.T) {
	g := newVenue(t)
	require.Empty(t, g.SendOrder(context.Background(), &schema.OrderRequest{
		Symbol:   "ETHUSDT",
		Exchange: schema.ExchangeSim,
		Volume:   decimal.NewFromInt(1),
	}))
	require.Empty(t, g.SendOrder(context.Background(), &schema.OrderRequest{
		Symbol:   "BTCUSDT",
		Exchange: schema.ExchangeSim,
		Volume:   decimal.Zero,
	}))
}

func TestConvertOrderRequestSingleLeg(t *testing.T) {
	g := newVenue(t)
	req := &schema.OrderRequest{Symbol: "BTCUSDT", Exchange: schema.ExchangeSim}
	legs := g.ConvertOrderRequest(req, true, true)
	require.Len(t, legs, 1)
	require.Same(t, req, legs[0])
}

func TestQuoteLoopEmitsTicksAndFillsRestingOrders(t *testing.T) {
	g := newVenue(t)
	require.NoError(t, g.Subscribe(testSymbol))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)
	defer g.Stop()

	var tick *schema.Tick
	select {
	case tick = <-g.Ticks():
	case <-time.After(2 * time.Second):
		t.Fatal("no tick emitted")
	}
	require.Equal(t, testSymbol, tick.QualifiedSymbol())
	require.Len(t, tick.Bids, schema.BookDepth)
	require.Len(t, tick.Asks, schema.BookDepth)
	require.True(t, tick.LastPrice.IsPositive())

	// A sell resting one tick above the market fills on the first up-step.
	id := g.SendOrder(context.Background(), &schema.OrderRequest{
		Symbol:    "BTCUSDT",
		Exchange:  schema.ExchangeSim,
		Direction: schema.DirectionShort,
		Offset:    schema.OffsetOpen,
		Type:      schema.OrderTypeLimit,
		Price:     tick.LastPrice.Add(decimal.RequireFromString("0.01")),
		Volume:    decimal.NewFromInt(1),
	})
	require.NotEmpty(t, id)
	require.Eventually(t, func() bool {
		order, ok := g.Order(id)
		return ok && order.Status == schema.StatusAllTraded
	}, 2*time.Second, 10*time.Millisecond)
}

func TestQueryHistorySynthesizesBars(t *testing.T) {
	g := newVenue(t)
	end := time.Now()
	bars, err := g.QueryHistory(context.Background(), schema.HistoryRequest{
		Symbol:   "BTCUSDT",
		Exchange: schema.ExchangeSim,
		Interval: schema.IntervalMinute,
		Start:    end.Add(-time.Hour),
		End:      end,
	})
	require.NoError(t, err)
	require.Len(t, bars, 60)
	for _, bar := range bars {
		require.True(t, bar.High.GreaterThanOrEqual(bar.Close))
		require.True(t, bar.Low.LessThanOrEqual(bar.Close))
	}
	require.True(t, bars[0].Time.Before(bars[len(bars)-1].Time))

	_, err = g.QueryHistory(context.Background(), schema.HistoryRequest{
		Symbol:   "ETHUSDT",
		Exchange: schema.ExchangeSim,
		Interval: schema.IntervalMinute,
		Start:    end.Add(-time.Hour),
		End:      end,
	})
	require.Error(t, err)
}
