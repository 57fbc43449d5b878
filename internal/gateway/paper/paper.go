// Package paper provides a simulated venue for development and testing: it
// quotes synthetic market data, accepts orders and fills them against the
// simulated price walk.
package paper

import (
	"context"
	"log"
	"math/rand"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/quantfold/cta/errs"
	"github.com/quantfold/cta/internal/schema"
)

// Options configures the simulated venue.
type Options struct {
	// Symbols lists the market-qualified instruments to quote.
	Symbols []string
	// TickInterval is the quote cadence; defaults to one second.
	TickInterval time.Duration
	// Seed fixes the price-walk random source; zero derives one from time.
	Seed   int64
	Logger *log.Logger
}

// Gateway is an in-process venue. Market data, order events and fills are
// delivered on buffered channels; slow consumers drop events rather than
// stall the simulation.
type Gateway struct {
	logger       *log.Logger
	tickInterval time.Duration

	ticks  chan *schema.Tick
	orders chan *schema.Order
	trades chan *schema.Trade

	mu         sync.Mutex
	rng        *rand.Rand
	contracts  map[string]*schema.Contract
	subscribed map[string]struct{}
	resting    map[string]*schema.Order
	known      map[string]*schema.Order
	state      map[string]*instrumentState

	started atomic.Bool
	wg      conc.WaitGroup
	cancel  context.CancelFunc
}

type instrumentState struct {
	lastPrice decimal.Decimal
	volume    decimal.Decimal
}

const eventBuffer = 256

// New constructs a simulated venue quoting the given instruments.
func New(opts Options) (*Gateway, error) {
	if len(opts.Symbols) == 0 {
		return nil, errs.New("paper", errs.CodeInvalid, errs.WithMessage("at least one symbol required"))
	}
	interval := opts.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[paper] ", log.LstdFlags|log.Lmsgprefix)
	}

	g := &Gateway{
		logger:       logger,
		tickInterval: interval,
		ticks:        make(chan *schema.Tick, eventBuffer),
		orders:       make(chan *schema.Order, eventBuffer),
		trades:       make(chan *schema.Trade, eventBuffer),
		rng:          rand.New(rand.NewSource(seed)),
		contracts:    make(map[string]*schema.Contract),
		subscribed:   make(map[string]struct{}),
		resting:      make(map[string]*schema.Order),
		known:        make(map[string]*schema.Order),
		state:        make(map[string]*instrumentState),
	}
	for _, symbol := range opts.Symbols {
		code, exch, err := schema.ParseSymbol(symbol)
		if err != nil {
			return nil, errs.New("paper", errs.CodeInvalid,
				errs.WithMessage("bad symbol "+symbol), errs.WithCause(err))
		}
		g.contracts[symbol] = &schema.Contract{
			Symbol:           code,
			Exchange:         exch,
			Name:             code + " (simulated)",
			PriceTick:        decimal.RequireFromString("0.01"),
			MinVolume:        decimal.RequireFromString("0.001"),
			Size:             decimal.NewFromInt(1),
			StopSupported:    false,
			HistorySupported: true,
		}
		g.state[symbol] = &instrumentState{
			lastPrice: basePriceFor(code),
			volume:    decimal.Zero,
		}
	}
	return g, nil
}

// basePriceFor derives a stable starting price from the instrument code so
// runs are comparable across restarts.
func basePriceFor(code string) decimal.Decimal {
	sum := 0
	for _, r := range strings.ToUpper(code) {
		sum += int(r)
	}
	return decimal.NewFromInt(int64(50 + sum%950))
}

// Ticks returns the market data stream.
func (g *Gateway) Ticks() <-chan *schema.Tick { return g.ticks }

// Orders returns the order event stream.
func (g *Gateway) Orders() <-chan *schema.Order { return g.orders }

// Trades returns the fill stream.
func (g *Gateway) Trades() <-chan *schema.Trade { return g.trades }

// Run starts the quote loop and blocks until the context is cancelled. It
// may be started at most once.
func (g *Gateway) Run(ctx context.Context) {
	if !g.started.CompareAndSwap(false, true) {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.wg.Go(func() { g.quoteLoop(runCtx) })
	g.wg.Wait()
}

// Stop cancels the quote loop.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
}

func (g *Gateway) quoteLoop(ctx context.Context) {
	ticker := time.NewTicker(g.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.step()
		}
	}
}

// step advances every subscribed instrument by one tick and fills resting
// orders crossed by the new price.
func (g *Gateway) step() {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	for symbol := range g.subscribed {
		contract := g.contracts[symbol]
		st := g.state[symbol]
		st.advance(g.rng, contract.PriceTick)
		g.emitTick(buildTick(contract, st, now))
		g.matchResting(symbol, st.lastPrice, now)
	}
}

// advance applies one random-walk step of up to ±0.2% and quantizes the
// result to the price tick.
func (st *instrumentState) advance(rng *rand.Rand, priceTick decimal.Decimal) {
	drift := decimal.NewFromFloat(1 + (rng.Float64()-0.5)*0.004)
	next := st.lastPrice.Mul(drift).Div(priceTick).Round(0).Mul(priceTick)
	if next.IsPositive() {
		st.lastPrice = next
	}
	st.volume = st.volume.Add(decimal.NewFromInt(int64(rng.Intn(10) + 1)))
}

func buildTick(contract *schema.Contract, st *instrumentState, now time.Time) *schema.Tick {
	tick := &schema.Tick{
		Symbol:    contract.Symbol,
		Exchange:  contract.Exchange,
		Time:      now,
		LastPrice: st.lastPrice,
		Volume:    st.volume,
		LimitUp:   decimal.Zero,
		LimitDown: decimal.Zero,
		Bids:      make([]schema.PriceLevel, 0, schema.BookDepth),
		Asks:      make([]schema.PriceLevel, 0, schema.BookDepth),
	}
	for i := 1; i <= schema.BookDepth; i++ {
		offset := contract.PriceTick.Mul(decimal.NewFromInt(int64(i)))
		tick.Bids = append(tick.Bids, schema.PriceLevel{
			Price:  st.lastPrice.Sub(offset),
			Volume: decimal.NewFromInt(int64(10 * i)),
		})
		tick.Asks = append(tick.Asks, schema.PriceLevel{
			Price:  st.lastPrice.Add(offset),
			Volume: decimal.NewFromInt(int64(10 * i)),
		})
	}
	return tick
}

// SendOrder accepts a limit order, fills it immediately when the price
// already crosses and lets it rest otherwise. Market orders fill at the last
// price. Returns the venue order id, empty on rejection.
func (g *Gateway) SendOrder(_ context.Context, req *schema.OrderRequest) string {
	if req == nil {
		return ""
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	symbol := req.QualifiedSymbol()
	st, ok := g.state[symbol]
	if !ok {
		g.logger.Printf("order rejected, unknown instrument %s", symbol)
		return ""
	}
	if !req.Volume.IsPositive() {
		g.logger.Printf("order rejected, non-positive volume for %s", symbol)
		return ""
	}

	now := time.Now()
	order := &schema.Order{
		OrderID:   uuid.NewString(),
		Symbol:    req.Symbol,
		Exchange:  req.Exchange,
		Type:      req.Type,
		Direction: req.Direction,
		Offset:    req.Offset,
		Price:     req.Price,
		Volume:    req.Volume,
		Traded:    decimal.Zero,
		Status:    schema.StatusSubmitting,
		Reference: req.Reference,
		Time:      now,
	}
	g.known[order.OrderID] = order
	g.emitOrder(order)

	if req.Type == schema.OrderTypeMarket || crosses(order, st.lastPrice) {
		g.fill(order, st.lastPrice, now)
		return order.OrderID
	}

	order.Status = schema.StatusNotTraded
	g.resting[order.OrderID] = order
	g.emitOrder(order)
	return order.OrderID
}

// crosses reports whether a limit order is marketable at the given price.
func crosses(order *schema.Order, lastPrice decimal.Decimal) bool {
	if order.Direction == schema.DirectionLong {
		return order.Price.GreaterThanOrEqual(lastPrice)
	}
	return order.Price.LessThanOrEqual(lastPrice)
}

// fill completes the order at the given price and emits the trade. Called
// with the gateway lock held.
func (g *Gateway) fill(order *schema.Order, price decimal.Decimal, now time.Time) {
	delete(g.resting, order.OrderID)
	order.Traded = order.Volume
	order.Status = schema.StatusAllTraded
	order.Time = now
	g.emitOrder(order)
	g.emitTrade(&schema.Trade{
		TradeID:   uuid.NewString(),
		OrderID:   order.OrderID,
		Symbol:    order.Symbol,
		Exchange:  order.Exchange,
		Direction: order.Direction,
		Offset:    order.Offset,
		Price:     price,
		Volume:    order.Volume,
		Time:      now,
	})
}

func (g *Gateway) matchResting(symbol string, lastPrice decimal.Decimal, now time.Time) {
	for _, order := range g.resting {
		if schema.QualifySymbol(order.Symbol, order.Exchange) != symbol {
			continue
		}
		if crosses(order, lastPrice) {
			g.fill(order, lastPrice, now)
		}
	}
}

// CancelOrder cancels a resting order; the result arrives on the order
// stream. Cancels for unknown or completed orders are dropped.
func (g *Gateway) CancelOrder(_ context.Context, req *schema.CancelRequest) {
	if req == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.resting[req.OrderID]
	if !ok {
		return
	}
	delete(g.resting, req.OrderID)
	order.Status = schema.StatusCancelled
	order.Time = time.Now()
	g.emitOrder(order)
}

// ConvertOrderRequest passes the request through unchanged: the simulated
// venue tracks net positions, so lock and net conversion collapse to a
// single leg.
func (g *Gateway) ConvertOrderRequest(req *schema.OrderRequest, _, _ bool) []*schema.OrderRequest {
	if req == nil {
		return nil
	}
	return []*schema.OrderRequest{req}
}

// Contract looks up instrument metadata by market-qualified symbol.
func (g *Gateway) Contract(symbol string) (*schema.Contract, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	contract, ok := g.contracts[symbol]
	return contract, ok
}

// Order looks up the latest known state of an order by id.
func (g *Gateway) Order(orderID string) (*schema.Order, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	order, ok := g.known[orderID]
	if !ok {
		return nil, false
	}
	snapshot := *order
	return &snapshot, true
}

// Subscribe starts quoting the instrument.
func (g *Gateway) Subscribe(symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.contracts[symbol]; !ok {
		return errs.New("paper", errs.CodeNotFound, errs.WithMessage("unknown instrument "+symbol))
	}
	g.subscribed[symbol] = struct{}{}
	return nil
}

// QueryHistory synthesizes bars by walking backwards from the current price.
func (g *Gateway) QueryHistory(_ context.Context, req schema.HistoryRequest) ([]schema.Bar, error) {
	symbol := schema.QualifySymbol(req.Symbol, req.Exchange)
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.state[symbol]
	if !ok {
		return nil, errs.New("paper", errs.CodeNotFound, errs.WithMessage("unknown instrument "+symbol))
	}

	step := intervalDuration(req.Interval)
	if step <= 0 || !req.End.After(req.Start) {
		return nil, nil
	}
	count := int(req.End.Sub(req.Start) / step)
	const maxBars = 10000
	if count > maxBars {
		count = maxBars
	}

	price := st.lastPrice
	bars := make([]schema.Bar, count)
	for i := count - 1; i >= 0; i-- {
		spread := price.Mul(decimal.RequireFromString("0.002"))
		bars[i] = schema.Bar{
			Symbol:   req.Symbol,
			Exchange: req.Exchange,
			Interval: req.Interval,
			Time:     req.End.Add(-time.Duration(count-i) * step),
			Open:     price.Sub(spread),
			High:     price.Add(spread),
			Low:      price.Sub(spread.Mul(decimal.NewFromInt(2))),
			Close:    price,
			Volume:   decimal.NewFromInt(int64(g.rng.Intn(1000) + 100)),
		}
		price = price.Mul(decimal.NewFromFloat(1 + (g.rng.Float64()-0.5)*0.002))
	}
	return bars, nil
}

func intervalDuration(interval schema.Interval) time.Duration {
	switch interval {
	case schema.IntervalMinute:
		return time.Minute
	case schema.IntervalHour:
		return time.Hour
	case schema.IntervalDaily:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (g *Gateway) emitTick(tick *schema.Tick) {
	select {
	case g.ticks <- tick:
	default:
		g.logger.Printf("tick dropped, consumer too slow: %s", tick.QualifiedSymbol())
	}
}

func (g *Gateway) emitOrder(order *schema.Order) {
	snapshot := *order
	select {
	case g.orders <- &snapshot:
	default:
		g.logger.Printf("order event dropped, consumer too slow: %s", order.OrderID)
	}
}

func (g *Gateway) emitTrade(trade *schema.Trade) {
	select {
	case g.trades <- trade:
	default:
		g.logger.Printf("trade dropped, consumer too slow: %s", trade.TradeID)
	}
}
