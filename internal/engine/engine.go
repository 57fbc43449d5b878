// Package engine implements the strategy execution engine: it fans market
// events out to subscribed strategies, simulates stop orders for venues
// without native support, routes orders through the gateway and keeps
// strategy state persisted across restarts.
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/quantfold/cta/errs"
	"github.com/quantfold/cta/internal/gateway"
	"github.com/quantfold/cta/internal/persistence"
	"github.com/quantfold/cta/internal/schema"
	"github.com/quantfold/cta/internal/strategy"
	"github.com/quantfold/cta/internal/worker"
)

// Sentinel errors returned by lifecycle operations. All are wrapped with
// instance detail; match with errors.Is.
var (
	ErrStrategyExists   = errs.New("engine", errs.CodeConflict, errs.WithMessage("strategy name already in use"))
	ErrStrategyNotFound = errs.New("engine", errs.CodeNotFound, errs.WithMessage("strategy not found"))
	ErrClassNotFound    = errs.New("engine", errs.CodeNotFound, errs.WithMessage("strategy class not found"))
	ErrInvalidSymbol    = errs.New("engine", errs.CodeInvalid, errs.WithMessage("invalid market-qualified symbol"))
	ErrStrategyTrading  = errs.New("engine", errs.CodeConflict, errs.WithMessage("strategy still trading"))
	ErrNotInited        = errs.New("engine", errs.CodeConflict, errs.WithMessage("strategy not initialized"))
	ErrAlreadyTrading   = errs.New("engine", errs.CodeConflict, errs.WithMessage("strategy already trading"))
)

// Config tunes engine behaviour.
type Config struct {
	// OrderRate caps venue order submissions per second. Zero disables the
	// limiter; a throttled leg counts as a failed submission.
	OrderRate float64
	// OrderBurst is the limiter burst size; defaults to 1 when OrderRate is
	// set.
	OrderBurst int
	// InitQueueDepth bounds the number of pending strategy initializations.
	InitQueueDepth int
}

const defaultInitQueueDepth = 64

// Engine owns every strategy instance and all routing state. One write lock
// guards dispatch, lifecycle transitions and the relationship index, so
// strategy callbacks always observe a consistent view. OnInit is the one
// callback invoked without the lock: it runs on the init worker before the
// strategy becomes visible to dispatch.
type Engine struct {
	cfg      Config
	logger   *log.Logger
	gateway  gateway.Gateway
	datafeed gateway.Datafeed
	store    persistence.Store
	registry *strategy.Registry
	notifier Notifier
	metrics  *Metrics
	limiter  *rate.Limiter

	initPool   *worker.Pool
	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu         sync.RWMutex
	strategies map[string]strategy.Strategy
	settings   map[string]persistence.StrategySetting
	data       map[string]map[string]any

	index          *relationIndex
	stopOrders     map[string]*schema.StopOrder
	stopOrderCount int64
	seenTrades     map[string]struct{}
}

// New constructs an engine around its collaborators. A nil notifier discards
// notifications, a nil registerer uses the process-default Prometheus
// registry and a nil logger writes to stderr.
func New(
	cfg Config,
	gw gateway.Gateway,
	feed gateway.Datafeed,
	store persistence.Store,
	registry *strategy.Registry,
	notifier Notifier,
	logger *log.Logger,
	registerer prometheus.Registerer,
) (*Engine, error) {
	if gw == nil {
		return nil, errs.New("engine", errs.CodeInvalid, errs.WithMessage("gateway is required"))
	}
	if store == nil {
		store = persistence.NewMemoryStore()
	}
	if registry == nil {
		registry = strategy.NewRegistry()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[cta-engine] ", log.LstdFlags|log.Lmsgprefix)
	}
	queue := cfg.InitQueueDepth
	if queue <= 0 {
		queue = defaultInitQueueDepth
	}
	pool, err := worker.NewPool(1, queue)
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}
	var limiter *rate.Limiter
	if cfg.OrderRate > 0 {
		burst := cfg.OrderBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.OrderRate), burst)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        cfg,
		logger:     logger,
		gateway:    gw,
		datafeed:   feed,
		store:      store,
		registry:   registry,
		notifier:   notifier,
		metrics:    NewMetrics(registerer),
		limiter:    limiter,
		initPool:   pool,
		baseCtx:    ctx,
		baseCancel: cancel,
		strategies: make(map[string]strategy.Strategy),
		settings:   make(map[string]persistence.StrategySetting),
		data:       make(map[string]map[string]any),
		index:      newRelationIndex(),
		stopOrders: make(map[string]*schema.StopOrder),
		seenTrades: make(map[string]struct{}),
	}, nil
}

var _ strategy.Trader = (*Engine)(nil)

// ProcessTick evaluates stop-order triggers for the instrument and dispatches
// the tick to subscribed, initialized strategies in subscription order. Ticks
// for instruments with no subscribers are dropped without side effects.
func (e *Engine) ProcessTick(tick *schema.Tick) {
	if tick == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	subscribers := e.index.strategiesFor(tick.QualifiedSymbol())
	if len(subscribers) == 0 {
		return
	}
	e.metrics.ticksTotal.Inc()

	e.checkStopOrders(tick)
	for _, s := range subscribers {
		if !s.Inited() {
			continue
		}
		e.callStrategy(s, func() { s.OnTick(tick) })
	}
}

// ProcessOrder attributes a broker order event to its owning strategy. Events
// for unknown order ids are dropped. A terminal status removes the id from
// the active set before the callback; the order→strategy mapping is retained
// so late trade events still resolve.
func (e *Engine) ProcessOrder(order *schema.Order) {
	if order == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.index.ownerOf(order.OrderID)
	if !ok {
		return
	}
	e.metrics.ordersTotal.Inc()

	if !order.Active() {
		e.index.markInactive(order.OrderID)
	}

	if order.Type == schema.OrderTypeStop {
		// Venue-native stop order: synthesize the stop-order view so the
		// strategy sees one uniform callback for both implementations.
		so := &schema.StopOrder{
			Symbol:       order.Symbol,
			Exchange:     order.Exchange,
			Direction:    order.Direction,
			Offset:       order.Offset,
			Price:        order.Price,
			Volume:       order.Volume,
			StopOrderID:  order.OrderID,
			StrategyName: s.Name(),
			CreatedAt:    order.Time,
			OrderIDs:     []string{order.OrderID},
			Status:       schema.StopStatusFromOrder(order.Status),
		}
		e.callStrategy(s, func() { s.OnStopOrder(so) })
	}

	e.callStrategy(s, func() { s.OnOrder(order) })
}

// ProcessTrade attributes a fill to its owning strategy. Duplicate trade ids
// are dropped. The position is updated before the callback so OnTrade
// observes the post-fill position; the variable snapshot is persisted after.
func (e *Engine) ProcessTrade(trade *schema.Trade) {
	if trade == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, seen := e.seenTrades[trade.TradeID]; seen {
		e.metrics.duplicateTradesTotal.Inc()
		return
	}
	e.seenTrades[trade.TradeID] = struct{}{}

	s, ok := e.index.ownerOf(trade.OrderID)
	if !ok {
		return
	}
	e.metrics.tradesTotal.Inc()

	if trade.Direction == schema.DirectionLong {
		s.SetPos(s.Pos().Add(trade.Volume))
	} else {
		s.SetPos(s.Pos().Sub(trade.Volume))
	}

	e.callStrategy(s, func() { s.OnTrade(trade) })

	e.syncStrategyData(s)
	e.putStrategyEvent(s)
}

// callStrategy invokes a strategy callback behind the fault guard. A panic is
// contained to the faulting strategy: both status flags drop to false, taking
// it out of dispatch until it is re-initialized.
func (e *Engine) callStrategy(s strategy.Strategy, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		s.SetTrading(false)
		s.SetInited(false)
		e.metrics.strategyFaults.WithLabelValues(s.Name()).Inc()
		e.writeLog(fmt.Sprintf("callback fault, strategy halted: %v\n%s", r, debug.Stack()), s)
	}()
	fn()
}

// WriteLog emits a log notification tagged with the strategy, when given.
func (e *Engine) WriteLog(msg string, s strategy.Strategy) {
	e.writeLog(msg, s)
}

func (e *Engine) writeLog(msg string, s strategy.Strategy) {
	entry := LogEntry{Time: time.Now(), Message: msg}
	if s != nil {
		entry.Strategy = s.Name()
		e.logger.Printf("%s: %s", s.Name(), msg)
	} else {
		e.logger.Print(msg)
	}
	e.notifier.PutLog(entry)
}

// PriceTick returns the minimum price increment of the strategy's contract.
func (e *Engine) PriceTick(s strategy.Strategy) (decimal.Decimal, bool) {
	contract, ok := e.gateway.Contract(s.Symbol())
	if !ok {
		return decimal.Zero, false
	}
	return contract.PriceTick, true
}

// ContractSize returns the contract multiplier of the strategy's contract.
func (e *Engine) ContractSize(s strategy.Strategy) (decimal.Decimal, bool) {
	contract, ok := e.gateway.Contract(s.Symbol())
	if !ok {
		return decimal.Zero, false
	}
	return contract.Size, true
}

// LoadBar loads up to days of historical bars for strategy warm-up. The
// gateway serves history when the contract supports it, the external
// datafeed otherwise. Safe to call from OnInit.
func (e *Engine) LoadBar(s strategy.Strategy, days int, interval schema.Interval) []schema.Bar {
	code, exch, err := schema.ParseSymbol(s.Symbol())
	if err != nil {
		e.writeLog("history request dropped: "+err.Error(), s)
		return nil
	}
	end := time.Now()
	req := schema.HistoryRequest{
		Symbol:   code,
		Exchange: exch,
		Interval: interval,
		Start:    end.AddDate(0, 0, -days),
		End:      end,
	}
	if contract, ok := e.gateway.Contract(s.Symbol()); ok && contract.HistorySupported {
		bars, err := e.gateway.QueryHistory(e.baseCtx, req)
		if err != nil {
			e.writeLog("gateway history query failed: "+err.Error(), s)
		} else if len(bars) > 0 {
			return bars
		}
	}
	if e.datafeed == nil {
		return nil
	}
	bars, err := e.datafeed.QueryBarHistory(e.baseCtx, req)
	if err != nil {
		e.writeLog("datafeed history query failed: "+err.Error(), s)
		return nil
	}
	return bars
}

// Status returns the current state snapshot of a strategy.
func (e *Engine) Status(name string) (StrategyStatus, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.strategies[name]
	if !ok {
		return StrategyStatus{}, false
	}
	return statusOf(s), true
}

// StrategyNames returns the tracked strategy names in sorted order.
func (e *Engine) StrategyNames() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sortedNames()
}

// sortedNames is called with the engine lock held.
func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func statusOf(s strategy.Strategy) StrategyStatus {
	return StrategyStatus{
		Name:       s.Name(),
		ClassName:  s.ClassName(),
		Symbol:     s.Symbol(),
		Inited:     s.Inited(),
		Trading:    s.Trading(),
		Pos:        s.Pos(),
		Parameters: s.Parameters(),
		Variables:  s.Variables(),
	}
}

// putStrategyEvent is called with the engine lock held.
func (e *Engine) putStrategyEvent(s strategy.Strategy) {
	e.notifier.PutStrategyStatus(statusOf(s))
}

func (e *Engine) putStopOrderEvent(so *schema.StopOrder) {
	e.notifier.PutStopOrder(*so)
}
