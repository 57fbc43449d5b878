package engine

import (
	"context"
	"fmt"

	"github.com/quantfold/cta/internal/persistence"
	"github.com/quantfold/cta/internal/schema"
	"github.com/quantfold/cta/internal/strategy"
)

// AddStrategy creates a strategy instance and registers it for dispatch. The
// instance name must be unique, the symbol market-qualified and the class
// registered. The new instance starts with inited=false and trading=false.
func (e *Engine) AddStrategy(className, name, symbol string, setting map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.strategies[name]; exists {
		e.writeLog("add failed, strategy name already in use: "+name, nil)
		return fmt.Errorf("%w: %s", ErrStrategyExists, name)
	}
	if _, _, err := schema.ParseSymbol(symbol); err != nil {
		e.writeLog("add failed, invalid symbol "+symbol+": "+err.Error(), nil)
		return fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
	}
	s, ok := e.registry.Create(className, e, name, symbol, setting)
	if !ok {
		e.writeLog("add failed, unknown strategy class: "+className, nil)
		return fmt.Errorf("%w: %s", ErrClassNotFound, className)
	}

	e.strategies[name] = s
	e.index.bindSymbol(symbol, s)
	e.settings[name] = persistence.StrategySetting{
		ClassName: className,
		Symbol:    symbol,
		Setting:   setting,
	}
	e.saveSettings()
	e.putStrategyEvent(s)
	return nil
}

// InitStrategy queues asynchronous initialization of the strategy. Inits run
// one at a time on a dedicated worker in submission order; a strategy that
// is already initialized logs and skips.
func (e *Engine) InitStrategy(name string) error {
	e.mu.RLock()
	_, ok := e.strategies[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	if err := e.initPool.Submit(e.baseCtx, func(ctx context.Context) {
		e.initStrategy(ctx, name)
	}); err != nil {
		e.writeLog("init not queued for "+name+": "+err.Error(), nil)
		return fmt.Errorf("queue init: %w", err)
	}
	return nil
}

// initStrategy runs on the init worker. OnInit is invoked without the engine
// lock: the strategy is still invisible to dispatch (inited=false, no live
// orders), so blocking history loads cannot stall event processing.
func (e *Engine) initStrategy(_ context.Context, name string) {
	e.mu.Lock()
	s, ok := e.strategies[name]
	if !ok {
		e.mu.Unlock()
		return
	}
	if s.Inited() {
		e.mu.Unlock()
		e.writeLog("already initialized, ignoring duplicate init request", s)
		return
	}
	e.mu.Unlock()

	e.writeLog("initialization started", s)
	e.callStrategy(s, s.OnInit)

	e.mu.Lock()
	if values, ok := e.data[name]; ok {
		s.ApplyVariables(values)
	}
	symbol := s.Symbol()
	e.mu.Unlock()

	if _, ok := e.gateway.Contract(symbol); ok {
		if err := e.gateway.Subscribe(symbol); err != nil {
			e.writeLog("market data subscription failed for "+symbol+": "+err.Error(), s)
		}
	} else {
		e.writeLog("market data subscription failed, unknown contract "+symbol, s)
	}

	e.mu.Lock()
	s.SetInited(true)
	e.putStrategyEvent(s)
	e.mu.Unlock()
	e.writeLog("initialization complete", s)
}

// StartStrategy transitions an initialized, non-trading strategy to trading.
// OnStart runs before the flag flips so the strategy cannot trade from
// inside it.
func (e *Engine) StartStrategy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.strategies[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	if !s.Inited() {
		e.writeLog("start failed, initialize the strategy first", s)
		return fmt.Errorf("%w: %s", ErrNotInited, name)
	}
	if s.Trading() {
		e.writeLog("start ignored, already trading", s)
		return fmt.Errorf("%w: %s", ErrAlreadyTrading, name)
	}

	e.callStrategy(s, s.OnStart)
	// A fault in OnStart drops inited; only a healthy strategy may trade.
	if s.Inited() {
		s.SetTrading(true)
	}
	e.putStrategyEvent(s)
	return nil
}

// StopStrategy transitions a trading strategy back to standby: OnStop runs,
// the trading flag drops, every active order and stop order is cancelled and
// the variable snapshot is persisted. Stopping a non-trading strategy is a
// no-op.
func (e *Engine) StopStrategy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.strategies[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	if !s.Trading() {
		return nil
	}

	e.callStrategy(s, s.OnStop)
	s.SetTrading(false)
	e.cancelAll(s)
	e.syncStrategyData(s)
	e.putStrategyEvent(s)
	return nil
}

// EditStrategy applies a new setting map to a live strategy. Class and
// symbol are fixed for the lifetime of the instance.
func (e *Engine) EditStrategy(name string, setting map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.strategies[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	s.UpdateSetting(setting)

	stored := e.settings[name]
	stored.Setting = setting
	e.settings[name] = stored
	e.saveSettings()
	e.putStrategyEvent(s)
	return nil
}

// RemoveStrategy removes a non-trading strategy and purges its persisted
// state, index entries and waiting stop orders.
func (e *Engine) RemoveStrategy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.strategies[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrStrategyNotFound, name)
	}
	if s.Trading() {
		e.writeLog("remove rejected, stop the strategy first", s)
		return fmt.Errorf("%w: %s", ErrStrategyTrading, name)
	}

	delete(e.settings, name)
	e.saveSettings()
	delete(e.data, name)
	e.saveData()

	for id, so := range e.stopOrders {
		if so.StrategyName == name {
			delete(e.stopOrders, id)
			e.metrics.stopOrdersActive.Dec()
		}
	}
	e.index.unbindStrategy(s)
	delete(e.strategies, name)

	e.writeLog("strategy removed: "+name, nil)
	return nil
}

// InitAll queues initialization for every strategy.
func (e *Engine) InitAll() {
	for _, name := range e.StrategyNames() {
		if err := e.InitStrategy(name); err != nil {
			e.writeLog("init all: "+err.Error(), nil)
		}
	}
}

// StartAll starts every strategy, skipping the ones that refuse.
func (e *Engine) StartAll() {
	for _, name := range e.StrategyNames() {
		if err := e.StartStrategy(name); err != nil {
			e.writeLog("start all: "+err.Error(), nil)
		}
	}
}

// StopAll stops every strategy.
func (e *Engine) StopAll() {
	for _, name := range e.StrategyNames() {
		if err := e.StopStrategy(name); err != nil {
			e.writeLog("stop all: "+err.Error(), nil)
		}
	}
}

// Restore loads persisted settings and variable snapshots from the store and
// re-creates every configured strategy. Variables are applied later, during
// initialization.
func (e *Engine) Restore(ctx context.Context) error {
	settings, err := e.store.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	data, err := e.store.LoadData(ctx)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}

	e.mu.Lock()
	e.data = data
	if e.data == nil {
		e.data = make(map[string]map[string]any)
	}
	e.mu.Unlock()

	for name, setting := range settings {
		if err := e.AddStrategy(setting.ClassName, name, setting.Symbol, setting.Setting); err != nil {
			e.writeLog("restore skipped "+name+": "+err.Error(), nil)
		}
	}
	return nil
}

// Close stops every strategy and shuts the init worker down.
func (e *Engine) Close(ctx context.Context) error {
	e.StopAll()
	e.baseCancel()
	if err := e.initPool.Shutdown(ctx); err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}

// syncStrategyData persists the strategy's variable snapshot. Called with
// the engine lock held.
func (e *Engine) syncStrategyData(s strategy.Strategy) {
	e.data[s.Name()] = s.Variables()
	e.saveData()
}

// saveSettings is called with the engine lock held.
func (e *Engine) saveSettings() {
	if err := e.store.SaveSettings(e.baseCtx, e.settings); err != nil {
		e.writeLog("settings persistence failed: "+err.Error(), nil)
	}
}

// saveData is called with the engine lock held.
func (e *Engine) saveData() {
	if err := e.store.SaveData(e.baseCtx, e.data); err != nil {
		e.writeLog("data persistence failed: "+err.Error(), nil)
	}
}
