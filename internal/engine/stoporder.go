package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/cta/internal/schema"
	"github.com/quantfold/cta/internal/strategy"
)

// sendLocalStopOrder registers a simulated stop order and returns its
// synthetic id. Called with the engine lock held.
func (e *Engine) sendLocalStopOrder(
	s strategy.Strategy,
	direction schema.Direction,
	offset schema.Offset,
	price, volume decimal.Decimal,
	lock, net bool,
) []string {
	e.stopOrderCount++
	stopOrderID := fmt.Sprintf("%s.%d", schema.StopOrderPrefix, e.stopOrderCount)

	code, exch, err := schema.ParseSymbol(s.Symbol())
	if err != nil {
		e.writeLog("stop order rejected: "+err.Error(), s)
		return nil
	}

	so := &schema.StopOrder{
		Symbol:       code,
		Exchange:     exch,
		Direction:    direction,
		Offset:       offset,
		Price:        price,
		Volume:       volume,
		StopOrderID:  stopOrderID,
		StrategyName: s.Name(),
		CreatedAt:    time.Now(),
		Lock:         lock,
		Net:          net,
		Status:       schema.StopOrderWaiting,
	}
	e.stopOrders[stopOrderID] = so
	e.index.linkOrder(stopOrderID, s)
	e.metrics.stopOrdersActive.Inc()

	e.callStrategy(s, func() { s.OnStopOrder(so) })
	e.putStopOrderEvent(so)

	return []string{stopOrderID}
}

// cancelLocalStopOrder removes a waiting stop order and notifies the owner
// synchronously. Unknown ids are ignored. Called with the engine lock held.
func (e *Engine) cancelLocalStopOrder(stopOrderID string) {
	so, ok := e.stopOrders[stopOrderID]
	if !ok {
		return
	}
	s, ok := e.strategies[so.StrategyName]
	if !ok {
		delete(e.stopOrders, stopOrderID)
		e.metrics.stopOrdersActive.Dec()
		return
	}

	delete(e.stopOrders, stopOrderID)
	e.index.markInactive(stopOrderID)
	so.Status = schema.StopOrderCancelled
	e.metrics.stopOrdersActive.Dec()

	e.callStrategy(s, func() { s.OnStopOrder(so) })
	e.putStopOrderEvent(so)
}

// checkStopOrders evaluates every waiting stop order against the tick. A
// triggered stop converts into real limit orders priced aggressively enough
// to fill immediately: the price limit when the venue publishes one, the
// fifth book level otherwise. Submission failure leaves the stop Waiting for
// the next tick. Called with the engine lock held.
func (e *Engine) checkStopOrders(tick *schema.Tick) {
	if len(e.stopOrders) == 0 {
		return
	}

	// Snapshot in creation order: a callback fired mid-loop may cancel
	// another stop order, so each entry is re-checked before evaluation.
	snapshot := make([]*schema.StopOrder, 0, len(e.stopOrders))
	for _, so := range e.stopOrders {
		snapshot = append(snapshot, so)
	}
	sort.Slice(snapshot, func(i, j int) bool {
		return stopOrderSeq(snapshot[i].StopOrderID) < stopOrderSeq(snapshot[j].StopOrderID)
	})

	symbol := tick.QualifiedSymbol()
	for _, so := range snapshot {
		if so.QualifiedSymbol() != symbol {
			continue
		}
		if _, live := e.stopOrders[so.StopOrderID]; !live {
			continue
		}

		longTriggered := so.Direction == schema.DirectionLong && tick.LastPrice.GreaterThanOrEqual(so.Price)
		shortTriggered := so.Direction == schema.DirectionShort && tick.LastPrice.LessThanOrEqual(so.Price)
		if !longTriggered && !shortTriggered {
			continue
		}

		s, ok := e.strategies[so.StrategyName]
		if !ok {
			continue
		}
		contract, ok := e.gateway.Contract(symbol)
		if !ok {
			e.writeLog("stop trigger dropped, unknown contract "+symbol, s)
			continue
		}

		var price decimal.Decimal
		if longTriggered {
			price = tick.LimitUp
			if price.IsZero() {
				price = tick.AskPrice(schema.BookDepth)
			}
		} else {
			price = tick.LimitDown
			if price.IsZero() {
				price = tick.BidPrice(schema.BookDepth)
			}
		}

		orderIDs := e.sendServerOrder(s, contract, so.Direction, so.Offset, price, so.Volume, schema.OrderTypeLimit, so.Lock, so.Net)
		if len(orderIDs) == 0 {
			continue
		}

		delete(e.stopOrders, so.StopOrderID)
		e.index.markInactive(so.StopOrderID)
		so.Status = schema.StopOrderTriggered
		so.OrderIDs = orderIDs
		e.metrics.stopOrdersTriggered.Inc()
		e.metrics.stopOrdersActive.Dec()

		e.callStrategy(s, func() { s.OnStopOrder(so) })
		e.putStopOrderEvent(so)
	}
}

// stopOrderSeq extracts the creation sequence from a stop-order id.
func stopOrderSeq(id string) int64 {
	raw, ok := strings.CutPrefix(id, schema.StopOrderPrefix+".")
	if !ok {
		return 0
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return seq
}
