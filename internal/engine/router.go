package engine

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/cta/errs"
	"github.com/quantfold/cta/internal/schema"
	"github.com/quantfold/cta/internal/strategy"
)

// SendOrder routes a strategy trade intent. Price and volume are quantized
// to the contract's increments first. A stop intent goes to the venue when
// the contract supports native stops and into the local simulator otherwise.
// The returned ids cover every submitted leg; empty means total failure.
func (e *Engine) SendOrder(
	s strategy.Strategy,
	direction schema.Direction,
	offset schema.Offset,
	price, volume decimal.Decimal,
	stop, lock, net bool,
) []string {
	contract, ok := e.gateway.Contract(s.Symbol())
	if !ok {
		e.writeLog("order rejected, unknown contract "+s.Symbol(), s)
		return nil
	}

	price = roundTo(price, contract.PriceTick)
	volume = roundTo(volume, contract.MinVolume)

	switch {
	case stop && contract.StopSupported:
		return e.sendServerOrder(s, contract, direction, offset, price, volume, schema.OrderTypeStop, lock, net)
	case stop:
		return e.sendLocalStopOrder(s, direction, offset, price, volume, lock, net)
	default:
		return e.sendServerOrder(s, contract, direction, offset, price, volume, schema.OrderTypeLimit, lock, net)
	}
}

// sendServerOrder expands one logical request through the gateway's
// position-accounting conversion, submits each leg and links every accepted
// id to the strategy before returning. Called with the engine lock held.
func (e *Engine) sendServerOrder(
	s strategy.Strategy,
	contract *schema.Contract,
	direction schema.Direction,
	offset schema.Offset,
	price, volume decimal.Decimal,
	orderType schema.OrderType,
	lock, net bool,
) []string {
	req := &schema.OrderRequest{
		Symbol:    contract.Symbol,
		Exchange:  contract.Exchange,
		Direction: direction,
		Offset:    offset,
		Type:      orderType,
		Price:     price,
		Volume:    volume,
		Reference: "cta_" + s.Name(),
	}

	var orderIDs []string
	for _, leg := range e.gateway.ConvertOrderRequest(req, lock, net) {
		if e.limiter != nil && !e.limiter.Allow() {
			e.writeLog("order leg throttled for "+contract.QualifiedSymbol(), s)
			continue
		}
		orderID := e.gateway.SendOrder(e.baseCtx, leg)
		if orderID == "" {
			continue
		}
		orderIDs = append(orderIDs, orderID)
		e.index.linkOrder(orderID, s)
	}
	if len(orderIDs) == 0 {
		fail := errs.New("router", errs.CodeSubmission,
			errs.WithMessage("order submission failed for "+contract.QualifiedSymbol()),
			errs.WithStrategy(s.Name()))
		e.writeLog(fail.Error(), s)
	}
	return orderIDs
}

// CancelOrder cancels by id. Stop-order ids resolve in the local simulator
// with a synchronous callback; venue ids turn into a fire-and-forget cancel
// request whose outcome arrives through the order event stream.
func (e *Engine) CancelOrder(s strategy.Strategy, orderID string) {
	if schema.IsStopOrderID(orderID) {
		e.cancelLocalStopOrder(orderID)
		return
	}
	e.cancelServerOrder(s, orderID)
}

// cancelServerOrder is called with the engine lock held.
func (e *Engine) cancelServerOrder(s strategy.Strategy, orderID string) {
	order, ok := e.gateway.Order(orderID)
	if !ok {
		e.writeLog("cancel failed, order not found: "+orderID, s)
		return
	}
	e.gateway.CancelOrder(e.baseCtx, &schema.CancelRequest{
		OrderID:  orderID,
		Symbol:   order.Symbol,
		Exchange: order.Exchange,
	})
}

// CancelAll cancels every active order of the strategy. The id set is
// snapshotted first: cancellation mutates it.
func (e *Engine) CancelAll(s strategy.Strategy) {
	e.cancelAll(s)
}

func (e *Engine) cancelAll(s strategy.Strategy) {
	for _, orderID := range e.index.activeOrderIDs(s.Name()) {
		e.CancelOrder(s, orderID)
	}
}

// roundTo quantizes value to the nearest multiple of step. A zero step means
// the contract does not constrain the value.
func roundTo(value, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return value
	}
	return value.Div(step).Round(0).Mul(step)
}
