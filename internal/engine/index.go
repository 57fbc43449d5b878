package engine

import (
	"github.com/quantfold/cta/internal/strategy"
)

// relationIndex keeps the three coupled mappings between instruments,
// strategies and order ids consistent as a unit. It carries no locking of
// its own: the engine mutex guards all access.
type relationIndex struct {
	symbolStrategies map[string][]strategy.Strategy
	orderStrategy    map[string]strategy.Strategy
	strategyOrders   map[string]map[string]struct{}
}

func newRelationIndex() *relationIndex {
	return &relationIndex{
		symbolStrategies: make(map[string][]strategy.Strategy),
		orderStrategy:    make(map[string]strategy.Strategy),
		strategyOrders:   make(map[string]map[string]struct{}),
	}
}

// bindSymbol appends the strategy to the instrument's subscription list.
// Insertion order is dispatch order.
func (idx *relationIndex) bindSymbol(symbol string, s strategy.Strategy) {
	idx.symbolStrategies[symbol] = append(idx.symbolStrategies[symbol], s)
}

// strategiesFor returns a snapshot of the instrument's subscribers.
func (idx *relationIndex) strategiesFor(symbol string) []strategy.Strategy {
	list := idx.symbolStrategies[symbol]
	if len(list) == 0 {
		return nil
	}
	return append([]strategy.Strategy(nil), list...)
}

// linkOrder records order→strategy and strategy→order in one step.
func (idx *relationIndex) linkOrder(orderID string, s strategy.Strategy) {
	idx.orderStrategy[orderID] = s
	ids, ok := idx.strategyOrders[s.Name()]
	if !ok {
		ids = make(map[string]struct{})
		idx.strategyOrders[s.Name()] = ids
	}
	ids[orderID] = struct{}{}
}

// ownerOf resolves the strategy that owns the order id.
func (idx *relationIndex) ownerOf(orderID string) (strategy.Strategy, bool) {
	s, ok := idx.orderStrategy[orderID]
	return s, ok
}

// markInactive removes the id from its owner's active set. The reverse
// order→strategy entry is retained so later trade events referencing the id
// still resolve.
func (idx *relationIndex) markInactive(orderID string) {
	s, ok := idx.orderStrategy[orderID]
	if !ok {
		return
	}
	if ids, ok := idx.strategyOrders[s.Name()]; ok {
		delete(ids, orderID)
	}
}

// activeOrderIDs returns a copy of the strategy's active order ids.
func (idx *relationIndex) activeOrderIDs(name string) []string {
	ids := idx.strategyOrders[name]
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	return out
}

// unbindStrategy removes the strategy from its instrument's list and purges
// every order-id mapping it owns, in both directions.
func (idx *relationIndex) unbindStrategy(s strategy.Strategy) {
	symbol := s.Symbol()
	list := idx.symbolStrategies[symbol]
	for i, candidate := range list {
		if candidate == s {
			idx.symbolStrategies[symbol] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(idx.symbolStrategies[symbol]) == 0 {
		delete(idx.symbolStrategies, symbol)
	}

	delete(idx.strategyOrders, s.Name())
	for id, owner := range idx.orderStrategy {
		if owner == s {
			delete(idx.orderStrategy, id)
		}
	}
}
