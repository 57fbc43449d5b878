// Package gateway defines the broker and datafeed collaborator contracts the
// engine routes orders and subscriptions through.
package gateway

import (
	"context"

	"github.com/quantfold/cta/internal/schema"
)

// Gateway is the order-routing collaborator. Implementations own network
// timeouts and retries; the engine treats every call as best-effort.
type Gateway interface {
	// SendOrder submits one venue order request and returns its qualified
	// order id, or an empty string when submission fails.
	SendOrder(ctx context.Context, req *schema.OrderRequest) string
	// CancelOrder requests cancellation of a resting order. The result is
	// observed later through the order event stream, never synchronously.
	CancelOrder(ctx context.Context, req *schema.CancelRequest)
	// ConvertOrderRequest expands one logical request into the venue
	// requests required by the lock/net position-accounting policy.
	ConvertOrderRequest(req *schema.OrderRequest, lock, net bool) []*schema.OrderRequest
	// Contract looks up instrument metadata by market-qualified symbol.
	Contract(symbol string) (*schema.Contract, bool)
	// Order looks up the latest known state of an order by id.
	Order(orderID string) (*schema.Order, bool)
	// Subscribe starts market data delivery for the instrument.
	Subscribe(symbol string) error
	// QueryHistory loads historical bars when the contract supports it.
	QueryHistory(ctx context.Context, req schema.HistoryRequest) ([]schema.Bar, error)
}

// Datafeed is the external historical data provider used when the gateway
// cannot serve history for a contract.
type Datafeed interface {
	QueryBarHistory(ctx context.Context, req schema.HistoryRequest) ([]schema.Bar, error)
}
