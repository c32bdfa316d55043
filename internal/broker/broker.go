// Package broker provides order execution against a simulated cash ledger.
//
// Business rejections (insufficient funds or shares) come back as rejected
// orders with a reason and no error; programming errors (bad side, zero
// quantity, missing price) are returned as errors and never touch the ledger.
package broker

import (
	"time"

	"dailytrader/internal/model"
)

// OrderRequest describes an order to place. Price is the execution price for
// market orders and the limit level for limit orders.
type OrderRequest struct {
	Symbol   string
	Quantity float64
	Type     model.OrderType
	Side     model.Side
	Price    *float64
}

// Broker is the execution surface the bot trades through.
type Broker interface {
	Connect() error
	Disconnect() error
	Balance() float64
	Positions() []model.Position
	PlaceOrder(req OrderRequest) (model.Order, error)
	CancelOrder(orderID string) error
	OrderStatus(orderID string) (model.Order, error)
	OrderHistory(start, end time.Time) []model.Order
	PortfolioValue(prices map[string]float64) float64
}
