package model

import "time"

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderType distinguishes immediately-simulated market orders from
// pass-through limit orders.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFilled    OrderStatus = "filled"
	StatusRejected  OrderStatus = "rejected"
	StatusCancelled OrderStatus = "cancelled"
)

// Order records one order placed against a broker. Orders are immutable once
// filled or rejected; pending orders may only transition to cancelled.
type Order struct {
	OrderID   string      `json:"order_id"`
	Symbol    string      `json:"symbol"`
	Quantity  float64     `json:"quantity"`
	OrderType OrderType   `json:"order_type"`
	Side      Side        `json:"side"`
	Price     *float64    `json:"price"`
	Status    OrderStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
