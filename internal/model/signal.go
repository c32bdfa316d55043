package model

import "time"

// Action is the trade decision carried by a Signal.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Signal is the final output of one analysis call: an action, a bounded
// confidence, and the ordered audit trail of how the decision was reached.
// Reasoning is append-only during fusion and never reordered.
type Signal struct {
	Symbol       string    `json:"symbol"`
	Action       Action    `json:"action"`
	Confidence   float64   `json:"confidence"` // always in [0, 0.95]
	Reasoning    []string  `json:"reasoning"`
	CurrentPrice float64   `json:"current_price"`
	StopLoss     *float64  `json:"stop_loss,omitempty"`
	TakeProfit   *float64  `json:"take_profit,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
