package model

// Position represents an open holding in a single symbol.
// Invariant: AvgPrice == TotalCost / Quantity within floating tolerance.
// A position exists only while Quantity > 0; the broker deletes it the
// moment the quantity reaches exactly zero.
type Position struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	AvgPrice  float64 `json:"avg_price"`
	TotalCost float64 `json:"total_cost"`
}

// MarketValue returns the position value at the given price.
func (p *Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}
