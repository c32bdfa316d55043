package broker

import "dailytrader/internal/model"

// PositionState is the persisted form of an open position.
type PositionState struct {
	Quantity  float64 `json:"quantity"`
	AvgPrice  float64 `json:"avg_price"`
	TotalCost float64 `json:"total_cost"`
}

// State is the persistable snapshot of a paper broker's ledger.
type State struct {
	Balance        float64                  `json:"balance"`
	InitialBalance float64                  `json:"initial_balance"`
	Positions      map[string]PositionState `json:"positions"`
	OrderHistory   []model.Order            `json:"order_history"`
}

// State captures the current ledger for persistence.
func (p *Paper) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := make(map[string]PositionState, len(p.positions))
	for symbol, pos := range p.positions {
		positions[symbol] = PositionState{
			Quantity:  pos.Quantity,
			AvgPrice:  pos.AvgPrice,
			TotalCost: pos.TotalCost,
		}
	}
	history := make([]model.Order, len(p.history))
	copy(history, p.history)

	return State{
		Balance:        p.balance,
		InitialBalance: p.initialBalance,
		Positions:      positions,
		OrderHistory:   history,
	}
}

// Restore replaces the ledger with a previously captured snapshot. Filled
// orders from the snapshot are reindexed so OrderStatus keeps working
// across restarts.
func (p *Paper) Restore(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.balance = s.Balance
	if s.InitialBalance != 0 {
		p.initialBalance = s.InitialBalance
	}

	p.positions = make(map[string]*model.Position, len(s.Positions))
	for symbol, ps := range s.Positions {
		p.positions[symbol] = &model.Position{
			Symbol:    symbol,
			Quantity:  ps.Quantity,
			AvgPrice:  ps.AvgPrice,
			TotalCost: ps.TotalCost,
		}
	}

	p.history = make([]model.Order, len(s.OrderHistory))
	copy(p.history, s.OrderHistory)
	p.orders = make(map[string]model.Order, len(p.history))
	for _, o := range p.history {
		p.orders[o.OrderID] = o
	}
}
