package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"dailytrader/internal/model"
)

const (
	reasonInsufficientFunds  = "Insufficient funds"
	reasonInsufficientShares = "Insufficient shares"
)

// Paper is an in-memory broker that simulates fills without real money.
// Market orders execute immediately at the supplied price; limit orders are
// recorded as pending and never fill on their own. All operations are
// indivisible under one mutex.
type Paper struct {
	mu             sync.Mutex
	connected      bool
	balance        float64
	initialBalance float64
	positions      map[string]*model.Position
	orders         map[string]model.Order
	history        []model.Order
	now            func() time.Time
}

// NewPaper creates a paper broker with the given starting cash.
func NewPaper(initialBalance float64) *Paper {
	return &Paper{
		balance:        initialBalance,
		initialBalance: initialBalance,
		positions:      make(map[string]*model.Position),
		orders:         make(map[string]model.Order),
		now:            time.Now,
	}
}

func (p *Paper) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *Paper) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

// Balance returns the current cash balance.
func (p *Paper) Balance() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

// Positions returns a snapshot of all open positions.
func (p *Paper) Positions() []model.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// PlaceOrder validates and executes an order. Insufficient funds or shares
// produce a rejected order and leave the ledger untouched.
func (p *Paper) PlaceOrder(req OrderRequest) (model.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return model.Order{}, model.ErrNotConnected
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return model.Order{}, fmt.Errorf("%w: %q", model.ErrInvalidSide, req.Side)
	}
	if req.Quantity <= 0 {
		return model.Order{}, fmt.Errorf("%w: %v", model.ErrInvalidQuantity, req.Quantity)
	}
	order := model.Order{
		OrderID:   uuid.NewString(),
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		OrderType: req.Type,
		Side:      req.Side,
		Price:     req.Price,
		Timestamp: p.now(),
	}

	if req.Type != model.OrderMarket {
		// Limit orders may carry no price; they are recorded and wait for
		// a cancel.
		order.Status = model.StatusPending
		p.orders[order.OrderID] = order
		return order, nil
	}

	// Only the market simulation needs a fill price.
	if req.Price == nil {
		return model.Order{}, model.ErrPriceRequired
	}
	price := *req.Price
	notional := price * req.Quantity

	switch req.Side {
	case model.SideBuy:
		if notional > p.balance {
			order.Status = model.StatusRejected
			order.Reason = reasonInsufficientFunds
			return order, nil
		}
		p.balance -= notional
		if pos, ok := p.positions[req.Symbol]; ok {
			pos.Quantity += req.Quantity
			pos.TotalCost += notional
			pos.AvgPrice = pos.TotalCost / pos.Quantity
		} else {
			p.positions[req.Symbol] = &model.Position{
				Symbol:    req.Symbol,
				Quantity:  req.Quantity,
				AvgPrice:  price,
				TotalCost: notional,
			}
		}

	case model.SideSell:
		pos, ok := p.positions[req.Symbol]
		if !ok || pos.Quantity < req.Quantity {
			order.Status = model.StatusRejected
			order.Reason = reasonInsufficientShares
			return order, nil
		}
		p.balance += notional
		pos.Quantity -= req.Quantity
		pos.TotalCost -= pos.AvgPrice * req.Quantity
		if pos.Quantity == 0 {
			delete(p.positions, req.Symbol)
		}
	}

	order.Status = model.StatusFilled
	p.orders[order.OrderID] = order
	p.history = append(p.history, order)
	return order, nil
}

// CancelOrder cancels a pending order. Filled, rejected, and already
// cancelled orders cannot be cancelled.
func (p *Paper) CancelOrder(orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrOrderNotFound, orderID)
	}
	if order.Status != model.StatusPending {
		return fmt.Errorf("order %s is %s, only pending orders can be cancelled",
			orderID, order.Status)
	}
	order.Status = model.StatusCancelled
	p.orders[orderID] = order
	return nil
}

// OrderStatus looks up an order by ID.
func (p *Paper) OrderStatus(orderID string) (model.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	order, ok := p.orders[orderID]
	if !ok {
		return model.Order{}, fmt.Errorf("%w: %s", model.ErrOrderNotFound, orderID)
	}
	return order, nil
}

// OrderHistory returns filled orders with timestamps inside [start, end].
func (p *Paper) OrderHistory(start, end time.Time) []model.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.Order
	for _, o := range p.history {
		if !o.Timestamp.Before(start) && !o.Timestamp.After(end) {
			out = append(out, o)
		}
	}
	return out
}

// PortfolioValue marks all positions to the given prices and adds cash.
// Positions without a quote fall back to their average cost.
func (p *Paper) PortfolioValue(prices map[string]float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.balance
	for symbol, pos := range p.positions {
		price, ok := prices[symbol]
		if !ok {
			price = pos.AvgPrice
		}
		total += pos.Quantity * price
	}
	return total
}
