package broker

import (
	"errors"
	"math"
	"testing"
	"time"

	"dailytrader/internal/model"
)

const tolerance = 1e-9

func connectedPaper(t *testing.T, balance float64) *Paper {
	t.Helper()
	p := NewPaper(balance)
	if err := p.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return p
}

func marketOrder(symbol string, qty float64, side model.Side, price float64) OrderRequest {
	return OrderRequest{
		Symbol:   symbol,
		Quantity: qty,
		Type:     model.OrderMarket,
		Side:     side,
		Price:    &price,
	}
}

func mustFill(t *testing.T, p *Paper, req OrderRequest) model.Order {
	t.Helper()
	order, err := p.PlaceOrder(req)
	if err != nil {
		t.Fatalf("PlaceOrder(%s %s): %v", req.Side, req.Symbol, err)
	}
	if order.Status != model.StatusFilled {
		t.Fatalf("order status = %s (%s), want filled", order.Status, order.Reason)
	}
	return order
}

func approx(a, b float64) bool { return math.Abs(a-b) < tolerance }

func TestPlaceOrder_NotConnected(t *testing.T) {
	p := NewPaper(10000)
	_, err := p.PlaceOrder(marketOrder("AAPL", 1, model.SideBuy, 100))
	if !errors.Is(err, model.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestPlaceOrder_Validation(t *testing.T) {
	p := connectedPaper(t, 10000)

	if _, err := p.PlaceOrder(marketOrder("AAPL", 1, model.Side("short"), 100)); !errors.Is(err, model.ErrInvalidSide) {
		t.Errorf("bad side: err = %v, want ErrInvalidSide", err)
	}
	if _, err := p.PlaceOrder(marketOrder("AAPL", 0, model.SideBuy, 100)); !errors.Is(err, model.ErrInvalidQuantity) {
		t.Errorf("zero quantity: err = %v, want ErrInvalidQuantity", err)
	}
	if _, err := p.PlaceOrder(marketOrder("AAPL", -5, model.SideBuy, 100)); !errors.Is(err, model.ErrInvalidQuantity) {
		t.Errorf("negative quantity: err = %v, want ErrInvalidQuantity", err)
	}
	if _, err := p.PlaceOrder(OrderRequest{Symbol: "AAPL", Quantity: 1, Type: model.OrderMarket, Side: model.SideBuy}); !errors.Is(err, model.ErrPriceRequired) {
		t.Errorf("nil price: err = %v, want ErrPriceRequired", err)
	}
	if got := p.Balance(); got != 10000 {
		t.Errorf("balance after failed validations = %v, want untouched 10000", got)
	}
}

func TestBuy_AveragesCost(t *testing.T) {
	p := connectedPaper(t, 100000)

	mustFill(t, p, marketOrder("AAPL", 10, model.SideBuy, 100))
	mustFill(t, p, marketOrder("AAPL", 10, model.SideBuy, 120))

	positions := p.Positions()
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}
	pos := positions[0]
	if pos.Quantity != 20 {
		t.Errorf("quantity = %v, want 20", pos.Quantity)
	}
	if !approx(pos.AvgPrice, 110) {
		t.Errorf("avg price = %v, want 110", pos.AvgPrice)
	}
	if !approx(pos.TotalCost, 2200) {
		t.Errorf("total cost = %v, want 2200", pos.TotalCost)
	}
	if !approx(p.Balance(), 100000-2200) {
		t.Errorf("balance = %v, want %v", p.Balance(), 100000-2200)
	}
}

func TestBuySell_Roundtrip(t *testing.T) {
	p := connectedPaper(t, 10000)

	mustFill(t, p, marketOrder("AAPL", 10, model.SideBuy, 150))
	if !approx(p.Balance(), 8500) {
		t.Fatalf("balance after buy = %v, want 8500", p.Balance())
	}
	pos := p.Positions()[0]
	if pos.Quantity != 10 || !approx(pos.AvgPrice, 150) || !approx(pos.TotalCost, 1500) {
		t.Fatalf("position after buy = %+v, want {10 150 1500}", pos)
	}

	mustFill(t, p, marketOrder("AAPL", 5, model.SideSell, 155))
	if !approx(p.Balance(), 9275) {
		t.Errorf("balance after sell = %v, want 9275", p.Balance())
	}
	pos = p.Positions()[0]
	if pos.Quantity != 5 {
		t.Errorf("quantity after sell = %v, want 5", pos.Quantity)
	}
	// Sells reduce cost basis at average price, not fill price.
	if !approx(pos.AvgPrice, 150) || !approx(pos.TotalCost, 750) {
		t.Errorf("position after sell = %+v, want avg 150, cost 750", pos)
	}
}

func TestSell_FullExitRemovesPosition(t *testing.T) {
	p := connectedPaper(t, 10000)
	mustFill(t, p, marketOrder("AAPL", 10, model.SideBuy, 150))
	mustFill(t, p, marketOrder("AAPL", 10, model.SideSell, 160))

	if got := len(p.Positions()); got != 0 {
		t.Errorf("positions after full exit = %d, want 0", got)
	}
	if !approx(p.Balance(), 10000+100) {
		t.Errorf("balance = %v, want 10100", p.Balance())
	}
}

func TestRejection_InsufficientFunds(t *testing.T) {
	p := connectedPaper(t, 1000)
	before := p.State()

	order, err := p.PlaceOrder(marketOrder("AAPL", 10, model.SideBuy, 150))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != model.StatusRejected || order.Reason != "Insufficient funds" {
		t.Errorf("order = %s/%q, want rejected/Insufficient funds", order.Status, order.Reason)
	}
	assertStateUnchanged(t, before, p.State())
	if _, err := p.OrderStatus(order.OrderID); !errors.Is(err, model.ErrOrderNotFound) {
		t.Errorf("rejected order lookup: err = %v, want ErrOrderNotFound", err)
	}
}

func TestRejection_InsufficientShares(t *testing.T) {
	p := connectedPaper(t, 10000)
	mustFill(t, p, marketOrder("AAPL", 5, model.SideBuy, 100))
	before := p.State()

	order, err := p.PlaceOrder(marketOrder("AAPL", 10, model.SideSell, 100))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != model.StatusRejected || order.Reason != "Insufficient shares" {
		t.Errorf("order = %s/%q, want rejected/Insufficient shares", order.Status, order.Reason)
	}
	assertStateUnchanged(t, before, p.State())

	// Selling a symbol never held is rejected the same way.
	order, err = p.PlaceOrder(marketOrder("MSFT", 1, model.SideSell, 100))
	if err != nil || order.Status != model.StatusRejected {
		t.Errorf("sell of unheld symbol = %s, %v; want rejected, nil", order.Status, err)
	}
}

func assertStateUnchanged(t *testing.T, before, after State) {
	t.Helper()
	if before.Balance != after.Balance {
		t.Errorf("balance changed: %v -> %v", before.Balance, after.Balance)
	}
	if len(before.Positions) != len(after.Positions) {
		t.Fatalf("position count changed: %d -> %d", len(before.Positions), len(after.Positions))
	}
	for symbol, b := range before.Positions {
		if after.Positions[symbol] != b {
			t.Errorf("position %s changed: %+v -> %+v", symbol, b, after.Positions[symbol])
		}
	}
	if len(before.OrderHistory) != len(after.OrderHistory) {
		t.Errorf("history length changed: %d -> %d", len(before.OrderHistory), len(after.OrderHistory))
	}
}

func TestLimitOrder_PendingAndCancel(t *testing.T) {
	p := connectedPaper(t, 10000)
	limit := 140.0
	order, err := p.PlaceOrder(OrderRequest{
		Symbol: "AAPL", Quantity: 10, Type: model.OrderLimit, Side: model.SideBuy, Price: &limit,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != model.StatusPending {
		t.Fatalf("limit order status = %s, want pending", order.Status)
	}
	if got := p.Balance(); got != 10000 {
		t.Errorf("balance after pending limit = %v, want untouched", got)
	}
	if got := p.OrderHistory(time.Time{}, time.Now().Add(time.Hour)); len(got) != 0 {
		t.Errorf("pending order appeared in fill history: %d entries", len(got))
	}

	if err := p.CancelOrder(order.OrderID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	got, err := p.OrderStatus(order.OrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Errorf("status after cancel = %s, want cancelled", got.Status)
	}
	if err := p.CancelOrder(order.OrderID); err == nil {
		t.Error("second cancel succeeded, want error")
	}
}

func TestLimitOrder_NilPriceIsPending(t *testing.T) {
	p := connectedPaper(t, 10000)
	order, err := p.PlaceOrder(OrderRequest{
		Symbol: "AAPL", Quantity: 10, Type: model.OrderLimit, Side: model.SideBuy,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.Status != model.StatusPending {
		t.Fatalf("priceless limit order status = %s, want pending", order.Status)
	}
	if order.Price != nil {
		t.Errorf("price = %v, want nil preserved", *order.Price)
	}
	got, err := p.OrderStatus(order.OrderID)
	if err != nil {
		t.Fatalf("OrderStatus: %v", err)
	}
	if got.Price != nil {
		t.Errorf("stored price = %v, want nil", *got.Price)
	}
	if err := p.CancelOrder(order.OrderID); err != nil {
		t.Errorf("CancelOrder: %v", err)
	}
}

func TestCancelOrder_FilledAndUnknown(t *testing.T) {
	p := connectedPaper(t, 10000)
	filled := mustFill(t, p, marketOrder("AAPL", 1, model.SideBuy, 100))

	if err := p.CancelOrder(filled.OrderID); err == nil {
		t.Error("cancelling a filled order succeeded, want error")
	}
	if err := p.CancelOrder("no-such-order"); !errors.Is(err, model.ErrOrderNotFound) {
		t.Errorf("unknown order: err = %v, want ErrOrderNotFound", err)
	}
}

func TestOrderHistory_InclusiveBounds(t *testing.T) {
	p := connectedPaper(t, 100000)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	stamps := []time.Time{base, base.Add(24 * time.Hour), base.Add(48 * time.Hour)}
	i := 0
	p.now = func() time.Time { t := stamps[i]; i++; return t }

	for range stamps {
		mustFill(t, p, marketOrder("AAPL", 1, model.SideBuy, 100))
	}

	got := p.OrderHistory(stamps[0], stamps[1])
	if len(got) != 2 {
		t.Fatalf("inclusive window returned %d orders, want 2", len(got))
	}
	if got := p.OrderHistory(stamps[2], stamps[2]); len(got) != 1 {
		t.Errorf("point window returned %d orders, want 1", len(got))
	}
	if got := p.OrderHistory(base.Add(-time.Hour), base.Add(-time.Minute)); len(got) != 0 {
		t.Errorf("disjoint window returned %d orders, want 0", len(got))
	}
}

func TestPortfolioValue_FallbackToAvgPrice(t *testing.T) {
	p := connectedPaper(t, 10000)
	mustFill(t, p, marketOrder("AAPL", 10, model.SideBuy, 150))
	mustFill(t, p, marketOrder("MSFT", 5, model.SideBuy, 300))
	// Cash is 10000 - 1500 - 1500 = 7000.

	prices := map[string]float64{"AAPL": 160}
	// AAPL at quote, MSFT falls back to its average cost.
	want := 7000 + 10*160 + 5*300
	if got := p.PortfolioValue(prices); !approx(got, float64(want)) {
		t.Errorf("portfolio value = %v, want %v", got, want)
	}
}
