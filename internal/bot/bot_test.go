package bot

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"dailytrader/internal/broker"
	"dailytrader/internal/marketdata"
	"dailytrader/internal/metrics"
	"dailytrader/internal/model"
	"dailytrader/internal/store"
	"dailytrader/internal/strategy"
)

type fakeQuotes struct {
	prices map[string]float64
}

func (f *fakeQuotes) Latest(symbol string) (float64, bool) {
	p, ok := f.prices[symbol]
	return p, ok
}

func flatBars(n int) []model.Bar {
	bars := make([]model.Bar, n)
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = model.Bar{
			Date: day.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000,
		}
	}
	return bars
}

func testBot(t *testing.T, source *stubSource, balance float64, opts Options) *Bot {
	t.Helper()
	engine := strategy.NewEngine(source, nil, nil, strategy.DefaultConfig(), nil)
	brk := broker.NewPaper(balance)
	if err := brk.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	b := New(engine, source, brk, nil, opts, nil)
	return b
}

func buySignal(symbol string, price float64) model.Signal {
	return model.Signal{
		Symbol:       symbol,
		Action:       model.ActionBuy,
		Confidence:   0.7,
		CurrentPrice: price,
		Timestamp:    time.Now(),
	}
}

func TestExecuteSignal_Hold(t *testing.T) {
	b := testBot(t, newStubSource(), 10000, Options{})
	sig := model.Signal{Symbol: "AAPL", Action: model.ActionHold, CurrentPrice: 100}

	order, err := b.ExecuteSignal(sig, 10)
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}
	if order != nil {
		t.Errorf("hold produced an order: %+v", order)
	}
	if got := b.broker.Balance(); got != 10000 {
		t.Errorf("balance = %v, want untouched", got)
	}
}

func TestExecuteSignal_BuyFilled(t *testing.T) {
	b := testBot(t, newStubSource(), 10000, Options{DefaultQuantity: 5})

	order, err := b.ExecuteSignal(buySignal("AAPL", 150), 0)
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}
	if order == nil || order.Status != model.StatusFilled {
		t.Fatalf("order = %+v, want filled", order)
	}
	if order.Quantity != 5 {
		t.Errorf("quantity = %v, want default 5", order.Quantity)
	}
	if got := b.broker.Balance(); math.Abs(got-9250) > 1e-9 {
		t.Errorf("balance = %v, want 9250", got)
	}
}

func TestExecuteSignal_RejectedIsSilent(t *testing.T) {
	b := testBot(t, newStubSource(), 100, Options{})

	order, err := b.ExecuteSignal(buySignal("AAPL", 150), 10)
	if err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}
	if order != nil {
		t.Errorf("rejected order surfaced: %+v", order)
	}
	if got := b.broker.Balance(); got != 100 {
		t.Errorf("balance = %v, want untouched", got)
	}
}

func TestRunSession_AnalyzeOnly(t *testing.T) {
	src := newStubSource()
	src.setBars("AAPL", flatBars(40))
	src.setBars("MSFT", flatBars(40))
	src.setPrice("AAPL", 100)
	src.setPrice("MSFT", 100)
	b := testBot(t, src, 10000, Options{})

	result, err := b.RunSession(context.Background(), []string{"AAPL", "MSFT"}, false)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(result.Signals) != 2 {
		t.Fatalf("got %d signals, want 2", len(result.Signals))
	}
	for _, sig := range result.Signals {
		if sig.Action != model.ActionHold {
			t.Errorf("%s action = %s, want hold on a flat series", sig.Symbol, sig.Action)
		}
	}
	if len(result.Orders) != 0 {
		t.Errorf("analyze-only session placed %d orders", len(result.Orders))
	}
	if result.Portfolio.TotalValue != 10000 {
		t.Errorf("total value = %v, want 10000", result.Portfolio.TotalValue)
	}
}

func TestRunSession_GaugesReflectMarkedPortfolio(t *testing.T) {
	src := newStubSource()
	src.setBars("AAPL", flatBars(40))
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 160}}
	m := metrics.NewMetrics()
	b := testBot(t, src, 10000, Options{Metrics: m, Quotes: quotes})

	if _, err := b.ExecuteSignal(buySignal("AAPL", 150), 10); err != nil {
		t.Fatalf("ExecuteSignal: %v", err)
	}

	result, err := b.RunSession(context.Background(), []string{"AAPL"}, false)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	// 8500 cash + 10 shares marked at the 160 quote.
	if result.Portfolio.TotalValue != 10100 {
		t.Fatalf("total value = %v, want 10100", result.Portfolio.TotalValue)
	}
	if got := testutil.ToFloat64(m.CashBalance); got != 8500 {
		t.Errorf("cash gauge = %v, want 8500", got)
	}
	if got := testutil.ToFloat64(m.PortfolioValue); got != 10100 {
		t.Errorf("portfolio gauge = %v, want 10100", got)
	}
	if got := testutil.ToFloat64(m.OpenPositions); got != 1 {
		t.Errorf("open positions gauge = %v, want 1", got)
	}
}

func TestRunSession_SymbolFailureIsIsolated(t *testing.T) {
	src := newStubSource()
	src.setBars("GOOD", flatBars(40))
	src.setPrice("GOOD", 100)
	b := testBot(t, src, 10000, Options{})

	result, err := b.RunSession(context.Background(), []string{"MISSING", "GOOD"}, false)
	if err != nil {
		t.Fatalf("RunSession: %v", err)
	}
	if len(result.Signals) != 1 || result.Signals[0].Symbol != "GOOD" {
		t.Fatalf("signals = %+v, want only GOOD", result.Signals)
	}
}

func TestRunSession_PersistsState(t *testing.T) {
	src := newStubSource()
	src.setBars("AAPL", flatBars(40))
	src.setPrice("AAPL", 100)

	st, err := store.NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	b := testBot(t, src, 10000, Options{Store: st})

	if _, err := b.RunSession(context.Background(), []string{"AAPL"}, false); err != nil {
		t.Fatalf("RunSession: %v", err)
	}

	state, ok, err := st.LoadPortfolio()
	if err != nil || !ok {
		t.Fatalf("LoadPortfolio: ok=%v err=%v", ok, err)
	}
	if state.Balance != 10000 {
		t.Errorf("persisted balance = %v, want 10000", state.Balance)
	}
	history, err := st.History(0)
	if err != nil || len(history) != 1 {
		t.Fatalf("History: %d entries, err=%v; want 1", len(history), err)
	}
	if history[0].PortfolioValue != 10000 {
		t.Errorf("session value = %v, want 10000", history[0].PortfolioValue)
	}
}

func TestPortfolioStatus_MarksPositions(t *testing.T) {
	src := newStubSource()
	src.setPrice("MSFT", 310)
	quotes := &fakeQuotes{prices: map[string]float64{"AAPL": 160}}
	b := testBot(t, src, 10000, Options{Quotes: quotes})

	if _, err := b.ExecuteSignal(buySignal("AAPL", 150), 10); err != nil {
		t.Fatalf("buy AAPL: %v", err)
	}
	msft := buySignal("MSFT", 300)
	if _, err := b.ExecuteSignal(msft, 5); err != nil {
		t.Fatalf("buy MSFT: %v", err)
	}

	status, err := b.PortfolioStatus(context.Background())
	if err != nil {
		t.Fatalf("PortfolioStatus: %v", err)
	}
	if len(status.Positions) != 2 {
		t.Fatalf("got %d positions, want 2", len(status.Positions))
	}

	byID := map[string]PositionStatus{}
	for _, p := range status.Positions {
		byID[p.Symbol] = p
	}
	// AAPL marks from the quote stream, MSFT from the historical source.
	aapl := byID["AAPL"]
	if aapl.CurrentPrice != 160 || math.Abs(aapl.ProfitLoss-100) > 1e-9 {
		t.Errorf("AAPL mark = %v, pl = %v; want 160, 100", aapl.CurrentPrice, aapl.ProfitLoss)
	}
	msftPos := byID["MSFT"]
	if msftPos.CurrentPrice != 310 || math.Abs(msftPos.ProfitLoss-50) > 1e-9 {
		t.Errorf("MSFT mark = %v, pl = %v; want 310, 50", msftPos.CurrentPrice, msftPos.ProfitLoss)
	}
	// Cash 10000 - 1500 - 1500 = 7000; marks 1600 + 1550.
	if math.Abs(status.TotalValue-10150) > 1e-9 {
		t.Errorf("total value = %v, want 10150", status.TotalValue)
	}
}

// stubSource implements marketdata.Source for tests.
type stubSource struct {
	bars   map[string][]model.Bar
	prices map[string]float64
}

func newStubSource() *stubSource {
	return &stubSource{bars: map[string][]model.Bar{}, prices: map[string]float64{}}
}

func (s *stubSource) setBars(symbol string, bars []model.Bar) { s.bars[symbol] = bars }
func (s *stubSource) setPrice(symbol string, price float64)   { s.prices[symbol] = price }

func (s *stubSource) Bars(_ context.Context, symbol string, _, _ time.Time, _ marketdata.Interval) ([]model.Bar, error) {
	bars, ok := s.bars[symbol]
	if !ok || len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", model.ErrNoData, symbol)
	}
	return bars, nil
}

func (s *stubSource) Price(_ context.Context, symbol string) (float64, error) {
	price, ok := s.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w for %s", model.ErrNoData, symbol)
	}
	return price, nil
}
