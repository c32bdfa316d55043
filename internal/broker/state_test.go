package broker

import (
	"encoding/json"
	"testing"
	"time"

	"dailytrader/internal/model"
)

func TestState_JSONRoundtrip(t *testing.T) {
	p := connectedPaper(t, 10000)
	p.now = func() time.Time {
		return time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)
	}
	mustFill(t, p, marketOrder("AAPL", 10, model.SideBuy, 150))
	mustFill(t, p, marketOrder("AAPL", 3, model.SideSell, 155))

	raw, err := json.Marshal(p.State())
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	var decoded State
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}

	restored := NewPaper(999)
	restored.Restore(decoded)
	if err := restored.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if got := restored.Balance(); !approx(got, p.Balance()) {
		t.Errorf("restored balance = %v, want %v", got, p.Balance())
	}
	positions := restored.Positions()
	if len(positions) != 1 {
		t.Fatalf("restored %d positions, want 1", len(positions))
	}
	pos := positions[0]
	if pos.Symbol != "AAPL" || pos.Quantity != 7 || !approx(pos.AvgPrice, 150) || !approx(pos.TotalCost, 1050) {
		t.Errorf("restored position = %+v, want {AAPL 7 150 1050}", pos)
	}

	history := restored.OrderHistory(time.Time{}, time.Now().Add(time.Hour))
	if len(history) != 2 {
		t.Fatalf("restored %d history entries, want 2", len(history))
	}
	want := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)
	if !history[0].Timestamp.Equal(want) {
		t.Errorf("restored timestamp = %v, want %v", history[0].Timestamp, want)
	}

	// Restored fills remain addressable by ID.
	if _, err := restored.OrderStatus(history[0].OrderID); err != nil {
		t.Errorf("OrderStatus after restore: %v", err)
	}

	// The ledger keeps trading correctly after a restore.
	mustFill(t, restored, marketOrder("AAPL", 7, model.SideSell, 160))
	if got := len(restored.Positions()); got != 0 {
		t.Errorf("positions after full exit = %d, want 0", got)
	}
}

func TestRestore_ZeroInitialBalanceKeepsCurrent(t *testing.T) {
	p := NewPaper(5000)
	p.Restore(State{Balance: 4200})
	if p.Balance() != 4200 {
		t.Errorf("balance = %v, want 4200", p.Balance())
	}
	if p.initialBalance != 5000 {
		t.Errorf("initial balance = %v, want preserved 5000", p.initialBalance)
	}
}
