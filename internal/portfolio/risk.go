// Package portfolio enforces risk limits over the simulated ledger.
package portfolio

import (
	"log/slog"
	"sync"

	"dailytrader/internal/model"
)

// RiskLimits defines configurable risk management thresholds.
type RiskLimits struct {
	MaxPositionQty   float64 `json:"max_position_qty"`   // max shares per symbol
	MaxOpenPositions int     `json:"max_open_positions"` // max number of concurrent positions
	MaxExposure      float64 `json:"max_exposure"`       // max total cost basis across positions
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`   // max drawdown percentage (0-100)
}

// DefaultRiskLimits returns conservative default limits.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionQty:   100,
		MaxOpenPositions: 5,
		MaxExposure:      50000,
		MaxDrawdownPct:   10.0,
	}
}

// RiskManager validates buys against risk limits and tracks equity drawdown.
// Sells are always allowed; they only reduce risk.
type RiskManager struct {
	mu     sync.RWMutex
	limits RiskLimits
	log    *slog.Logger

	equity     float64
	peakEquity float64
}

// NewRiskManager creates a RiskManager with the given limits and starting
// equity.
func NewRiskManager(limits RiskLimits, initialEquity float64, log *slog.Logger) *RiskManager {
	if log == nil {
		log = slog.Default()
	}
	return &RiskManager{
		limits:     limits,
		log:        log,
		equity:     initialEquity,
		peakEquity: initialEquity,
	}
}

// CanTrade checks whether a buy of qty shares at price would violate any
// limit, given the current open positions. Returns true if allowed, false
// with a reason if not.
func (rm *RiskManager) CanTrade(symbol string, qty, price float64, positions []model.Position) (bool, string) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	var held float64
	var exposure float64
	isNew := true
	for _, pos := range positions {
		exposure += pos.TotalCost
		if pos.Symbol == symbol {
			held = pos.Quantity
			isNew = false
		}
	}

	if isNew && len(positions) >= rm.limits.MaxOpenPositions {
		return false, "max open positions reached"
	}
	if held+qty > rm.limits.MaxPositionQty {
		return false, "position size exceeds limit"
	}
	if exposure+qty*price > rm.limits.MaxExposure {
		return false, "total exposure exceeds limit"
	}
	if rm.peakEquity > 0 {
		drawdown := (rm.peakEquity - rm.equity) / rm.peakEquity * 100
		if drawdown > rm.limits.MaxDrawdownPct {
			return false, "max drawdown exceeded"
		}
	}

	return true, ""
}

// UpdateEquity records the latest portfolio value for drawdown tracking.
func (rm *RiskManager) UpdateEquity(equity float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.equity = equity
	if equity > rm.peakEquity {
		rm.peakEquity = equity
	}
	rm.log.Debug("equity updated", "equity", equity, "peak", rm.peakEquity)
}

// Status returns current risk status.
func (rm *RiskManager) Status() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	drawdown := 0.0
	if rm.peakEquity > 0 {
		drawdown = (rm.peakEquity - rm.equity) / rm.peakEquity * 100
	}

	return map[string]interface{}{
		"equity":       rm.equity,
		"peak_equity":  rm.peakEquity,
		"drawdown_pct": drawdown,
		"limits":       rm.limits,
	}
}
