// Package bot wires the strategy engine, broker, and persistence layers into
// a single trading session orchestrator.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dailytrader/internal/broker"
	"dailytrader/internal/execution"
	"dailytrader/internal/logger"
	"dailytrader/internal/marketdata"
	"dailytrader/internal/metrics"
	"dailytrader/internal/model"
	"dailytrader/internal/notification"
	"dailytrader/internal/portfolio"
	"dailytrader/internal/predictor"
	"dailytrader/internal/store"
	"dailytrader/internal/strategy"
)

// PositionStatus is one open position marked to the current quote.
type PositionStatus struct {
	model.Position
	CurrentPrice  float64 `json:"current_price"`
	CurrentValue  float64 `json:"current_value"`
	ProfitLoss    float64 `json:"profit_loss"`
	ProfitLossPct float64 `json:"profit_loss_pct"`
}

// PortfolioStatus summarizes cash and marked positions.
type PortfolioStatus struct {
	CashBalance   float64          `json:"cash_balance"`
	PositionValue float64          `json:"position_value"`
	TotalValue    float64          `json:"total_value"`
	Positions     []PositionStatus `json:"positions"`
	Timestamp     time.Time        `json:"timestamp"`
}

// SessionResult is the outcome of one trading session.
type SessionResult struct {
	Signals   []model.Signal  `json:"signals"`
	Orders    []model.Order   `json:"orders"`
	Portfolio PortfolioStatus `json:"portfolio"`
}

// Options carries the optional collaborators; any of them may be nil.
type Options struct {
	Journal  *execution.Journal
	Store    *store.StateStore
	Metrics  *metrics.Metrics
	Quotes   QuoteSource
	Notifier notification.Notifier
	Risk     *portfolio.RiskManager

	// DefaultQuantity is used when ExecuteSignal is called with qty <= 0.
	DefaultQuantity float64
}

// QuoteSource supplies streaming marks for portfolio valuation.
type QuoteSource interface {
	Latest(symbol string) (float64, bool)
}

// Bot coordinates analysis and execution across a symbol universe.
type Bot struct {
	engine *strategy.Engine
	source marketdata.Source
	broker broker.Broker
	pred   predictor.Predictor
	opts   Options
	log    *slog.Logger
}

// New creates a bot. The predictor may be nil when no model is configured.
func New(engine *strategy.Engine, source marketdata.Source, brk broker.Broker, pred predictor.Predictor, opts Options, log *slog.Logger) *Bot {
	if log == nil {
		log = slog.Default()
	}
	if opts.DefaultQuantity <= 0 {
		opts.DefaultQuantity = 10
	}
	return &Bot{
		engine: engine,
		source: source,
		broker: brk,
		pred:   pred,
		opts:   opts,
		log:    log,
	}
}

// Connect connects the broker.
func (b *Bot) Connect() error {
	if err := b.broker.Connect(); err != nil {
		return fmt.Errorf("connect broker: %w", err)
	}
	b.log.Info("connected to broker")
	return nil
}

// Disconnect disconnects the broker.
func (b *Bot) Disconnect() error {
	if err := b.broker.Disconnect(); err != nil {
		return err
	}
	b.log.Info("disconnected from broker")
	return nil
}

// TrainModel fits the price predictor on the symbol's recent history.
func (b *Bot) TrainModel(ctx context.Context, symbol string, lookbackDays int) (predictor.Report, error) {
	if b.pred == nil {
		return predictor.Report{}, fmt.Errorf("no predictor configured")
	}
	b.log.Info("training price model", "symbol", symbol, "lookback_days", lookbackDays)

	end := time.Now()
	start := end.AddDate(0, 0, -lookbackDays)
	bars, err := b.source.Bars(ctx, symbol, start, end, marketdata.IntervalDaily)
	if err != nil {
		return predictor.Report{}, fmt.Errorf("fetch history for %s: %w", symbol, err)
	}

	report, err := b.pred.Train(bars)
	if err != nil {
		return predictor.Report{}, fmt.Errorf("train model for %s: %w", symbol, err)
	}
	b.log.Info("model training complete", "symbol", symbol,
		"val_r2", report.ValR2, "val_rmse", report.ValRMSE, "samples", report.Samples)
	return report, nil
}

// AnalyzeSymbol generates a trading signal for one symbol.
func (b *Bot) AnalyzeSymbol(ctx context.Context, symbol string) (model.Signal, error) {
	start := time.Now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(symbol, start))

	sig, err := b.engine.GenerateSignal(ctx, symbol)
	if m := b.opts.Metrics; m != nil {
		m.AnalysesTotal.Inc()
		m.AnalysisDur.Observe(time.Since(start).Seconds())
		if err != nil {
			m.AnalysisErrors.Inc()
		} else {
			m.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()
		}
	}
	if err != nil {
		return model.Signal{}, err
	}

	b.log.Info("analysis complete", append([]any{
		"symbol", symbol,
		"action", sig.Action,
		"confidence", sig.Confidence,
	}, logger.LogWithTrace(ctx)...)...)
	return sig, nil
}

// ExecuteSignal turns a signal into a market order. Hold signals and
// rejected orders produce no order and no error.
func (b *Bot) ExecuteSignal(sig model.Signal, qty float64) (*model.Order, error) {
	if sig.Action == model.ActionHold {
		b.log.Info("holding, no action taken", "symbol", sig.Symbol)
		return nil, nil
	}
	if qty <= 0 {
		qty = b.opts.DefaultQuantity
	}

	price := sig.CurrentPrice
	if rm := b.opts.Risk; rm != nil && sig.Action == model.ActionBuy {
		if ok, reason := rm.CanTrade(sig.Symbol, qty, price, b.broker.Positions()); !ok {
			b.log.Warn("trade blocked by risk limits", "symbol", sig.Symbol, "reason", reason)
			return nil, nil
		}
	}
	order, err := b.broker.PlaceOrder(broker.OrderRequest{
		Symbol:   sig.Symbol,
		Quantity: qty,
		Type:     model.OrderMarket,
		Side:     model.Side(sig.Action),
		Price:    &price,
	})
	if err != nil {
		return nil, fmt.Errorf("place %s order for %s: %w", sig.Action, sig.Symbol, err)
	}

	if m := b.opts.Metrics; m != nil {
		m.OrdersTotal.WithLabelValues(string(order.Side), string(order.Status)).Inc()
	}
	if j := b.opts.Journal; j != nil {
		if jerr := j.Record(order); jerr != nil {
			b.log.Error("journal write failed", "order_id", order.OrderID, "error", jerr)
		}
	}

	if order.Status == model.StatusRejected {
		b.log.Warn("order rejected", "symbol", sig.Symbol, "side", order.Side, "reason", order.Reason)
		b.notify(notification.AlertWarning, "Order rejected",
			fmt.Sprintf("%s %s x%g: %s", order.Side, sig.Symbol, qty, order.Reason))
		return nil, nil
	}

	b.log.Info("order placed", "symbol", sig.Symbol, "side", order.Side,
		"qty", qty, "price", price, "order_id", order.OrderID)
	return &order, nil
}

// RunSession analyzes every symbol and, when execute is set, trades the
// non-hold signals. A failed symbol is logged and skipped; it never aborts
// the session.
func (b *Bot) RunSession(ctx context.Context, symbols []string, execute bool) (SessionResult, error) {
	b.log.Info("starting trading session", "symbols", len(symbols), "execute", execute)
	var result SessionResult

	for _, symbol := range symbols {
		sig, err := b.AnalyzeSymbol(ctx, symbol)
		if err != nil {
			b.log.Error("analysis failed", "symbol", symbol, "error", err)
			continue
		}
		result.Signals = append(result.Signals, sig)

		if execute && sig.Action != model.ActionHold {
			order, err := b.ExecuteSignal(sig, 0)
			if err != nil {
				b.log.Error("execution failed", "symbol", symbol, "error", err)
				continue
			}
			if order != nil {
				result.Orders = append(result.Orders, *order)
			}
		}
	}

	status, err := b.PortfolioStatus(ctx)
	if err != nil {
		// Keep the previous gauge and equity readings rather than
		// publishing an empty portfolio.
		b.log.Error("portfolio status failed", "error", err)
	} else {
		result.Portfolio = status
		if m := b.opts.Metrics; m != nil {
			m.CashBalance.Set(status.CashBalance)
			m.PortfolioValue.Set(status.TotalValue)
			m.OpenPositions.Set(float64(len(status.Positions)))
		}
		if rm := b.opts.Risk; rm != nil {
			rm.UpdateEquity(status.TotalValue)
		}
	}
	if s := b.opts.Store; s != nil {
		b.persistSession(result, symbols)
	}

	b.log.Info("session complete", "orders", len(result.Orders),
		"balance", result.Portfolio.CashBalance)
	b.notify(notification.AlertInfo, "Trading session complete",
		fmt.Sprintf("%d signals, %d orders, portfolio value %.2f",
			len(result.Signals), len(result.Orders), result.Portfolio.TotalValue))
	return result, nil
}

// notify delivers an alert when a notifier is configured. Delivery failures
// are logged, never propagated.
func (b *Bot) notify(level notification.AlertLevel, title, message string) {
	if b.opts.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.opts.Notifier.Send(ctx, notification.Alert{
		Level: level, Title: title, Message: message,
	}); err != nil {
		b.log.Error("alert delivery failed", "title", title, "error", err)
	}
}

func (b *Bot) persistSession(result SessionResult, symbols []string) {
	s := b.opts.Store
	if paper, ok := b.broker.(*broker.Paper); ok {
		if err := s.SavePortfolio(paper.State()); err != nil {
			b.log.Error("portfolio snapshot failed", "error", err)
		}
	}
	entry := store.SessionEntry{
		Symbols:        symbols,
		Signals:        result.Signals,
		OrdersPlaced:   result.Orders,
		PortfolioValue: result.Portfolio.TotalValue,
	}
	if err := s.AppendHistory(entry); err != nil {
		b.log.Error("history append failed", "error", err)
	}
	if len(result.Signals) > 0 {
		if err := s.SaveAnalysis(time.Now(), result.Signals); err != nil {
			b.log.Error("analysis snapshot failed", "error", err)
		}
	}
}

// PortfolioStatus marks every open position. Streaming quotes are preferred;
// positions without a live quote are priced through the historical source,
// and a failed lookup falls back to average cost.
func (b *Bot) PortfolioStatus(ctx context.Context) (PortfolioStatus, error) {
	balance := b.broker.Balance()
	positions := b.broker.Positions()

	status := PortfolioStatus{
		CashBalance: balance,
		Timestamp:   time.Now(),
	}
	for _, pos := range positions {
		price, err := b.markPrice(ctx, pos.Symbol)
		if err != nil {
			b.log.Error("price lookup failed", "symbol", pos.Symbol, "error", err)
			price = pos.AvgPrice
		}
		value := pos.Quantity * price
		pl := value - pos.TotalCost
		plPct := 0.0
		if pos.TotalCost != 0 {
			plPct = pl / pos.TotalCost * 100
		}
		status.Positions = append(status.Positions, PositionStatus{
			Position:      pos,
			CurrentPrice:  price,
			CurrentValue:  value,
			ProfitLoss:    pl,
			ProfitLossPct: plPct,
		})
		status.PositionValue += value
	}
	status.TotalValue = balance + status.PositionValue
	return status, nil
}

func (b *Bot) markPrice(ctx context.Context, symbol string) (float64, error) {
	if q := b.opts.Quotes; q != nil {
		if price, ok := q.Latest(symbol); ok {
			return price, nil
		}
	}
	return b.source.Price(ctx, symbol)
}
