// Package strategy implements the daily trend strategy: rule-based trend
// classification over an indicator snapshot, fused with optional advisory
// and predictive-model opinions into a single auditable Signal.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"dailytrader/internal/advisor"
	"dailytrader/internal/indicator"
	"dailytrader/internal/marketdata"
	"dailytrader/internal/metrics"
	"dailytrader/internal/model"
	"dailytrader/internal/predictor"
)

// maxConfidence is the hard ceiling on fused confidence. It is never reached
// exactly 1.0 — residual uncertainty always remains.
const maxConfidence = 0.95

// Config holds the tunable thresholds of the daily trend strategy.
type Config struct {
	LookbackDays    int     // bar window fetched per analysis
	VolumeThreshold float64 // minimum volume ratio to act on a trend
	MinConfidence   float64 // below this the action is forced to hold
	StopLossPct     float64
	TakeProfitPct   float64
	HighVolatility  float64 // volatility (%) above which confidence is penalized
	Indicators      indicator.Config
}

// DefaultConfig returns the strategy defaults.
func DefaultConfig() Config {
	return Config{
		LookbackDays:    60,
		VolumeThreshold: 1.5,
		MinConfidence:   0.6,
		StopLossPct:     0.05,
		TakeProfitPct:   0.10,
		HighVolatility:  5.0,
		Indicators:      indicator.DefaultConfig(),
	}
}

// Analysis is the trend view of one symbol at one point in time.
type Analysis struct {
	Symbol        string             `json:"symbol"`
	Direction     Direction          `json:"direction"`
	TrendStrength float64            `json:"trend_strength"`
	Snapshot      indicator.Snapshot `json:"indicators"`
	Bars          []model.Bar        `json:"-"`
	Timestamp     time.Time          `json:"timestamp"`
}

// Engine generates trading signals for symbols. The advisory service and the
// predictive model are optional collaborators: either may be nil, and their
// failures degrade the signal's reasoning instead of propagating.
type Engine struct {
	source  marketdata.Source
	adv     advisor.Advisor
	pred    predictor.Predictor
	cfg     Config
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewEngine creates a strategy engine. adv and pred may be nil.
func NewEngine(source marketdata.Source, adv advisor.Advisor, pred predictor.Predictor, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		source: source,
		adv:    adv,
		pred:   pred,
		cfg:    cfg,
		log:    log,
	}
}

// Instrument attaches counters for degraded collaborator calls. The engine
// works unobserved when none are attached.
func (e *Engine) Instrument(m *metrics.Metrics) {
	e.metrics = m
}

// AnalyzeTrend fetches the trailing bar window for a symbol, computes the
// indicator snapshot, and classifies the trend.
func (e *Engine) AnalyzeTrend(ctx context.Context, symbol string) (Analysis, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -e.cfg.LookbackDays)

	bars, err := e.source.Bars(ctx, symbol, start, end, marketdata.IntervalDaily)
	if err != nil {
		return Analysis{}, fmt.Errorf("fetch bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return Analysis{}, fmt.Errorf("fetch bars for %s: %w", symbol, model.ErrNoData)
	}

	snap, err := indicator.Compute(bars, e.cfg.Indicators)
	if err != nil {
		return Analysis{}, err
	}

	return Analysis{
		Symbol:        symbol,
		Direction:     Classify(snap),
		TrendStrength: snap.TrendStrength,
		Snapshot:      snap,
		Bars:          bars,
		Timestamp:     time.Now(),
	}, nil
}

// GenerateSignal runs the full fusion sequence for a symbol. The sequence is
// strictly ordered and every step appends to the signal's reasoning log:
// base decision, volatility penalty, advisory fusion, predictive-model
// fusion, minimum-confidence gate, bracket levels.
func (e *Engine) GenerateSignal(ctx context.Context, symbol string) (model.Signal, error) {
	analysis, err := e.AnalyzeTrend(ctx, symbol)
	if err != nil {
		return model.Signal{}, err
	}

	snap := analysis.Snapshot
	sig := model.Signal{
		Symbol:       symbol,
		Action:       model.ActionHold,
		Confidence:   0.5,
		Reasoning:    []string{},
		CurrentPrice: snap.CurrentPrice,
		Timestamp:    time.Now(),
	}

	// Base decision: act only when the trend is confirmed by volume and RSI
	// leaves room to move.
	volumeOK := snap.VolumeRatio >= e.cfg.VolumeThreshold
	switch analysis.Direction {
	case Bullish:
		if volumeOK && snap.RSI < 70 {
			sig.Action = model.ActionBuy
			sig.Confidence = 0.7
			sig.Reasoning = append(sig.Reasoning,
				fmt.Sprintf("Bullish trend with strong volume (ratio: %.2f)", snap.VolumeRatio),
				fmt.Sprintf("RSI at %.2f shows room for growth", snap.RSI))
		}
	case Bearish:
		if volumeOK && snap.RSI > 30 {
			sig.Action = model.ActionSell
			sig.Confidence = 0.7
			sig.Reasoning = append(sig.Reasoning,
				fmt.Sprintf("Bearish trend with strong volume (ratio: %.2f)", snap.VolumeRatio),
				fmt.Sprintf("RSI at %.2f suggests downward pressure", snap.RSI))
		}
	}

	// Volatility penalty.
	if snap.Volatility > e.cfg.HighVolatility {
		sig.Confidence = clamp(sig.Confidence * 0.8)
		sig.Reasoning = append(sig.Reasoning,
			fmt.Sprintf("High volatility (%.2f%%) reduces confidence", snap.Volatility))
	}

	// Advisory fusion. Failures are caught here and recorded as degraded-mode
	// notes; they never change the action or the confidence.
	if e.adv != nil && sig.Confidence < 0.9 {
		advice, err := e.adv.Advise(ctx, symbol, analysis.Bars, snap)
		if err != nil {
			if e.metrics != nil {
				e.metrics.AdvisorFailures.Inc()
			}
			e.log.Warn("advisory service degraded", "symbol", symbol, "error", err)
			sig.Reasoning = append(sig.Reasoning,
				fmt.Sprintf("AI analysis unavailable: %v", err))
		} else if advice.Action == sig.Action {
			sig.Confidence = clamp(sig.Confidence + 0.15)
			sig.Reasoning = append(sig.Reasoning,
				fmt.Sprintf("AI confirms signal with %.2f confidence", advice.Confidence))
		} else {
			sig.Reasoning = append(sig.Reasoning,
				fmt.Sprintf("AI suggests %s instead", advice.Action))
		}
	}

	// Predictive-model fusion: a significant forecast that agrees with the
	// current action adds confidence; disagreement changes nothing.
	if e.pred != nil && e.pred.Trained() {
		pred, err := e.pred.Predict(analysis.Bars)
		if err != nil {
			if e.metrics != nil {
				e.metrics.PredictorFailures.Inc()
			}
			e.log.Warn("price prediction degraded", "symbol", symbol, "error", err)
			sig.Reasoning = append(sig.Reasoning,
				fmt.Sprintf("Price prediction unavailable: %v", err))
		} else if change := pred.PredictedChangePct; change > 2 || change < -2 {
			if change > 0 && sig.Action == model.ActionBuy {
				sig.Confidence = clamp(sig.Confidence + 0.1)
				sig.Reasoning = append(sig.Reasoning,
					fmt.Sprintf("Price model predicts %.2f%% increase", change))
			} else if change < 0 && sig.Action == model.ActionSell {
				sig.Confidence = clamp(sig.Confidence + 0.1)
				sig.Reasoning = append(sig.Reasoning,
					fmt.Sprintf("Price model predicts %.2f%% decrease", change))
			}
		}
	}

	// Minimum-confidence gate. The numeric confidence is preserved even when
	// the action is overridden so downstream consumers can see what it
	// would have been.
	if sig.Confidence < e.cfg.MinConfidence {
		sig.Action = model.ActionHold
		sig.Reasoning = append(sig.Reasoning,
			fmt.Sprintf("Confidence %.2f below threshold %.2f", sig.Confidence, e.cfg.MinConfidence))
	}

	// Bracket levels apply to buys only.
	if sig.Action == model.ActionBuy {
		stop := snap.CurrentPrice * (1 - e.cfg.StopLossPct)
		take := snap.CurrentPrice * (1 + e.cfg.TakeProfitPct)
		sig.StopLoss = &stop
		sig.TakeProfit = &take
	}

	e.log.Info("signal generated",
		"symbol", symbol,
		"action", sig.Action,
		"confidence", sig.Confidence,
		"direction", analysis.Direction)

	return sig, nil
}

// clamp bounds a confidence value to [0, maxConfidence].
func clamp(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > maxConfidence {
		return maxConfidence
	}
	return c
}
