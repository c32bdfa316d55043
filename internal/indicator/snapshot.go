// Package indicator computes technical indicators over daily bar windows.
//
// Compute is a pure function from a trailing bar window to a Snapshot taken
// as of the window's last bar. Degenerate denominators resolve to fixed
// fallbacks rather than NaN/Inf: an empty window is the only error.
package indicator

import (
	"fmt"
	"math"

	"dailytrader/internal/model"
)

// Config holds the lookback periods for a snapshot computation.
type Config struct {
	ShortPeriod     int // short SMA/EMA window
	TrendPeriod     int // long SMA window and momentum lookback
	RSIPeriod       int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
	BollingerPeriod int
	BollingerStdDev float64
	VolumePeriod    int
}

// DefaultConfig returns the standard daily-bar periods.
func DefaultConfig() Config {
	return Config{
		ShortPeriod:     10,
		TrendPeriod:     20,
		RSIPeriod:       14,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		BollingerPeriod: 20,
		BollingerStdDev: 2,
		VolumePeriod:    20,
	}
}

// Snapshot is one indicator view of a bar window as of its last bar.
// Snapshots are ephemeral: recomputed on every analysis call, never stored.
type Snapshot struct {
	CurrentPrice  float64 `json:"current_price"`
	SMAShort      float64 `json:"sma_short"`
	SMALong       float64 `json:"sma_long"`
	EMAShort      float64 `json:"ema_short"`
	Momentum      float64 `json:"momentum"`     // % change vs. TrendPeriod bars back
	VolumeRatio   float64 `json:"volume_ratio"` // latest / trailing average volume
	Volatility    float64 `json:"volatility"`   // stdev of daily returns, %
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	BBUpper       float64 `json:"bb_upper"`
	BBMiddle      float64 `json:"bb_middle"`
	BBLower       float64 `json:"bb_lower"`
	TrendStrength float64 `json:"trend_strength"` // |momentum| / volatility
}

// Compute calculates a Snapshot from the trailing bar window.
// The window should cover the longest configured lookback; shorter windows
// still produce a snapshot with the lookbacks shrunk to the available data.
func Compute(bars []model.Bar, cfg Config) (Snapshot, error) {
	if len(bars) == 0 {
		return Snapshot{}, fmt.Errorf("indicator: %w", model.ErrNoData)
	}

	closes := model.Closes(bars)
	volumes := model.Volumes(bars)
	n := len(closes)
	current := closes[n-1]

	snap := Snapshot{
		CurrentPrice: current,
		SMAShort:     lastSMA(closes, cfg.ShortPeriod),
		SMALong:      lastSMA(closes, cfg.TrendPeriod),
	}

	emaShort := NewEMA(cfg.ShortPeriod)
	for _, c := range closes {
		emaShort.Update(c)
	}
	snap.EMAShort = emaShort.Value()

	// Momentum vs. the close TrendPeriod bars back, falling back to the
	// oldest bar on short windows.
	prevIdx := 0
	if n > cfg.TrendPeriod {
		prevIdx = n - cfg.TrendPeriod
	}
	if prev := closes[prevIdx]; prev != 0 {
		snap.Momentum = (current - prev) / prev * 100
	}

	// Volume ratio; 1.0 when the trailing average is zero.
	snap.VolumeRatio = 1.0
	if avgVol := lastSMA(volumes, cfg.VolumePeriod); avgVol > 0 {
		snap.VolumeRatio = volumes[n-1] / avgVol
	}

	// Volatility: stdev of simple daily returns over the whole window, in %.
	returns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if closes[i-1] != 0 {
			returns = append(returns, closes[i]/closes[i-1]-1)
		}
	}
	snap.Volatility = stdDev(returns) * 100

	snap.RSI = rsi(closes, cfg.RSIPeriod)

	// MACD line and its signal EMA over the full close series.
	fast := emaSeries(closes, cfg.MACDFast)
	slow := emaSeries(closes, cfg.MACDSlow)
	macdLine := make([]float64, n)
	for i := range macdLine {
		macdLine[i] = fast[i] - slow[i]
	}
	snap.MACD = macdLine[n-1]
	snap.MACDSignal = emaSeries(macdLine, cfg.MACDSignal)[n-1]

	// Bollinger Bands around the trailing SMA.
	snap.BBMiddle = lastSMA(closes, cfg.BollingerPeriod)
	sd := lastStdDev(closes, cfg.BollingerPeriod)
	snap.BBUpper = snap.BBMiddle + cfg.BollingerStdDev*sd
	snap.BBLower = snap.BBMiddle - cfg.BollingerStdDev*sd

	if snap.Volatility > 0 {
		snap.TrendStrength = math.Abs(snap.Momentum) / snap.Volatility
	}

	return snap, nil
}

// rsi computes RSI from simple rolling means of gains and losses over the
// trailing period deltas. Degenerates to 100 when the loss mean is zero.
func rsi(closes []float64, period int) float64 {
	deltas := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		deltas = append(deltas, closes[i]-closes[i-1])
	}
	if len(deltas) > period {
		deltas = deltas[len(deltas)-period:]
	}

	var gainSum, lossSum float64
	for _, d := range deltas {
		if d > 0 {
			gainSum += d
		} else {
			lossSum -= d
		}
	}

	denom := float64(len(deltas))
	if denom == 0 {
		return 100
	}
	gainMean := gainSum / denom
	lossMean := lossSum / denom
	if lossMean == 0 {
		return 100
	}

	rs := gainMean / lossMean
	return 100 - 100/(1+rs)
}
