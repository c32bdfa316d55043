package predictor

import (
	"dailytrader/internal/indicator"
	"dailytrader/internal/model"
)

// minHistory is the number of bars consumed before the first feature row:
// enough to settle the 20-bar lookbacks the features are built from.
const minHistory = 20

var featureNames = []string{
	"close",
	"sma_short",
	"sma_long",
	"ema_short",
	"return_1",
	"momentum",
	"volatility",
	"rsi",
	"macd_diff",
	"volume_ratio",
	"bb_position",
}

// featureRow builds the feature vector for the bar at index i (0-based,
// i >= minHistory) using only bars up to and including i.
func featureRow(bars []model.Bar, i int, cfg indicator.Config) ([]float64, error) {
	snap, err := indicator.Compute(bars[:i+1], cfg)
	if err != nil {
		return nil, err
	}

	ret := 0.0
	if prev := bars[i-1].Close; prev != 0 {
		ret = bars[i].Close/prev - 1
	}

	bbPos := 0.5
	if width := snap.BBUpper - snap.BBLower; width > 0 {
		bbPos = (snap.CurrentPrice - snap.BBLower) / width
	}

	return []float64{
		snap.CurrentPrice,
		snap.SMAShort,
		snap.SMALong,
		snap.EMAShort,
		ret,
		snap.Momentum,
		snap.Volatility,
		snap.RSI,
		snap.MACD - snap.MACDSignal,
		snap.VolumeRatio,
		bbPos,
	}, nil
}

// featureMatrix builds rows for every supportable bar index, paired with the
// next bar's close as the regression target. The last bar has no next close
// and is excluded.
func featureMatrix(bars []model.Bar, cfg indicator.Config) (rows [][]float64, targets []float64, err error) {
	for i := minHistory; i < len(bars)-1; i++ {
		row, err := featureRow(bars, i, cfg)
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, row)
		targets = append(targets, bars[i+1].Close)
	}
	return rows, targets, nil
}
