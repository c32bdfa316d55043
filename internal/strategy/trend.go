package strategy

import "dailytrader/internal/indicator"

// Direction is the classified trend of a symbol.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Classify tallies five independent votes over an indicator snapshot:
// SMA crossover, RSI extremes, MACD vs. its signal line, momentum sign, and
// price vs. the Bollinger bands. Exact ties abstain. A side must win by more
// than one vote to classify — the 1-vote margin is deliberate hysteresis
// against flip-flopping on marginal tallies.
func Classify(snap indicator.Snapshot) Direction {
	var bullish, bearish int

	if snap.SMAShort > snap.SMALong {
		bullish++
	} else if snap.SMAShort < snap.SMALong {
		bearish++
	}

	if snap.RSI < 30 {
		bullish++ // oversold
	} else if snap.RSI > 70 {
		bearish++ // overbought
	}

	if snap.MACD > snap.MACDSignal {
		bullish++
	} else if snap.MACD < snap.MACDSignal {
		bearish++
	}

	if snap.Momentum > 0 {
		bullish++
	} else if snap.Momentum < 0 {
		bearish++
	}

	if snap.CurrentPrice < snap.BBLower {
		bullish++
	} else if snap.CurrentPrice > snap.BBUpper {
		bearish++
	}

	switch {
	case bullish > bearish+1:
		return Bullish
	case bearish > bullish+1:
		return Bearish
	default:
		return Neutral
	}
}
