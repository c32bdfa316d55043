// Package advisor wraps natural-language advisory services that provide a
// second opinion on trading decisions. Advisors are optional and fallible:
// callers must treat every failure as a degraded-mode annotation, never as a
// reason to abort an analysis.
package advisor

import (
	"context"

	"dailytrader/internal/indicator"
	"dailytrader/internal/model"
)

// Advice is an advisory service's proposed decision for a symbol.
type Advice struct {
	Action     model.Action `json:"action"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
}

// Sentiment is a bounded sentiment score for a piece of text.
type Sentiment struct {
	Score      float64 `json:"score"` // -1 (bearish) .. 1 (bullish)
	Label      string  `json:"label"` // positive, negative, neutral
	Confidence float64 `json:"confidence"`
}

// Advisor produces trading advice from recent bars and an indicator snapshot.
type Advisor interface {
	Advise(ctx context.Context, symbol string, bars []model.Bar, snap indicator.Snapshot) (Advice, error)
}

// SentimentAnalyzer scores free-form text such as headlines.
type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) (Sentiment, error)
}
