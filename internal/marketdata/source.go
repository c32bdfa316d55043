// Package marketdata provides access to historical daily bars and current
// prices. The Source interface is the capability boundary: the strategy and
// bot consume it without caring whether bars come from the Yahoo chart API,
// a Redis cache in front of it, or a test fixture.
package marketdata

import (
	"context"
	"time"

	"dailytrader/internal/model"
)

// Interval identifies the bar resolution requested from a source.
type Interval string

const (
	IntervalDaily Interval = "1d"
)

// Source fetches historical bars and spot prices for a symbol.
// Implementations return bars strictly ascending by date and wrap
// model.ErrNoData when the requested range is empty.
type Source interface {
	Bars(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]model.Bar, error)
	Price(ctx context.Context, symbol string) (float64, error)
}
