package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"dailytrader/internal/model"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooClient fetches daily bars from the Yahoo Finance v8 chart API.
type YahooClient struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewYahooClient creates a Yahoo chart API client. baseURL may be empty to
// use the public endpoint.
func NewYahooClient(baseURL string, log *slog.Logger) *YahooClient {
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &YahooClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// chartResponse mirrors the subset of the v8 chart payload we consume.
// Yahoo emits nulls inside the quote arrays for halted sessions, so the
// series fields are pointer slices.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Bars fetches daily bars for [start, end], ascending by date.
func (y *YahooClient) Bars(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", string(interval))
	q.Set("events", "history")

	cr, err := y.fetchChart(ctx, symbol, q)
	if err != nil {
		return nil, err
	}

	result := cr.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: %s %s..%s: %w",
			symbol, start.Format("2006-01-02"), end.Format("2006-01-02"), model.ErrNoData)
	}

	quote := result.Indicators.Quote[0]
	bars := make([]model.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Skip positions with a null close (halted or not-yet-settled days).
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		bar := model.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			bar.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			bar.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			bar.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo: %s: %w", symbol, model.ErrNoData)
	}

	y.log.Debug("fetched bars", "symbol", symbol, "count", len(bars))
	return bars, nil
}

// Price returns the latest market price for a symbol.
func (y *YahooClient) Price(ctx context.Context, symbol string) (float64, error) {
	q := url.Values{}
	q.Set("range", "5d")
	q.Set("interval", "1d")

	cr, err := y.fetchChart(ctx, symbol, q)
	if err != nil {
		return 0, err
	}

	result := cr.Chart.Result[0]
	if p := result.Meta.RegularMarketPrice; p > 0 {
		return p, nil
	}

	// Fall back to the last non-null close.
	if len(result.Indicators.Quote) > 0 {
		closes := result.Indicators.Quote[0].Close
		for i := len(closes) - 1; i >= 0; i-- {
			if closes[i] != nil {
				return *closes[i], nil
			}
		}
	}
	return 0, fmt.Errorf("yahoo: price for %s: %w", symbol, model.ErrNoData)
}

func (y *YahooClient) fetchChart(ctx context.Context, symbol string, q url.Values) (*chartResponse, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "dailytrader/1.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo: %s: %w", symbol, model.ErrNoData)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: fetch %s: status %d", symbol, resp.StatusCode)
	}

	var cr chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("yahoo: decode %s: %w", symbol, err)
	}
	if cr.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo: %s: %s (%s)", symbol, cr.Chart.Error.Description, cr.Chart.Error.Code)
	}
	if len(cr.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: %s: %w", symbol, model.ErrNoData)
	}
	return &cr, nil
}
