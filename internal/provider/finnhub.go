package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"pennypipe/internal/domain"
	"pennypipe/internal/util"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// Finnhub fetches daily candles from the Finnhub API. Like TwelveData it
// serves the dashboard's live API layer and shares the batch clients'
// contract.
type Finnhub struct {
	apiKey  string
	baseURL string
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewFinnhub creates a Finnhub client. A missing API key fails at
// construction.
func NewFinnhub(apiKey string, requestsPerMinute int) (*Finnhub, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("finnhub: FINNHUB_API_KEY is not set")
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	return &Finnhub{
		apiKey:  apiKey,
		baseURL: finnhubBaseURL,
		limiter: util.NewRateLimiter(requestsPerMinute, time.Minute),
		log:     slog.Default().With("provider", domain.SourceFinnhub),
	}, nil
}

// finnhubCandleResponse uses parallel arrays; Status "no_data" is the empty
// discriminator.
type finnhubCandleResponse struct {
	Status     string    `json:"s"`
	Timestamps []int64   `json:"t"`
	Closes     []float64 `json:"c"`
	Volumes    []float64 `json:"v"`
}

// FetchDaily returns one record per trading day in [start, end].
func (c *Finnhub) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.RawTradeRecord, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("resolution", "D")
	q.Set("from", fmt.Sprintf("%d", start.Unix()))
	q.Set("to", fmt.Sprintf("%d", end.Unix()))
	q.Set("token", c.apiKey)
	reqURL := c.baseURL + "/stock/candle?" + q.Encode()

	var out []domain.RawTradeRecord
	err := util.Retry(ctx, retryAttempts, time.Minute, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}

		var resp finnhubCandleResponse
		if err := getJSON(ctx, reqURL, nil, &resp); err != nil {
			if errors.Is(err, ErrRateLimited) {
				return err
			}
			return util.Permanent(err)
		}

		if resp.Status == "no_data" {
			c.log.Info("no data", "symbol", symbol)
			out = nil
			return nil
		}
		if resp.Status != "ok" {
			return util.Permanent(fmt.Errorf("finnhub status %q for %s", resp.Status, symbol))
		}

		out = make([]domain.RawTradeRecord, 0, len(resp.Timestamps))
		for i, ts := range resp.Timestamps {
			if i >= len(resp.Closes) {
				break
			}
			var volume int64
			if i < len(resp.Volumes) {
				volume = int64(resp.Volumes[i])
			}
			out = append(out, domain.RawTradeRecord{
				Datetime: time.Unix(ts, 0).UTC().Format("2006-01-02"),
				Price:    resp.Closes[i],
				Volume:   volume,
				Source:   domain.SourceFinnhub,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
