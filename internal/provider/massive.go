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

const massiveBaseURL = "https://api.massive.com"

// Massive fetches daily aggregates from the Massive (Polygon-style) API.
type Massive struct {
	apiKey  string
	baseURL string
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewMassive creates a Massive client. A missing API key fails at
// construction.
func NewMassive(apiKey string, requestsPerMinute int) (*Massive, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("massive: MASSIVE_API_KEY is not set")
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 5
	}
	return &Massive{
		apiKey:  apiKey,
		baseURL: massiveBaseURL,
		limiter: util.NewRateLimiter(requestsPerMinute, time.Minute),
		log:     slog.Default().With("provider", domain.SourceMassive),
	}, nil
}

// massiveAggsResponse is the aggregates envelope.
type massiveAggsResponse struct {
	Status       string `json:"status"`
	ResultsCount int    `json:"resultsCount"`
	Results      []struct {
		Timestamp int64   `json:"t"` // Unix ms, start of the aggregate window
		Close     float64 `json:"c"`
		Volume    float64 `json:"v"`
	} `json:"results"`
}

// FetchDaily returns one record per trading day in [start, end].
func (c *Massive) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.RawTradeRecord, error) {
	reqURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&apiKey=%s",
		c.baseURL,
		url.PathEscape(symbol),
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
		url.QueryEscape(c.apiKey),
	)

	var out []domain.RawTradeRecord
	err := util.Retry(ctx, retryAttempts, time.Minute, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}

		var resp massiveAggsResponse
		if err := getJSON(ctx, reqURL, nil, &resp); err != nil {
			if errors.Is(err, ErrRateLimited) {
				return err
			}
			if IsStatus(err, 404) {
				c.log.Info("no data", "symbol", symbol)
				out = nil
				return nil
			}
			return util.Permanent(err)
		}

		if resp.ResultsCount == 0 {
			out = nil
			return nil
		}

		out = make([]domain.RawTradeRecord, 0, len(resp.Results))
		for _, r := range resp.Results {
			out = append(out, domain.RawTradeRecord{
				Datetime: time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02"),
				Price:    r.Close,
				Volume:   int64(r.Volume),
				Source:   domain.SourceMassive,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
