package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"pennypipe/internal/domain"
	"pennypipe/internal/util"
)

const twelveDataBaseURL = "https://api.twelvedata.com"

// TwelveData fetches daily time series from the Twelve Data API. It is used
// by the dashboard's live API layer rather than the batch pipeline, but
// shares the same client contract and limiter shape.
type TwelveData struct {
	apiKey  string
	baseURL string
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewTwelveData creates a TwelveData client. A missing API key fails at
// construction.
func NewTwelveData(apiKey string, requestsPerMinute int) (*TwelveData, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("twelve data: TWELVE_DATA_API_KEY is not set")
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 8
	}
	return &TwelveData{
		apiKey:  apiKey,
		baseURL: twelveDataBaseURL,
		limiter: util.NewRateLimiter(requestsPerMinute, time.Minute),
		log:     slog.Default().With("provider", domain.SourceTwelveData),
	}, nil
}

// twelveDataResponse covers both the success and error envelopes; Twelve
// Data reports errors with Status == "error" inside a 200 body.
type twelveDataResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Values  []struct {
		Datetime string `json:"datetime"`
		Close    string `json:"close"`
		Volume   string `json:"volume"`
	} `json:"values"`
}

// FetchDaily returns one record per trading day in [start, end].
func (c *TwelveData) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.RawTradeRecord, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", "1day")
	q.Set("start_date", start.Format("2006-01-02"))
	q.Set("end_date", end.Format("2006-01-02"))
	q.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "/time_series?" + q.Encode()

	var out []domain.RawTradeRecord
	err := util.Retry(ctx, retryAttempts, time.Minute, func() error {
		var e error
		out, e = c.fetchOnce(ctx, reqURL, symbol)
		return e
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// fetchOnce issues a single time_series request. Throttle conditions (HTTP
// 429 or the in-body 429 envelope) come back retryable; everything else is
// either an empty result or a Permanent error.
func (c *TwelveData) fetchOnce(ctx context.Context, reqURL, symbol string) ([]domain.RawTradeRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, util.Permanent(err)
	}

	var resp twelveDataResponse
	if err := getJSON(ctx, reqURL, nil, &resp); err != nil {
		if errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		return nil, util.Permanent(err)
	}

	if resp.Status == "error" {
		switch resp.Code {
		case 429:
			return nil, fmt.Errorf("twelve data throttled: %w", ErrRateLimited)
		case 400, 404:
			c.log.Info("no data", "symbol", symbol, "message", resp.Message)
			return nil, nil
		default:
			return nil, util.Permanent(fmt.Errorf("twelve data error %d: %s", resp.Code, resp.Message))
		}
	}

	out := make([]domain.RawTradeRecord, 0, len(resp.Values))
	for _, v := range resp.Values {
		price, err := strconv.ParseFloat(v.Close, 64)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(v.Volume, 10, 64)
		out = append(out, domain.RawTradeRecord{
			Datetime: v.Datetime,
			Price:    price,
			Volume:   volume,
			Source:   domain.SourceTwelveData,
		})
	}
	return out, nil
}
