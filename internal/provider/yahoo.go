package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"pennypipe/internal/domain"
	"pennypipe/internal/util"
)

const yahooChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Yahoo fetches daily history from the Yahoo Finance chart API. Yahoo
// reports "no data" as an error envelope inside a 200 response; the client
// treats that as an empty result, not a failure.
type Yahoo struct {
	baseURL string
	delay   *util.FixedDelay
	log     *slog.Logger
}

// NewYahoo creates a Yahoo client with the given inter-request delay.
func NewYahoo(delay time.Duration) *Yahoo {
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	return &Yahoo{
		baseURL: yahooChartBaseURL,
		delay:   util.NewFixedDelay(delay),
		log:     slog.Default().With("provider", domain.SourceYahoo),
	}
}

// yahooChartResponse is the chart API envelope. Error non-nil inside a 200
// body is the provider's "no data" discriminator.
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
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

// FetchDaily returns one record per trading day in [start, end].
func (c *Yahoo) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]domain.RawTradeRecord, error) {
	if err := c.delay.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", start.Unix()))
	q.Set("period2", fmt.Sprintf("%d", end.Unix()))
	q.Set("interval", "1d")
	q.Set("events", "history")
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	headers := map[string]string{"User-Agent": "Mozilla/5.0"}

	var resp yahooChartResponse
	if err := getJSON(ctx, reqURL, headers, &resp); err != nil {
		if IsStatus(err, 404) {
			return nil, nil
		}
		return nil, err
	}

	if resp.Chart.Error != nil {
		c.log.Info("no data", "symbol", symbol, "code", resp.Chart.Error.Code)
		return nil, nil
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	records := make([]domain.RawTradeRecord, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue // null close: no trade that slot
		}
		var volume int64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		records = append(records, domain.RawTradeRecord{
			Datetime: time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Price:    *quote.Close[i],
			Volume:   volume,
			Source:   domain.SourceYahoo,
		})
	}
	return records, nil
}
