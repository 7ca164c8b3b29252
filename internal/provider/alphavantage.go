package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pennypipe/internal/domain"
	"pennypipe/internal/util"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantage fetches daily and intraday time series from the Alpha Vantage
// API. The free tier enforces both a minute window and a hard daily quota;
// the minute window is absorbed by sleeping between requests, while quota
// exhaustion is terminal for the provider within the run.
type AlphaVantage struct {
	apiKey  string
	baseURL string
	delay   *util.FixedDelay
	quota   *util.DailyQuota
	log     *slog.Logger
}

// NewAlphaVantage creates an AlphaVantage client. A missing API key fails
// here, at construction, not at first use.
func NewAlphaVantage(apiKey string, requestsPerMinute, dailyQuota int) (*AlphaVantage, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("alpha vantage: ALPHA_VANTAGE_API_KEY is not set")
	}
	if requestsPerMinute <= 0 {
		requestsPerMinute = 5
	}
	if dailyQuota <= 0 {
		dailyQuota = 25
	}
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: alphaVantageBaseURL,
		delay:   util.NewFixedDelay(time.Minute / time.Duration(requestsPerMinute)),
		quota:   util.NewDailyQuota(dailyQuota),
		log:     slog.Default().With("provider", domain.SourceAlphaVantage),
	}, nil
}

// avResponse is the envelope shared by the daily and intraday endpoints.
// Exactly one of the series maps is populated on success; Note and
// Information carry throttle and quota messages on otherwise-200 responses.
type avResponse struct {
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
	ErrorMessage string                       `json:"Error Message"`
	Daily        map[string]map[string]string `json:"Time Series (Daily)"`
	Intraday5    map[string]map[string]string `json:"Time Series (5min)"`
}

// FetchDaily returns one record per trading day for the symbol, using the
// close price and day volume.
func (c *AlphaVantage) FetchDaily(ctx context.Context, symbol string) ([]domain.RawTradeRecord, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("outputsize", "full")
	return c.fetchSeries(ctx, q, func(r *avResponse) map[string]map[string]string { return r.Daily })
}

// FetchIntradayMonth returns 5-minute records for the symbol within one
// month (format "2006-01").
func (c *AlphaVantage) FetchIntradayMonth(ctx context.Context, symbol, month string) ([]domain.RawTradeRecord, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_INTRADAY")
	q.Set("symbol", symbol)
	q.Set("interval", "5min")
	q.Set("month", month)
	q.Set("outputsize", "full")
	return c.fetchSeries(ctx, q, func(r *avResponse) map[string]map[string]string { return r.Intraday5 })
}

func (c *AlphaVantage) fetchSeries(ctx context.Context, q url.Values, series func(*avResponse) map[string]map[string]string) ([]domain.RawTradeRecord, error) {
	q.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + q.Encode()

	var out []domain.RawTradeRecord
	err := util.Retry(ctx, retryAttempts, time.Minute, func() error {
		if err := c.quota.Take(); err != nil {
			return util.Permanent(err)
		}
		if err := c.delay.Wait(ctx); err != nil {
			return util.Permanent(err)
		}

		var resp avResponse
		if err := getJSON(ctx, reqURL, nil, &resp); err != nil {
			if errors.Is(err, ErrRateLimited) {
				return err // retryable: sleep the window and re-issue
			}
			return util.Permanent(err)
		}

		switch {
		case resp.ErrorMessage != "":
			// Unknown symbol or malformed query: no data, not an outage.
			c.log.Debug("no data", "symbol", q.Get("symbol"), "message", resp.ErrorMessage)
			out = nil
			return nil
		case isQuotaMessage(resp.Information):
			return util.Permanent(util.ErrQuotaExhausted)
		case resp.Note != "" || resp.Information != "":
			// Minute-window throttle delivered in a 200 body.
			return fmt.Errorf("alpha vantage throttled: %s%s", resp.Note, resp.Information)
		}

		out = recordsFromSeries(series(&resp))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// isQuotaMessage recognises the daily-limit notice Alpha Vantage embeds in
// the Information field.
func isQuotaMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "daily") && (strings.Contains(m, "limit") || strings.Contains(m, "quota"))
}

// recordsFromSeries flattens a time-series map into records. Keys are the
// datetimes; the close price and volume are taken from each entry.
func recordsFromSeries(series map[string]map[string]string) []domain.RawTradeRecord {
	if len(series) == 0 {
		return nil
	}
	records := make([]domain.RawTradeRecord, 0, len(series))
	for datetime, fields := range series {
		price, err := strconv.ParseFloat(fields["4. close"], 64)
		if err != nil {
			continue
		}
		volume, _ := strconv.ParseInt(fields["5. volume"], 10, 64)
		records = append(records, domain.RawTradeRecord{
			Datetime: datetime,
			Price:    price,
			Volume:   volume,
			Source:   domain.SourceAlphaVantage,
		})
	}
	return records
}
