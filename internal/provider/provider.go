// Package provider implements one client per external data source: the local
// CSV archive, Alpha Vantage, SEC EDGAR, Yahoo Finance, Twelve Data, Finnhub,
// Massive, and Alpaca. Each client owns its own rate-limiter state, injected
// at construction, and returns provider-tagged record lists.
//
// Shared contract: a provider with no data for the requested symbol/period
// returns an empty result, not an error. HTTP 429 is retried internally with
// bounded backoff. Only genuinely fatal conditions (malformed responses,
// unexpected HTTP statuses, Alpha Vantage quota exhaustion) surface as
// errors.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"pennypipe/internal/util"
)

// ErrQuotaExhausted re-exports the daily-quota sentinel so stage code can
// check it without importing util.
var ErrQuotaExhausted = util.ErrQuotaExhausted

// ErrRateLimited marks an HTTP 429 response. Clients treat it as transient
// and re-issue the request after their backoff window.
var ErrRateLimited = errors.New("provider rate limited")

// retryAttempts bounds the sleep-and-retry loop on HTTP 429. The observed
// upstream behaviour retried forever; a provider that keeps throttling past
// this many attempts surfaces a terminal error instead.
const retryAttempts = 5

var httpClient = &http.Client{Timeout: 30 * time.Second}

// HTTPError reports a non-2xx response from a provider endpoint.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Unwrap exposes ErrRateLimited for 429 responses so callers can use
// errors.Is without inspecting status codes.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// IsStatus reports whether err is an HTTPError with the given status code.
func IsStatus(err error, code int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == code
}

// getJSON issues a GET request and decodes the JSON body into v. Non-2xx
// statuses return an *HTTPError; the body is drained regardless so the
// connection can be reused.
func getJSON(ctx context.Context, url string, headers map[string]string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}
