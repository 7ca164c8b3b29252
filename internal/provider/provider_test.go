package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pennypipe/internal/domain"
	"pennypipe/internal/util"
)

func TestAlphaVantageFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("function") != "TIME_SERIES_DAILY" {
			t.Errorf("unexpected function param: %s", r.URL.Query().Get("function"))
		}
		w.Write([]byte(`{
			"Time Series (Daily)": {
				"2020-01-02": {"1. open": "0.10", "2. high": "0.12", "3. low": "0.09", "4. close": "0.11", "5. volume": "35000"},
				"2020-01-03": {"1. open": "0.11", "2. high": "0.11", "3. low": "0.10", "4. close": "0.10", "5. volume": "12000"}
			}
		}`))
	}))
	defer srv.Close()

	c, err := NewAlphaVantage("test-key", 60, 25)
	if err != nil {
		t.Fatalf("NewAlphaVantage: %v", err)
	}
	c.baseURL = srv.URL

	records, err := c.FetchDaily(context.Background(), "GLXZ")
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	for _, r := range records {
		if r.Source != domain.SourceAlphaVantage {
			t.Errorf("source = %q", r.Source)
		}
		if r.Price <= 0 || r.Volume <= 0 {
			t.Errorf("record not populated: %+v", r)
		}
	}
}

func TestAlphaVantageQuotaMessageIsTerminal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Information": "We have detected your API key and you have reached your daily rate limit of 25 requests."}`))
	}))
	defer srv.Close()

	c, err := NewAlphaVantage("test-key", 60, 25)
	if err != nil {
		t.Fatalf("NewAlphaVantage: %v", err)
	}
	c.baseURL = srv.URL

	_, err = c.FetchDaily(context.Background(), "GLXZ")
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("FetchDaily = %v, want ErrQuotaExhausted", err)
	}
}

func TestAlphaVantageLocalQuotaCounter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Time Series (Daily)": {}}`))
	}))
	defer srv.Close()

	c, err := NewAlphaVantage("test-key", 600, 1)
	if err != nil {
		t.Fatalf("NewAlphaVantage: %v", err)
	}
	c.baseURL = srv.URL

	if _, err := c.FetchDaily(context.Background(), "AAA"); err != nil {
		t.Fatalf("first FetchDaily: %v", err)
	}
	_, err = c.FetchDaily(context.Background(), "BBB")
	if !errors.Is(err, ErrQuotaExhausted) {
		t.Fatalf("second FetchDaily = %v, want ErrQuotaExhausted", err)
	}
}

func TestAlphaVantageErrorMessageIsEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	}))
	defer srv.Close()

	c, err := NewAlphaVantage("test-key", 60, 25)
	if err != nil {
		t.Fatalf("NewAlphaVantage: %v", err)
	}
	c.baseURL = srv.URL

	records, err := c.FetchDaily(context.Background(), "NOSUCH")
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestNewAlphaVantageRequiresKey(t *testing.T) {
	if _, err := NewAlphaVantage("", 5, 25); err == nil {
		t.Fatal("NewAlphaVantage should fail without an API key")
	}
}

func TestSECEdgarFetchFilings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "pennypipe test test@example.com" {
			t.Errorf("missing User-Agent header, got %q", r.Header.Get("User-Agent"))
		}
		if r.URL.Path != "/CIK0000878146.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{
			"cik": "878146",
			"name": "VIPER NETWORKS INC",
			"sic": "3661",
			"sicDescription": "Telephone & Telegraph Apparatus",
			"tickers": ["VPER"],
			"exchanges": ["OTC"],
			"filings": {"recent": {
				"accessionNumber": ["0000878146-05-000012", "0000878146-99-000003"],
				"filingDate": ["2005-05-01", "1999-05-01"],
				"form": ["10-K", "8-K"],
				"primaryDocument": ["viper10k.htm", "viper8k.txt"],
				"primaryDocDescription": ["Annual report", ""],
				"size": [102400, 2048]
			}}
		}`))
	}))
	defer srv.Close()

	c, err := NewSECEdgar("pennypipe test test@example.com", time.Millisecond)
	if err != nil {
		t.Fatalf("NewSECEdgar: %v", err)
	}
	c.submissionsURL = srv.URL
	c.archivesURL = "https://www.sec.gov/Archives/edgar/data"

	filings, info, err := c.FetchFilings(context.Background(), "0000878146")
	if err != nil {
		t.Fatalf("FetchFilings: %v", err)
	}
	if info == nil || info.Name != "VIPER NETWORKS INC" {
		t.Fatalf("company info = %+v", info)
	}
	if len(filings) != 2 {
		t.Fatalf("got %d filings, want 2", len(filings))
	}

	want := "https://www.sec.gov/Archives/edgar/data/878146/000087814605000012/viper10k.htm"
	if filings[0].DocumentURL != want {
		t.Errorf("DocumentURL = %q\nwant %q", filings[0].DocumentURL, want)
	}
	if filings[0].Form != "10-K" || filings[0].FilingDate != "2005-05-01" {
		t.Errorf("first filing = %+v", filings[0])
	}
}

func TestSECEdgar404IsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewSECEdgar("pennypipe test test@example.com", time.Millisecond)
	if err != nil {
		t.Fatalf("NewSECEdgar: %v", err)
	}
	c.submissionsURL = srv.URL

	filings, info, err := c.FetchFilings(context.Background(), "0000000001")
	if err != nil {
		t.Fatalf("404 should not be an error: %v", err)
	}
	if filings != nil || info != nil {
		t.Errorf("404 should yield empty result, got %d filings", len(filings))
	}
}

func TestSECEdgarServerErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewSECEdgar("pennypipe test test@example.com", time.Millisecond)
	if err != nil {
		t.Fatalf("NewSECEdgar: %v", err)
	}
	c.submissionsURL = srv.URL

	if _, _, err := c.FetchFilings(context.Background(), "0000878146"); err == nil {
		t.Fatal("500 should surface as an error")
	}
}

func TestYahooFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": [{
			"timestamp": [1577976600, 1578063000],
			"indicators": {"quote": [{
				"close": [0.11, null],
				"volume": [35000, 0]
			}]}
		}], "error": null}}`))
	}))
	defer srv.Close()

	c := NewYahoo(time.Millisecond)
	c.baseURL = srv.URL

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC)
	records, err := c.FetchDaily(context.Background(), "GLXZ", start, end)
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	// The null close slot is dropped.
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Price != 0.11 || records[0].Volume != 35000 {
		t.Errorf("record = %+v", records[0])
	}
	if records[0].Source != domain.SourceYahoo {
		t.Errorf("source = %q", records[0].Source)
	}
}

func TestYahooErrorEnvelopeIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	c := NewYahoo(time.Millisecond)
	c.baseURL = srv.URL

	records, err := c.FetchDaily(context.Background(), "DEAD", time.Now().AddDate(-1, 0, 0), time.Now())
	if err != nil {
		t.Fatalf("error envelope should not be an error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestTwelveDataFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok", "values": [
			{"datetime": "2020-01-03", "close": "0.10", "volume": "12000"},
			{"datetime": "2020-01-02", "close": "0.11", "volume": "35000"}
		]}`))
	}))
	defer srv.Close()

	c, err := NewTwelveData("test-key", 600)
	if err != nil {
		t.Fatalf("NewTwelveData: %v", err)
	}
	c.baseURL = srv.URL

	records, err := c.FetchDaily(context.Background(), "GLXZ",
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Source != domain.SourceTwelveData {
		t.Errorf("source = %q", records[0].Source)
	}
}

func TestTwelveDataNoDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "error", "code": 404, "message": "symbol not found"}`))
	}))
	defer srv.Close()

	c, err := NewTwelveData("test-key", 600)
	if err != nil {
		t.Fatalf("NewTwelveData: %v", err)
	}
	c.baseURL = srv.URL

	records, err := c.FetchDaily(context.Background(), "NOSUCH", time.Now().AddDate(-1, 0, 0), time.Now())
	if err != nil {
		t.Fatalf("no-data envelope should not be an error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestFinnhubNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s": "no_data"}`))
	}))
	defer srv.Close()

	c, err := NewFinnhub("test-key", 600)
	if err != nil {
		t.Fatalf("NewFinnhub: %v", err)
	}
	c.baseURL = srv.URL

	records, err := c.FetchDaily(context.Background(), "GLXZ", time.Now().AddDate(-1, 0, 0), time.Now())
	if err != nil {
		t.Fatalf("no_data should not be an error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestMassiveFetchDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OK", "resultsCount": 1, "results": [
			{"t": 1577923200000, "c": 0.11, "v": 35000}
		]}`))
	}))
	defer srv.Close()

	c, err := NewMassive("test-key", 600)
	if err != nil {
		t.Fatalf("NewMassive: %v", err)
	}
	c.baseURL = srv.URL

	records, err := c.FetchDaily(context.Background(), "GLXZ",
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Datetime != "2020-01-02" {
		t.Errorf("datetime = %q, want 2020-01-02", records[0].Datetime)
	}
}

func TestHTTPErrorUnwrapsRateLimited(t *testing.T) {
	err := error(&HTTPError{StatusCode: http.StatusTooManyRequests, URL: "http://x"})
	if !errors.Is(err, ErrRateLimited) {
		t.Error("429 HTTPError should unwrap to ErrRateLimited")
	}
	err = &HTTPError{StatusCode: http.StatusInternalServerError, URL: "http://x"}
	if errors.Is(err, ErrRateLimited) {
		t.Error("500 HTTPError should not be ErrRateLimited")
	}
}

func TestRetryOn429EventuallySucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"status": "ok", "values": []}`))
	}))
	defer srv.Close()

	c, err := NewTwelveData("test-key", 600)
	if err != nil {
		t.Fatalf("NewTwelveData: %v", err)
	}
	c.baseURL = srv.URL

	// Shrink the backoff so the retry is immediate in tests.
	var out []domain.RawTradeRecord
	err = util.Retry(context.Background(), 3, 0, func() error {
		var e error
		out, e = c.fetchOnce(context.Background(), srv.URL+"/time_series", "GLXZ")
		return e
	})
	if err != nil {
		t.Fatalf("retry should succeed after one 429: %v", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
	_ = out
}
