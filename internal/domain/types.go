// Package domain defines the value types that flow through the pipeline:
// raw provider records, consolidated entity data, daily OHLCV bars, period
// metrics, and SEC filing metadata.
package domain

import (
	"time"
)

// Source identifies the provider a record came from.
type Source string

const (
	SourceLocalCache   Source = "local-cache"
	SourceAlphaVantage Source = "alpha-vantage"
	SourceSECEdgar     Source = "sec-edgar"
	SourceYahoo        Source = "yahoo-finance"
	SourceTwelveData   Source = "twelve-data"
	SourceFinnhub      Source = "finnhub"
	SourceMassive      Source = "massive"
	SourceAlpaca       Source = "alpaca"
)

// RawTradeRecord is one observed trade or quote data point from any provider.
// Datetime may be date-only ("2010-03-15") or a full timestamp
// ("2010-03-15 10:30:00"), depending on the source. Records are never mutated
// after creation.
type RawTradeRecord struct {
	Datetime string   `json:"datetime"`
	Price    float64  `json:"price"`
	Volume   int64    `json:"volume"`
	Bid      *float64 `json:"bid,omitempty"`
	BidSize  *int64   `json:"bidSize,omitempty"`
	Ask      *float64 `json:"ask,omitempty"`
	AskSize  *int64   `json:"askSize,omitempty"`
	Source   Source   `json:"source"`
}

// datetimeLayouts lists accepted formats, most specific first.
var datetimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Time parses the record's datetime string.
func (r RawTradeRecord) Time() (time.Time, error) {
	var err error
	var t time.Time
	for _, layout := range datetimeLayouts {
		t, err = time.Parse(layout, r.Datetime)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Date returns the calendar-date portion (YYYY-MM-DD) of the datetime,
// independent of any time-of-day component. Returns "" if the datetime does
// not parse.
func (r RawTradeRecord) Date() string {
	t, err := r.Time()
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// DateRange is a min/max pair of calendar dates (YYYY-MM-DD).
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ConsolidatedEntityData is one entity's merged trading history: every record
// from every source, deduplicated to at most one record per exact datetime.
type ConsolidatedEntityData struct {
	CIK         string           `json:"cik"`
	Ticker      string           `json:"ticker"`
	Company     string           `json:"company"`
	Records     []RawTradeRecord `json:"records"`
	Sources     []Source         `json:"sources"`
	DateRange   DateRange        `json:"dateRange"`
	RecordCount int              `json:"recordCount"`
}

// DailyOHLCV is one trading day's bar. Open and Close are the chronologically
// first and last prices of the day, not the price-ordered extremes, so they
// are not guaranteed to fall inside [Low, High] ordering beyond bucket
// membership.
type DailyOHLCV struct {
	Date         string   `json:"date"`
	Open         float64  `json:"open"`
	High         float64  `json:"high"`
	Low          float64  `json:"low"`
	Close        float64  `json:"close"`
	Volume       int64    `json:"volume"`
	DollarVolume float64  `json:"dollarVolume"`
	TradeCount   int      `json:"tradeCount"`
	Sources      []Source `json:"sources"`
}

// PeriodMetrics summarizes an entity's full daily series. It is recomputed
// wholesale on every normalization run. An empty daily series yields the
// zero value (empty date strings, zero numbers).
type PeriodMetrics struct {
	PeakPrice               float64 `json:"peakPrice"`
	PeakDate                string  `json:"peakDate"`
	LowPrice                float64 `json:"lowPrice"`
	LowDate                 string  `json:"lowDate"`
	AvgPrice                float64 `json:"avgPrice"`
	HighestVolume           int64   `json:"highestVolume"`
	HighestVolumeDate       string  `json:"highestVolumeDate"`
	HighestDollarVolume     float64 `json:"highestDollarVolume"`
	HighestDollarVolumeDate string  `json:"highestDollarVolumeDate"`
	TotalVolume             int64   `json:"totalVolume"`
	TotalDollarVolume       float64 `json:"totalDollarVolume"`
	TradingDays             int     `json:"tradingDays"`
	FirstTradeDate          string  `json:"firstTradeDate"`
	LastTradeDate           string  `json:"lastTradeDate"`
	PriceChange             float64 `json:"priceChange"`
	PriceChangePercent      float64 `json:"priceChangePercent"`
}

// NormalizedEntityData is the normalization stage's per-entity output: the
// daily bar series plus period metrics.
type NormalizedEntityData struct {
	CIK         string        `json:"cik"`
	Ticker      string        `json:"ticker"`
	Company     string        `json:"company"`
	Daily       []DailyOHLCV  `json:"daily"`
	Metrics     PeriodMetrics `json:"metrics"`
	Sources     []Source      `json:"sources"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// SECFiling is one filing's metadata from the SEC EDGAR submissions API.
type SECFiling struct {
	AccessionNumber string `json:"accessionNumber"`
	FilingDate      string `json:"filingDate"`
	Form            string `json:"form"`
	Description     string `json:"description,omitempty"`
	DocumentURL     string `json:"documentUrl"`
	Size            int64  `json:"size,omitempty"`
}

// CompanyInfo is the registrant metadata returned alongside filings.
type CompanyInfo struct {
	CIK            string   `json:"cik"`
	Name           string   `json:"name"`
	SIC            string   `json:"sic,omitempty"`
	SICDescription string   `json:"sicDescription,omitempty"`
	Tickers        []string `json:"tickers,omitempty"`
	Exchanges      []string `json:"exchanges,omitempty"`
}
