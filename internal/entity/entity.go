// Package entity models the tracked SEC-registered entities: their CIK
// identifiers, ticker history, corporate name history, and category. The
// entity set is static reference data loaded once from configuration and
// immutable at runtime.
package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category distinguishes corporate filers from CIK-registered individuals.
type Category string

const (
	CategoryCorporate  Category = "corporate"
	CategoryIndividual Category = "individual"
)

// Exchange is the venue a ticker period traded on.
type Exchange string

const (
	ExchangeOTC    Exchange = "OTC"
	ExchangePink   Exchange = "PINK"
	ExchangeOTCBB  Exchange = "OTCBB"
	ExchangeNYSE   Exchange = "NYSE"
	ExchangeNasdaq Exchange = "NASDAQ"
)

// TickerPeriod is one span of an entity's ticker history. End empty means
// the symbol is still active. Dates are YYYY-MM-DD strings; lexical order
// equals chronological order.
type TickerPeriod struct {
	Symbol   string   `yaml:"symbol" json:"symbol"`
	Start    string   `yaml:"start" json:"start"`
	End      string   `yaml:"end,omitempty" json:"end,omitempty"`
	Exchange Exchange `yaml:"exchange,omitempty" json:"exchange,omitempty"`
}

// NamePeriod is one span of an entity's legal-name history.
type NamePeriod struct {
	Name  string `yaml:"name" json:"name"`
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end,omitempty" json:"end,omitempty"`
}

// Entity is one tracked SEC filer.
type Entity struct {
	CIK           string         `yaml:"cik" json:"cik"`
	PrimaryTicker string         `yaml:"primary_ticker" json:"primaryTicker"`
	Category      Category       `yaml:"category" json:"category"`
	Tickers       []TickerPeriod `yaml:"tickers,omitempty" json:"tickers,omitempty"`
	Names         []NamePeriod   `yaml:"names,omitempty" json:"names,omitempty"`
	Related       []string       `yaml:"related,omitempty" json:"related,omitempty"`
	HasMarketData bool           `yaml:"has_market_data" json:"hasMarketData"`
}

// PaddedCIK returns the 10-digit zero-padded CIK form used in file names and
// the EDGAR submissions API.
func (e Entity) PaddedCIK() string {
	return fmt.Sprintf("%010s", strings.TrimLeft(e.CIK, "0"))
}

// NumericCIK returns the CIK as an integer for API calls that reject leading
// zeros.
func (e Entity) NumericCIK() (int64, error) {
	n, err := strconv.ParseInt(strings.TrimLeft(e.CIK, "0"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing CIK %q: %w", e.CIK, err)
	}
	return n, nil
}

// contains reports whether a period [start, end] covers date. An empty end
// means the period is still open.
func contains(start, end, date string) bool {
	if date < start {
		return false
	}
	return end == "" || date <= end
}

// TickerOn resolves the ticker period active on the given date. When no
// period covers the date, it falls back to the most recent period that
// started on or before it; nil means the date predates the entity's history.
func (e Entity) TickerOn(date string) *TickerPeriod {
	var fallback *TickerPeriod
	for i := range e.Tickers {
		tp := &e.Tickers[i]
		if contains(tp.Start, tp.End, date) {
			return tp
		}
		if tp.Start <= date && (fallback == nil || tp.Start > fallback.Start) {
			fallback = tp
		}
	}
	return fallback
}

// NameOn resolves the legal name in effect on the given date, with the same
// most-recent fallback as TickerOn. Returns "" when the date predates the
// name history entirely.
func (e Entity) NameOn(date string) string {
	var fallback *NamePeriod
	for i := range e.Names {
		np := &e.Names[i]
		if contains(np.Start, np.End, date) {
			return np.Name
		}
		if np.Start <= date && (fallback == nil || np.Start > fallback.Start) {
			fallback = np
		}
	}
	if fallback != nil {
		return fallback.Name
	}
	return ""
}

// CurrentName returns the most recent legal name, regardless of date.
func (e Entity) CurrentName() string {
	return e.NameOn("9999-12-31")
}

// Primary returns the ticker period matching the entity's primary ticker, or
// the last period when none matches.
func (e Entity) Primary() *TickerPeriod {
	for i := range e.Tickers {
		if e.Tickers[i].Symbol == e.PrimaryTicker {
			return &e.Tickers[i]
		}
	}
	if len(e.Tickers) > 0 {
		return &e.Tickers[len(e.Tickers)-1]
	}
	return nil
}

// ActiveYears lists every calendar year the ticker period spans. Open-ended
// periods run through the current year.
func (tp TickerPeriod) ActiveYears() []int {
	start, err := time.Parse("2006-01-02", tp.Start)
	if err != nil {
		return nil
	}
	endYear := time.Now().Year()
	if tp.End != "" {
		end, err := time.Parse("2006-01-02", tp.End)
		if err != nil {
			return nil
		}
		endYear = end.Year()
	}

	var years []int
	for y := start.Year(); y <= endYear; y++ {
		years = append(years, y)
	}
	return years
}

// Validate checks that ticker and name periods do not overlap ambiguously:
// lookup by date must resolve to exactly one covering period.
func (e Entity) Validate() error {
	if strings.TrimLeft(e.CIK, "0") == "" {
		return fmt.Errorf("entity %q: empty or zero CIK", e.CIK)
	}
	if _, err := e.NumericCIK(); err != nil {
		return err
	}

	for i := range e.Tickers {
		for j := i + 1; j < len(e.Tickers); j++ {
			a, b := e.Tickers[i], e.Tickers[j]
			if periodsOverlap(a.Start, a.End, b.Start, b.End) {
				return fmt.Errorf("entity %s: ticker periods %s and %s overlap", e.CIK, a.Symbol, b.Symbol)
			}
		}
	}
	for i := range e.Names {
		for j := i + 1; j < len(e.Names); j++ {
			a, b := e.Names[i], e.Names[j]
			if periodsOverlap(a.Start, a.End, b.Start, b.End) {
				return fmt.Errorf("entity %s: name periods %q and %q overlap", e.CIK, a.Name, b.Name)
			}
		}
	}
	return nil
}

// periodsOverlap reports whether two [start, end] spans share any date.
// Empty ends are open-ended.
func periodsOverlap(aStart, aEnd, bStart, bEnd string) bool {
	if aEnd != "" && aEnd < bStart {
		return false
	}
	if bEnd != "" && bEnd < aStart {
		return false
	}
	return true
}
