// Package published defines the public artifact types emitted by the publish
// stage and helpers for reading and writing them. Downstream consumers (the
// dashboard front end, analysis notebooks) depend on these shapes staying
// bit-stable.
package published

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"pennypipe/internal/domain"
)

// Period is the ticker period a published file covers.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// EntityStockData is the full per-entity-per-period record, one JSON file
// per entity-ticker-period combination.
type EntityStockData struct {
	CIK         string               `json:"cik"`
	Ticker      string               `json:"ticker"`
	Company     string               `json:"company"`
	Period      Period               `json:"period"`
	Exchange    string               `json:"exchange,omitempty"`
	Metrics     domain.PeriodMetrics `json:"metrics"`
	DailyData   []domain.DailyOHLCV  `json:"dailyData"`
	Sources     []domain.Source      `json:"sources"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// FilingsArtifact is the per-entity filing list, filtered to the entity's
// trading period.
type FilingsArtifact struct {
	CIK         string             `json:"cik"`
	Company     string             `json:"company"`
	Filings     []domain.SECFiling `json:"filings"`
	GeneratedAt time.Time          `json:"generatedAt"`
}

// PeriodSummary is one ticker period's entry in the summary index.
type PeriodSummary struct {
	Ticker      string  `json:"ticker"`
	Start       string  `json:"start"`
	End         string  `json:"end,omitempty"`
	TradingDays int     `json:"tradingDays"`
	PeakPrice   float64 `json:"peakPrice"`
	TotalVolume int64   `json:"totalVolume"`
}

// EntitySummary is one entity's entry in the summary index. Entities with no
// usable data appear with HasData false and an empty period list, so their
// absence is queryable rather than silent.
type EntitySummary struct {
	CIK     string          `json:"cik"`
	Ticker  string          `json:"ticker"`
	Company string          `json:"company"`
	Periods []PeriodSummary `json:"periods"`
	HasData bool            `json:"hasData"`
}

// SummaryDateRange is the global earliest/latest trade date across all
// entities. Both fields are empty when no entity had data.
type SummaryDateRange struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

// EntitiesSummary is the cross-entity index, entities-summary.json.
type EntitiesSummary struct {
	Entities     []EntitySummary  `json:"entities"`
	TotalRecords int              `json:"totalRecords"`
	DateRange    SummaryDateRange `json:"dateRange"`
	GeneratedAt  time.Time        `json:"generatedAt"`
}

// LoadSummary reads an entities-summary.json file.
func LoadSummary(path string) (*EntitiesSummary, error) {
	var s EntitiesSummary
	if err := loadJSON(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadEntityData reads one published entity-period JSON file.
func LoadEntityData(path string) (*EntityStockData, error) {
	var d EntityStockData
	if err := loadJSON(path, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// LoadFilings reads one published filings file.
func LoadFilings(path string) (*FilingsArtifact, error) {
	var f FilingsArtifact
	if err := loadJSON(path, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
