package pipeline

import (
	"context"
	"log/slog"
	"time"

	"pennypipe/internal/config"
	"pennypipe/internal/domain"
	"pennypipe/internal/entity"
	"pennypipe/internal/store"
)

// NormalizationSummary is the cross-entity report for the normalize stage.
type NormalizationSummary struct {
	Entities    []NormalizationEntry `json:"entities"`
	TradingDays int                  `json:"tradingDays"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// NormalizationEntry is one entity's normalization outcome.
type NormalizationEntry struct {
	CIK         string `json:"cik"`
	Ticker      string `json:"ticker"`
	TradingDays int    `json:"tradingDays"`
	FirstTrade  string `json:"firstTrade"`
	LastTrade   string `json:"lastTrade"`
}

// NormalizeStage turns each entity's consolidated record series into daily
// OHLCV bars plus whole-period metrics.
type NormalizeStage struct {
	entities []entity.Entity
	cache    *store.CacheStore
	catalog  *store.Catalog
	log      *slog.Logger
}

// NewNormalizeStage builds the stage.
func NewNormalizeStage(_ *config.Config, entities []entity.Entity, cache *store.CacheStore, catalog *store.Catalog, log *slog.Logger) *NormalizeStage {
	return &NormalizeStage{entities: entities, cache: cache, catalog: catalog, log: log}
}

func (s *NormalizeStage) Name() string { return "normalize" }

// Run normalizes every entity that has consolidated data.
func (s *NormalizeStage) Run(ctx context.Context) error {
	summary := NormalizationSummary{GeneratedAt: time.Now().UTC()}

	for _, ent := range s.entities {
		if !ent.HasMarketData {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		started := time.Now().UTC()
		cik := ent.PaddedCIK()
		ticker := ent.PrimaryTicker
		log := s.log.With("cik", cik, "ticker", ticker)

		cons, err := s.cache.ReadConsolidated(cik, ticker)
		if err != nil {
			log.Error("reading consolidated data", "error", err)
			continue
		}
		if cons == nil {
			log.Info("no consolidated data, skipping")
			continue
		}

		daily := bucketDaily(cons.Records)
		metrics := computeMetrics(daily)
		data := &domain.NormalizedEntityData{
			CIK:         cik,
			Ticker:      ticker,
			Company:     cons.Company,
			Daily:       daily,
			Metrics:     metrics,
			Sources:     cons.Sources,
			GeneratedAt: time.Now().UTC(),
		}
		if err := s.cache.WriteNormalized(data); err != nil {
			log.Error("writing normalized data", "error", err)
			continue
		}

		summary.Entities = append(summary.Entities, NormalizationEntry{
			CIK:         cik,
			Ticker:      ticker,
			TradingDays: metrics.TradingDays,
			FirstTrade:  metrics.FirstTradeDate,
			LastTrade:   metrics.LastTradeDate,
		})
		summary.TradingDays += metrics.TradingDays

		log.Info("entity normalized", "tradingDays", metrics.TradingDays)
		recordRun(ctx, s.catalog, s.Name(), cik, ticker, metrics.TradingDays, cons.Sources, "", started)
	}

	return s.cache.WriteSummary("normalized", summary)
}

// bucketDaily groups a chronologically sorted record series into one bar per
// calendar date. Open and Close are the first and last positive prices of
// the day in time order; zero prices contribute volume and trade count but
// never price levels. Days with no positive price at all are dropped.
func bucketDaily(records []domain.RawTradeRecord) []domain.DailyOHLCV {
	var out []domain.DailyOHLCV
	var cur *domain.DailyOHLCV

	flush := func() {
		if cur != nil && cur.Open > 0 {
			cur.DollarVolume = cur.Close * float64(cur.Volume)
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, r := range records {
		date := r.Date()
		if date == "" {
			continue
		}
		if cur == nil || cur.Date != date {
			flush()
			cur = &domain.DailyOHLCV{Date: date}
		}

		cur.Volume += r.Volume
		cur.TradeCount++
		cur.Sources = addSource(cur.Sources, r.Source)

		if r.Price <= 0 {
			continue
		}
		if cur.Open == 0 {
			cur.Open = r.Price
			cur.High = r.Price
			cur.Low = r.Price
		}
		cur.Close = r.Price
		if r.Price > cur.High {
			cur.High = r.Price
		}
		if r.Price < cur.Low {
			cur.Low = r.Price
		}
	}
	flush()
	return out
}

// addSource appends src if not already present, preserving encounter order.
func addSource(sources []domain.Source, src domain.Source) []domain.Source {
	for _, s := range sources {
		if s == src {
			return sources
		}
	}
	return append(sources, src)
}

// computeMetrics summarizes a daily bar series in a single pass. An empty
// series yields the zero value.
func computeMetrics(daily []domain.DailyOHLCV) domain.PeriodMetrics {
	var m domain.PeriodMetrics
	if len(daily) == 0 {
		return m
	}

	m.FirstTradeDate = daily[0].Date
	m.LastTradeDate = daily[len(daily)-1].Date
	m.TradingDays = len(daily)

	var closeSum float64
	for _, d := range daily {
		if d.High > m.PeakPrice {
			m.PeakPrice = d.High
			m.PeakDate = d.Date
		}
		if d.Low > 0 && (m.LowPrice == 0 || d.Low < m.LowPrice) {
			m.LowPrice = d.Low
			m.LowDate = d.Date
		}
		if d.Volume > m.HighestVolume {
			m.HighestVolume = d.Volume
			m.HighestVolumeDate = d.Date
		}
		if d.DollarVolume > m.HighestDollarVolume {
			m.HighestDollarVolume = d.DollarVolume
			m.HighestDollarVolumeDate = d.Date
		}
		m.TotalVolume += d.Volume
		m.TotalDollarVolume += d.DollarVolume
		closeSum += d.Close
	}
	m.AvgPrice = closeSum / float64(len(daily))

	firstOpen := daily[0].Open
	lastClose := daily[len(daily)-1].Close
	m.PriceChange = lastClose - firstOpen
	if firstOpen != 0 {
		m.PriceChangePercent = m.PriceChange / firstOpen * 100
	}
	return m
}
