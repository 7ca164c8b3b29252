package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"pennypipe/internal/config"
	"pennypipe/internal/domain"
	"pennypipe/internal/entity"
	"pennypipe/internal/store"
	"pennypipe/pkg/published"
)

// Sentinel initial values for the global date-range scan. They survive into
// the summary as empty strings when no entity had data.
const (
	sentinelEarliest = "9999-12-31"
	sentinelLatest   = "0000-01-01"
)

// PublishStage joins normalized data with cached SEC filings and emits the
// public artifacts: per-period JSON and CSV files, per-entity filing lists,
// and the cross-entity summary index.
type PublishStage struct {
	entities []entity.Entity
	cache    *store.CacheStore
	outDir   string
	catalog  *store.Catalog
	log      *slog.Logger
}

// NewPublishStage builds the stage. Artifacts land in the configured public
// directory.
func NewPublishStage(cfg *config.Config, entities []entity.Entity, cache *store.CacheStore, catalog *store.Catalog, log *slog.Logger) *PublishStage {
	return &PublishStage{
		entities: entities,
		cache:    cache,
		outDir:   cfg.Storage.PublicDir,
		catalog:  catalog,
		log:      log,
	}
}

func (s *PublishStage) Name() string { return "publish" }

// Run publishes every configured entity. Entities without normalized data
// still appear in the summary index with HasData false.
func (s *PublishStage) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return err
	}

	summary := published.EntitiesSummary{
		Entities:    []published.EntitySummary{},
		GeneratedAt: time.Now().UTC(),
	}
	earliest, latest := sentinelEarliest, sentinelLatest

	for _, ent := range s.entities {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, first, last := s.publishEntity(ctx, ent)
		summary.Entities = append(summary.Entities, entry)
		for _, p := range entry.Periods {
			summary.TotalRecords += p.TradingDays
		}
		if first != "" && first < earliest {
			earliest = first
		}
		if last != "" && last > latest {
			latest = last
		}
	}

	if earliest != sentinelEarliest {
		summary.DateRange.Earliest = earliest
	}
	if latest != sentinelLatest {
		summary.DateRange.Latest = latest
	}
	return writeArtifact(filepath.Join(s.outDir, "entities-summary.json"), summary)
}

// publishEntity emits every artifact for one entity and returns its summary
// entry plus the first/last trade dates it contributed (empty when none).
func (s *PublishStage) publishEntity(ctx context.Context, ent entity.Entity) (published.EntitySummary, string, string) {
	started := time.Now().UTC()
	cik := ent.PaddedCIK()
	log := s.log.With("cik", cik, "ticker", ent.PrimaryTicker)

	entry := published.EntitySummary{
		CIK:     cik,
		Ticker:  ent.PrimaryTicker,
		Company: ent.CurrentName(),
		Periods: []published.PeriodSummary{},
	}

	var data *domain.NormalizedEntityData
	if ent.HasMarketData {
		var err error
		data, err = s.cache.ReadNormalized(cik, ent.PrimaryTicker)
		if err != nil {
			log.Error("reading normalized data", "error", err)
		}
	}
	if data == nil || len(data.Daily) == 0 {
		log.Info("no normalized data, publishing summary entry only")
		return entry, "", ""
	}
	if data.Company != "" {
		entry.Company = data.Company
	}

	var first, last string
	for _, tp := range ent.Tickers {
		daily := sliceDaily(data.Daily, tp.Start, tp.End)
		if len(daily) == 0 {
			continue
		}
		metrics := computeMetrics(daily)

		base := fmt.Sprintf("CIK%s-%s-%s-%s",
			cik, tp.Symbol, metrics.FirstTradeDate[:4], metrics.LastTradeDate[:4])
		esd := published.EntityStockData{
			CIK:         cik,
			Ticker:      tp.Symbol,
			Company:     entry.Company,
			Period:      published.Period{Start: tp.Start, End: tp.End},
			Exchange:    string(tp.Exchange),
			Metrics:     metrics,
			DailyData:   daily,
			Sources:     data.Sources,
			GeneratedAt: time.Now().UTC(),
		}
		if err := writeArtifact(filepath.Join(s.outDir, base+".json"), esd); err != nil {
			log.Error("writing entity json", "file", base, "error", err)
			continue
		}
		if err := s.writeCSV(filepath.Join(s.outDir, base+".csv"), daily); err != nil {
			log.Error("writing entity csv", "file", base, "error", err)
			continue
		}

		entry.Periods = append(entry.Periods, published.PeriodSummary{
			Ticker:      tp.Symbol,
			Start:       tp.Start,
			End:         tp.End,
			TradingDays: metrics.TradingDays,
			PeakPrice:   metrics.PeakPrice,
			TotalVolume: metrics.TotalVolume,
		})
		if first == "" || metrics.FirstTradeDate < first {
			first = metrics.FirstTradeDate
		}
		if metrics.LastTradeDate > last {
			last = metrics.LastTradeDate
		}
		log.Info("period published", "file", base, "tradingDays", metrics.TradingDays)
	}
	entry.HasData = len(entry.Periods) > 0

	if entry.HasData {
		s.publishFilings(ent, entry.Company, log)
	}

	recordRun(ctx, s.catalog, s.Name(), cik, ent.PrimaryTicker, len(entry.Periods), data.Sources, "", started)
	return entry, first, last
}

// publishFilings emits the entity's filing list filtered to its trading
// period span.
func (s *PublishStage) publishFilings(ent entity.Entity, company string, log *slog.Logger) {
	cik := ent.PaddedCIK()
	cached, err := s.cache.ReadFilings(cik)
	if err != nil {
		log.Error("reading filings cache", "error", err)
		return
	}
	if cached == nil {
		return
	}

	start, end := tradingSpan(ent)
	artifact := published.FilingsArtifact{
		CIK:         cik,
		Company:     company,
		Filings:     filterFilings(cached.Filings, start, end),
		GeneratedAt: time.Now().UTC(),
	}
	path := filepath.Join(s.outDir, cik+"-filings.json")
	if err := writeArtifact(path, artifact); err != nil {
		log.Error("writing filings artifact", "error", err)
		return
	}
	log.Info("filings published", "count", len(artifact.Filings))
}

// sliceDaily returns the bars whose date falls in [start, end] inclusive.
// An empty end keeps the period open.
func sliceDaily(daily []domain.DailyOHLCV, start, end string) []domain.DailyOHLCV {
	var out []domain.DailyOHLCV
	for _, d := range daily {
		if d.Date < start {
			continue
		}
		if end != "" && d.Date > end {
			continue
		}
		out = append(out, d)
	}
	return out
}

// filterFilings keeps filings whose filing date falls in [start, end]
// inclusive. An empty end keeps the span open.
func filterFilings(filings []domain.SECFiling, start, end string) []domain.SECFiling {
	out := []domain.SECFiling{}
	for _, f := range filings {
		if f.FilingDate < start {
			continue
		}
		if end != "" && f.FilingDate > end {
			continue
		}
		out = append(out, f)
	}
	return out
}

// tradingSpan returns the earliest start and latest end across the entity's
// ticker periods. End is empty when any period is still open.
func tradingSpan(ent entity.Entity) (string, string) {
	var start, end string
	open := false
	for _, tp := range ent.Tickers {
		if start == "" || tp.Start < start {
			start = tp.Start
		}
		if tp.End == "" {
			open = true
		} else if tp.End > end {
			end = tp.End
		}
	}
	if open {
		end = ""
	}
	return start, end
}

func (s *PublishStage) writeCSV(path string, daily []domain.DailyOHLCV) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := published.WriteCSV(f, daily); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeArtifact(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
