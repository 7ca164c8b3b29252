package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"pennypipe/internal/config"
	"pennypipe/internal/domain"
	"pennypipe/internal/entity"
	"pennypipe/internal/provider"
	"pennypipe/internal/store"
)

// ConsolidationSummary is the cross-entity report written next to the
// consolidated files. Skipped-row counts from the local CSV archive are
// surfaced here rather than buried in logs.
type ConsolidationSummary struct {
	Entities     []ConsolidationEntry `json:"entities"`
	TotalRecords int                  `json:"totalRecords"`
	SkippedRows  int                  `json:"skippedRows"`
	GeneratedAt  time.Time            `json:"generatedAt"`
}

// ConsolidationEntry is one entity's consolidation outcome.
type ConsolidationEntry struct {
	CIK         string           `json:"cik"`
	Ticker      string           `json:"ticker"`
	Records     int              `json:"records"`
	SkippedRows int              `json:"skippedRows"`
	Sources     []domain.Source  `json:"sources"`
	DateRange   domain.DateRange `json:"dateRange"`
}

// ConsolidateStage merges the local CSV archive and every raw provider cache
// into one deduplicated record series per entity.
type ConsolidateStage struct {
	entities []entity.Entity
	cache    *store.CacheStore
	local    *provider.LocalCache
	archive  *store.ParquetArchive
	catalog  *store.Catalog
	log      *slog.Logger
}

// NewConsolidateStage builds the stage from configuration. The Parquet
// archive lives under the cache tree beside the JSON output.
func NewConsolidateStage(cfg *config.Config, entities []entity.Entity, cache *store.CacheStore, catalog *store.Catalog, log *slog.Logger) *ConsolidateStage {
	return &ConsolidateStage{
		entities: entities,
		cache:    cache,
		local:    provider.NewLocalCache(cfg.Storage.LocalCSVDir),
		archive:  store.NewParquetArchive(filepath.Join(cfg.Storage.CacheDir, "archive")),
		catalog:  catalog,
		log:      log,
	}
}

func (s *ConsolidateStage) Name() string { return "consolidate" }

// Run consolidates every entity with market data. Entities with no records
// from any source get no consolidated file, only a summary entry.
func (s *ConsolidateStage) Run(ctx context.Context) error {
	summary := ConsolidationSummary{GeneratedAt: time.Now().UTC()}

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

		records, skipped := s.gather(ent, log)
		entry := ConsolidationEntry{CIK: cik, Ticker: ticker, SkippedRows: skipped}
		summary.SkippedRows += skipped

		if len(records) == 0 {
			log.Info("no records from any source, skipping")
			summary.Entities = append(summary.Entities, entry)
			continue
		}

		deduped := dedupeRecords(records)
		data := &domain.ConsolidatedEntityData{
			CIK:         cik,
			Ticker:      ticker,
			Company:     ent.CurrentName(),
			Records:     deduped,
			Sources:     sourceSet(deduped),
			RecordCount: len(deduped),
		}
		if len(deduped) > 0 {
			data.DateRange = domain.DateRange{
				Start: deduped[0].Date(),
				End:   deduped[len(deduped)-1].Date(),
			}
		}

		if err := s.cache.WriteConsolidated(data); err != nil {
			log.Error("writing consolidated data", "error", err)
			continue
		}
		if err := s.archive.WriteRecords(cik, ticker, deduped); err != nil {
			log.Error("writing parquet archive", "error", err)
		}

		entry.Records = data.RecordCount
		entry.Sources = data.Sources
		entry.DateRange = data.DateRange
		summary.Entities = append(summary.Entities, entry)
		summary.TotalRecords += data.RecordCount

		log.Info("entity consolidated",
			"records", data.RecordCount, "raw", len(records), "skippedRows", skipped)
		recordRun(ctx, s.catalog, s.Name(), cik, ticker, data.RecordCount, data.Sources, "", started)
	}

	return s.cache.WriteSummary("consolidated", summary)
}

// gather collects every record for the entity: the local CSV archive for
// each active year of each ticker period, then every cached raw provider
// envelope. The second return is the count of malformed CSV rows skipped.
func (s *ConsolidateStage) gather(ent entity.Entity, log *slog.Logger) ([]domain.RawTradeRecord, int) {
	var records []domain.RawTradeRecord
	var skippedRows int

	for _, tp := range ent.Tickers {
		for _, year := range tp.ActiveYears() {
			recs, skipped, err := s.local.FetchYear(tp.Symbol, year)
			if err != nil {
				log.Error("reading local archive", "symbol", tp.Symbol, "year", year, "error", err)
				continue
			}
			skippedRows += skipped
			records = append(records, recs...)
		}

		envelopes, err := s.cache.ReadRawForEntity(ent.PaddedCIK(), tp.Symbol)
		if err != nil {
			log.Error("reading raw cache", "symbol", tp.Symbol, "error", err)
			continue
		}
		for _, env := range envelopes {
			records = append(records, env.Records...)
		}
	}
	return records, skippedRows
}

// completenessScore ranks records sharing a datetime. Volume outweighs
// everything else; the local archive wins ties against remote providers
// because its rows carry the original quote context.
func completenessScore(r domain.RawTradeRecord) int {
	score := 0
	if r.Volume > 0 {
		score += 2
	}
	if r.Price > 0 {
		score++
	}
	if r.Bid != nil && *r.Bid > 0 {
		score++
	}
	if r.Ask != nil && *r.Ask > 0 {
		score++
	}
	if r.Source == domain.SourceLocalCache {
		score++
	}
	return score
}

// dedupeRecords sorts records chronologically and keeps at most one per
// exact datetime string: the highest completeness score wins, and on ties
// the earliest-inserted record is kept. The result is deterministic for any
// fixed input order.
func dedupeRecords(records []domain.RawTradeRecord) []domain.RawTradeRecord {
	type keyed struct {
		t   time.Time
		rec domain.RawTradeRecord
	}
	sorted := make([]keyed, 0, len(records))
	for _, r := range records {
		t, err := r.Time()
		if err != nil {
			continue
		}
		sorted = append(sorted, keyed{t: t, rec: r})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].t.Before(sorted[j].t)
	})

	out := make([]domain.RawTradeRecord, 0, len(sorted))
	index := make(map[string]int, len(sorted))
	for _, k := range sorted {
		if i, seen := index[k.rec.Datetime]; seen {
			if completenessScore(k.rec) > completenessScore(out[i]) {
				out[i] = k.rec
			}
			continue
		}
		index[k.rec.Datetime] = len(out)
		out = append(out, k.rec)
	}
	return out
}

// sourceSet returns the distinct sources present in records, sorted.
func sourceSet(records []domain.RawTradeRecord) []domain.Source {
	seen := make(map[domain.Source]struct{})
	for _, r := range records {
		seen[r.Source] = struct{}{}
	}
	out := make([]domain.Source, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
