package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"pennypipe/internal/config"
	"pennypipe/internal/domain"
	"pennypipe/internal/entity"
	"pennypipe/internal/provider"
	"pennypipe/internal/store"
)

// FetchOptions disables individual providers for a run. The keyed extras
// (Twelve Data, Finnhub, Massive, Alpaca) are additionally skipped whenever
// their credentials are absent.
type FetchOptions struct {
	SkipAlphaVantage bool
	SkipSECEdgar     bool
	SkipYahoo        bool
	SkipAlpaca       bool
}

// FetchStage pulls trading records and filing metadata from every enabled
// provider into the raw cache tree. Providers are polled strictly in
// sequence per entity so each client's rate limiter governs the whole run.
type FetchStage struct {
	entities []entity.Entity
	cache    *store.CacheStore
	catalog  *store.Catalog
	log      *slog.Logger

	av      *provider.AlphaVantage
	sec     *provider.SECEdgar
	yahoo   *provider.Yahoo
	td      *provider.TwelveData
	finnhub *provider.Finnhub
	massive *provider.Massive
	alpaca  *provider.Alpaca
}

// NewFetchStage builds the stage and its provider clients from configuration.
// Alpha Vantage and SEC EDGAR require credentials unless skipped; the keyed
// extras are simply left out when unconfigured.
func NewFetchStage(cfg *config.Config, entities []entity.Entity, cache *store.CacheStore, catalog *store.Catalog, log *slog.Logger, opts FetchOptions) (*FetchStage, error) {
	s := &FetchStage{
		entities: entities,
		cache:    cache,
		catalog:  catalog,
		log:      log,
	}

	var err error
	if !opts.SkipAlphaVantage {
		s.av, err = provider.NewAlphaVantage(cfg.Providers.AlphaVantage.APIKey,
			cfg.Providers.AlphaVantage.RequestsPerMinute, cfg.Providers.AlphaVantage.DailyQuota)
		if err != nil {
			return nil, err
		}
	}
	if !opts.SkipSECEdgar {
		s.sec, err = provider.NewSECEdgar(cfg.Providers.SECEdgar.UserAgent,
			time.Duration(cfg.Providers.SECEdgar.DelayMS)*time.Millisecond)
		if err != nil {
			return nil, err
		}
	}
	if !opts.SkipYahoo {
		s.yahoo = provider.NewYahoo(time.Duration(cfg.Providers.Yahoo.DelayMS) * time.Millisecond)
	}
	if key := cfg.Providers.TwelveData.APIKey; key != "" {
		s.td, err = provider.NewTwelveData(key, cfg.Providers.TwelveData.RequestsPerMinute)
		if err != nil {
			return nil, err
		}
	}
	if key := cfg.Providers.Finnhub.APIKey; key != "" {
		s.finnhub, err = provider.NewFinnhub(key, cfg.Providers.Finnhub.RequestsPerMinute)
		if err != nil {
			return nil, err
		}
	}
	if key := cfg.Providers.Massive.APIKey; key != "" {
		s.massive, err = provider.NewMassive(key, cfg.Providers.Massive.RequestsPerMinute)
		if err != nil {
			return nil, err
		}
	}
	if !opts.SkipAlpaca && cfg.Providers.Alpaca.APIKey != "" && cfg.Providers.Alpaca.APISecret != "" {
		s.alpaca, err = provider.NewAlpaca(cfg.Providers.Alpaca.APIKey, cfg.Providers.Alpaca.APISecret)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *FetchStage) Name() string { return "fetch" }

// Run fetches every entity with market data. Provider failures are logged
// and skipped; only context cancellation aborts the run.
func (s *FetchStage) Run(ctx context.Context) error {
	for _, ent := range s.entities {
		if !ent.HasMarketData {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, tp := range ent.Tickers {
			s.fetchTicker(ctx, ent, tp)
		}
		s.fetchFilings(ctx, ent)
	}
	return nil
}

// fetchTicker pulls one ticker period from every enabled market-data
// provider and caches whatever came back.
func (s *FetchStage) fetchTicker(ctx context.Context, ent entity.Entity, tp entity.TickerPeriod) {
	started := time.Now().UTC()
	cik := ent.PaddedCIK()
	log := s.log.With("cik", cik, "ticker", tp.Symbol)

	start, err := time.Parse("2006-01-02", tp.Start)
	if err != nil {
		log.Error("bad ticker period start", "start", tp.Start, "error", err)
		return
	}
	end := time.Now().UTC()
	if tp.End != "" {
		end, err = time.Parse("2006-01-02", tp.End)
		if err != nil {
			log.Error("bad ticker period end", "end", tp.End, "error", err)
			return
		}
	}

	var total int
	var sources []domain.Source
	add := func(source domain.Source, records []domain.RawTradeRecord, suffix string) {
		if len(records) == 0 {
			return
		}
		env := store.Envelope{CIK: cik, Ticker: tp.Symbol, Source: source, Records: records}
		if _, err := s.cache.WriteRaw(env, suffix); err != nil {
			log.Error("writing raw cache", "source", source, "error", err)
			return
		}
		total += len(records)
		if len(sources) == 0 || sources[len(sources)-1] != source {
			sources = append(sources, source)
		}
	}

	s.fetchAlphaVantage(ctx, tp.Symbol, start, end, log, add)

	if s.yahoo != nil {
		records, err := s.yahoo.FetchDaily(ctx, tp.Symbol, start, end)
		if err != nil {
			log.Error("yahoo fetch failed", "error", err)
		} else {
			add(domain.SourceYahoo, records, "")
		}
	}
	if s.td != nil {
		records, err := s.td.FetchDaily(ctx, tp.Symbol, start, end)
		if err != nil {
			log.Error("twelve data fetch failed", "error", err)
		} else {
			add(domain.SourceTwelveData, records, "")
		}
	}
	if s.finnhub != nil {
		records, err := s.finnhub.FetchDaily(ctx, tp.Symbol, start, end)
		if err != nil {
			log.Error("finnhub fetch failed", "error", err)
		} else {
			add(domain.SourceFinnhub, records, "")
		}
	}
	if s.massive != nil {
		records, err := s.massive.FetchDaily(ctx, tp.Symbol, start, end)
		if err != nil {
			log.Error("massive fetch failed", "error", err)
		} else {
			add(domain.SourceMassive, records, "")
		}
	}
	if s.alpaca != nil {
		records, err := s.alpaca.FetchTrades(ctx, tp.Symbol, start, end)
		if err != nil {
			log.Error("alpaca fetch failed", "error", err)
		} else {
			add(domain.SourceAlpaca, records, "")
		}
	}

	log.Info("ticker fetched", "records", total, "sources", len(sources))
	recordRun(ctx, s.catalog, s.Name(), cik, tp.Symbol, total, sources, "", started)
}

// fetchAlphaVantage pulls the daily series plus one intraday file per month
// of the period. The free tier's daily quota is tiny, so quota exhaustion
// disables the provider for the remainder of the run instead of failing it.
func (s *FetchStage) fetchAlphaVantage(ctx context.Context, symbol string, start, end time.Time, log *slog.Logger, add func(domain.Source, []domain.RawTradeRecord, string)) {
	if s.av == nil {
		return
	}

	records, err := s.av.FetchDaily(ctx, symbol)
	if s.avDisabledOn(err, log) {
		return
	}
	if err != nil {
		log.Error("alpha vantage daily fetch failed", "error", err)
	} else {
		add(domain.SourceAlphaVantage, records, "")
	}

	for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
		month := m.Format("2006-01")
		records, err := s.av.FetchIntradayMonth(ctx, symbol, month)
		if s.avDisabledOn(err, log) {
			return
		}
		if err != nil {
			log.Error("alpha vantage intraday fetch failed", "month", month, "error", err)
			continue
		}
		add(domain.SourceAlphaVantage, records, month)
	}
}

// avDisabledOn turns quota exhaustion into a one-time disable of the Alpha
// Vantage client so the rest of the run keeps going on other providers.
func (s *FetchStage) avDisabledOn(err error, log *slog.Logger) bool {
	if !errors.Is(err, provider.ErrQuotaExhausted) {
		return false
	}
	log.Warn("alpha vantage daily quota exhausted, disabling for this run")
	s.av = nil
	return true
}

// fetchFilings pulls the entity's EDGAR submission history into the filings
// cache. An unknown CIK is cached as an empty filing list.
func (s *FetchStage) fetchFilings(ctx context.Context, ent entity.Entity) {
	if s.sec == nil {
		return
	}
	started := time.Now().UTC()
	cik := ent.PaddedCIK()
	log := s.log.With("cik", cik)

	filings, info, err := s.sec.FetchFilings(ctx, cik)
	if err != nil {
		log.Error("edgar fetch failed", "error", err)
		return
	}

	company := ent.CurrentName()
	if info != nil && info.Name != "" {
		company = info.Name
	}
	f := &store.FilingsFile{
		CIK:       cik,
		Company:   company,
		Filings:   filings,
		Info:      info,
		FetchedAt: time.Now().UTC(),
	}
	if err := s.cache.WriteFilings(f); err != nil {
		log.Error("writing filings cache", "error", err)
		return
	}

	log.Info("filings fetched", "count", len(filings))
	recordRun(ctx, s.catalog, s.Name(), cik, ent.PrimaryTicker, len(filings), []domain.Source{domain.SourceSECEdgar}, "filings", started)
}
