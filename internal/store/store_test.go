package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pennypipe/internal/domain"
)

func TestCacheStoreRawRoundTrip(t *testing.T) {
	s := NewCacheStore(t.TempDir())

	env := Envelope{
		CIK:    "0000013156",
		Ticker: "glxz",
		Year:   2010,
		Source: domain.SourceYahoo,
		Records: []domain.RawTradeRecord{
			{Datetime: "2010-01-04", Price: 0.31, Volume: 1500, Source: domain.SourceYahoo},
		},
		FetchedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	path, err := s.WriteRaw(env, "")
	if err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	want := filepath.Join(s.Dir, "raw", "yahoo-finance", "0000013156-GLXZ.json")
	if path != want {
		t.Errorf("raw path = %s, want %s", path, want)
	}

	// A suffixed write lands beside it and both are found for the entity.
	env.Source = domain.SourceAlphaVantage
	if _, err := s.WriteRaw(env, "2010-01"); err != nil {
		t.Fatalf("WriteRaw with suffix: %v", err)
	}

	envelopes, err := s.ReadRawForEntity("0000013156", "GLXZ")
	if err != nil {
		t.Fatalf("ReadRawForEntity: %v", err)
	}
	if len(envelopes) != 2 {
		t.Fatalf("got %d envelopes, want 2", len(envelopes))
	}
	for _, e := range envelopes {
		if len(e.Records) != 1 || e.Records[0].Price != 0.31 {
			t.Errorf("envelope records not round-tripped: %+v", e)
		}
		if e.FilePath == "" {
			t.Error("envelope FilePath not set")
		}
	}
}

func TestCacheStoreConsolidatedRoundTrip(t *testing.T) {
	s := NewCacheStore(t.TempDir())

	data := &domain.ConsolidatedEntityData{
		CIK:     "0000013156",
		Ticker:  "GLXZ",
		Company: "Galaxy Gaming Inc",
		Records: []domain.RawTradeRecord{
			{Datetime: "2010-01-04 10:00:00", Price: 0.31, Volume: 1500, Source: domain.SourceLocalCache},
		},
		Sources:     []domain.Source{domain.SourceLocalCache},
		DateRange:   domain.DateRange{Start: "2010-01-04", End: "2010-01-04"},
		RecordCount: 1,
	}
	if err := s.WriteConsolidated(data); err != nil {
		t.Fatalf("WriteConsolidated: %v", err)
	}

	got, err := s.ReadConsolidated("0000013156", "GLXZ")
	if err != nil {
		t.Fatalf("ReadConsolidated: %v", err)
	}
	if got == nil || got.RecordCount != 1 || got.DateRange.Start != "2010-01-04" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	missing, err := s.ReadConsolidated("0000999999", "NONE")
	if err != nil {
		t.Fatalf("ReadConsolidated missing: %v", err)
	}
	if missing != nil {
		t.Error("missing consolidated file should return nil, nil")
	}
}

func TestCacheStoreFilingsRoundTrip(t *testing.T) {
	s := NewCacheStore(t.TempDir())

	f := &FilingsFile{
		CIK:     "0000878146",
		Company: "Viper Networks Inc",
		Filings: []domain.SECFiling{
			{AccessionNumber: "0000878146-05-000012", FilingDate: "2005-05-01", Form: "10-K"},
		},
		FetchedAt: time.Now().UTC(),
	}
	if err := s.WriteFilings(f); err != nil {
		t.Fatalf("WriteFilings: %v", err)
	}

	got, err := s.ReadFilings("0000878146")
	if err != nil {
		t.Fatalf("ReadFilings: %v", err)
	}
	if got == nil || len(got.Filings) != 1 || got.Filings[0].Form != "10-K" {
		t.Fatalf("filings round trip mismatch: %+v", got)
	}
}

func TestParquetArchiveRoundTrip(t *testing.T) {
	a := NewParquetArchive(t.TempDir())

	bid, ask := 0.24, 0.26
	bidSize, askSize := int64(500), int64(750)
	records := []domain.RawTradeRecord{
		{Datetime: "2010-03-15 10:30:00", Price: 0.25, Volume: 1000, Bid: &bid, BidSize: &bidSize, Ask: &ask, AskSize: &askSize, Source: domain.SourceLocalCache},
		{Datetime: "2010-03-16 09:45:00", Price: 0.24, Volume: 500, Source: domain.SourceYahoo},
	}

	if err := a.WriteRecords("0000013156", "GLXZ", records); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}

	got, err := a.ReadRecords("0000013156", "GLXZ")
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Price != 0.25 || got[0].Volume != 1000 {
		t.Errorf("first record = %+v", got[0])
	}
	if got[0].Bid == nil || *got[0].Bid != 0.24 {
		t.Errorf("bid not round-tripped: %+v", got[0])
	}
	if got[1].Bid != nil {
		t.Errorf("absent quote should stay nil: %+v", got[1])
	}

	missing, err := a.ReadRecords("0000999999", "NONE")
	if err != nil {
		t.Fatalf("ReadRecords missing: %v", err)
	}
	if missing != nil {
		t.Error("missing archive should return nil, nil")
	}
}

func TestCatalogRecordAndQuery(t *testing.T) {
	cat, err := OpenCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer cat.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	for i, stage := range []string{"fetch", "consolidate"} {
		err := cat.RecordRun(ctx, RunRecord{
			Stage:      stage,
			CIK:        "0000013156",
			Ticker:     "GLXZ",
			Records:    100 + i,
			Sources:    "local-cache;yahoo-finance",
			StartedAt:  now,
			FinishedAt: now.Add(time.Second),
		})
		if err != nil {
			t.Fatalf("RecordRun(%s): %v", stage, err)
		}
	}

	runs, err := cat.LatestRuns(ctx, 10)
	if err != nil {
		t.Fatalf("LatestRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	// Newest first.
	if runs[0].Stage != "consolidate" || runs[1].Stage != "fetch" {
		t.Errorf("run order = %s, %s", runs[0].Stage, runs[1].Stage)
	}
	if runs[0].Records != 101 {
		t.Errorf("records = %d, want 101", runs[0].Records)
	}
}
