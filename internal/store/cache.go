// Package store persists pipeline data between stages: the raw per-provider
// JSON cache tree, consolidated and normalized per-entity files, the filings
// cache, a Parquet archive of consolidated records, and a SQLite run catalog.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pennypipe/internal/domain"
)

// Envelope wraps one provider fetch result in the raw cache tree. The field
// layout is part of the on-disk compatibility contract.
type Envelope struct {
	CIK       string                  `json:"cik"`
	Ticker    string                  `json:"ticker"`
	Year      int                     `json:"year,omitempty"`
	Source    domain.Source           `json:"source"`
	FilePath  string                  `json:"filePath"`
	Records   []domain.RawTradeRecord `json:"records"`
	FetchedAt time.Time               `json:"fetchedAt"`
}

// FilingsFile is the filings cache entry for one entity.
type FilingsFile struct {
	CIK       string              `json:"cik"`
	Company   string              `json:"company"`
	Filings   []domain.SECFiling  `json:"filings"`
	Info      *domain.CompanyInfo `json:"info,omitempty"`
	FetchedAt time.Time           `json:"fetchedAt"`
}

// CacheStore manages the cache directory tree:
//
//	<dir>/raw/<provider>/<CIK>-<TICKER>[-<suffix>].json
//	<dir>/consolidated/<CIK>-<TICKER>.json, summary.json
//	<dir>/normalized/<CIK>-<TICKER>.json, summary.json
//	<dir>/filings/<CIK>.json
type CacheStore struct {
	Dir string
}

// NewCacheStore creates a CacheStore rooted at dir.
func NewCacheStore(dir string) *CacheStore {
	return &CacheStore{Dir: dir}
}

// entityKey builds the <CIK>-<TICKER> file stem shared by every tree.
func entityKey(cik, ticker string) string {
	return fmt.Sprintf("%s-%s", cik, strings.ToUpper(ticker))
}

// WriteRaw persists one provider fetch result. Suffix distinguishes multiple
// pulls for the same entity/ticker (e.g. a month for intraday data); it may
// be empty. Re-running overwrites the same-named file.
func (s *CacheStore) WriteRaw(env Envelope, suffix string) (string, error) {
	name := entityKey(env.CIK, env.Ticker)
	if suffix != "" {
		name += "-" + suffix
	}
	path := filepath.Join(s.Dir, "raw", string(env.Source), name+".json")
	env.FilePath = path
	if env.FetchedAt.IsZero() {
		env.FetchedAt = time.Now().UTC()
	}
	return path, writeJSON(path, env)
}

// ReadRawForEntity returns every raw envelope cached for the entity/ticker
// across all provider subdirectories, in deterministic path order.
func (s *CacheStore) ReadRawForEntity(cik, ticker string) ([]Envelope, error) {
	rawDir := filepath.Join(s.Dir, "raw")
	providers, err := os.ReadDir(rawDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	prefix := entityKey(cik, ticker)
	var envelopes []Envelope
	for _, p := range providers {
		if !p.IsDir() {
			continue
		}
		pattern := filepath.Join(rawDir, p.Name(), prefix+"*.json")
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, file := range files {
			var env Envelope
			if err := readJSON(file, &env); err != nil {
				return nil, fmt.Errorf("reading raw cache %s: %w", file, err)
			}
			envelopes = append(envelopes, env)
		}
	}
	return envelopes, nil
}

// WriteConsolidated persists one entity's consolidated data.
func (s *CacheStore) WriteConsolidated(data *domain.ConsolidatedEntityData) error {
	path := filepath.Join(s.Dir, "consolidated", entityKey(data.CIK, data.Ticker)+".json")
	return writeJSON(path, data)
}

// ReadConsolidated loads one entity's consolidated data. A missing file
// returns (nil, nil).
func (s *CacheStore) ReadConsolidated(cik, ticker string) (*domain.ConsolidatedEntityData, error) {
	path := filepath.Join(s.Dir, "consolidated", entityKey(cik, ticker)+".json")
	var data domain.ConsolidatedEntityData
	if err := readJSON(path, &data); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &data, nil
}

// WriteNormalized persists one entity's normalized data.
func (s *CacheStore) WriteNormalized(data *domain.NormalizedEntityData) error {
	path := filepath.Join(s.Dir, "normalized", entityKey(data.CIK, data.Ticker)+".json")
	return writeJSON(path, data)
}

// ReadNormalized loads one entity's normalized data. A missing file returns
// (nil, nil).
func (s *CacheStore) ReadNormalized(cik, ticker string) (*domain.NormalizedEntityData, error) {
	path := filepath.Join(s.Dir, "normalized", entityKey(cik, ticker)+".json")
	var data domain.NormalizedEntityData
	if err := readJSON(path, &data); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &data, nil
}

// WriteFilings persists the filings cache for one entity.
func (s *CacheStore) WriteFilings(f *FilingsFile) error {
	path := filepath.Join(s.Dir, "filings", f.CIK+".json")
	return writeJSON(path, f)
}

// ReadFilings loads the filings cache for one entity. A missing file returns
// (nil, nil).
func (s *CacheStore) ReadFilings(cik string) (*FilingsFile, error) {
	path := filepath.Join(s.Dir, "filings", cik+".json")
	var f FilingsFile
	if err := readJSON(path, &f); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// WriteSummary persists a stage's cross-entity summary under its directory
// ("consolidated" or "normalized").
func (s *CacheStore) WriteSummary(stageDir string, v any) error {
	return writeJSON(filepath.Join(s.Dir, stageDir, "summary.json"), v)
}

// ---------------------------------------------------------------------------
// JSON file helpers
// ---------------------------------------------------------------------------

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
