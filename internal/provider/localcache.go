package provider

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"pennypipe/internal/domain"
)

// tickerFolders maps symbols whose archive folder does not match the ticker.
// The archive predates some corporate renames, so a few tickers live under
// their former names.
var tickerFolders = map[string]string{
	"GLXZ": "galaxy-gaming",
	"SCRE": "secured-diversified",
	"VPER": "viper-networks",
}

// LocalCache reads the local penny-stock CSV archive. The archive layout is
// <base>/<folder>/<year>/*.csv where folder defaults to the upper-cased
// ticker. Each row is a quoted 7-field line:
//
//	"datetime","price","volume","bid","bidSize","ask","askSize"
//
// Rows that do not match the field-count pattern are skipped, never aborting
// the file; the skipped count is reported to the caller for observability.
type LocalCache struct {
	baseDir string
	log     *slog.Logger
}

// NewLocalCache creates a LocalCache rooted at baseDir.
func NewLocalCache(baseDir string) *LocalCache {
	return &LocalCache{
		baseDir: baseDir,
		log:     slog.Default().With("provider", domain.SourceLocalCache),
	}
}

// folderFor resolves the archive folder for a ticker.
func (c *LocalCache) folderFor(ticker string) string {
	if folder, ok := tickerFolders[strings.ToUpper(ticker)]; ok {
		return folder
	}
	return strings.ToUpper(ticker)
}

// FetchYear reads every CSV file for the ticker and year. It returns the
// parsed records and the total number of skipped rows across all files.
// A ticker/year with no files at all is an empty result, not an error.
func (c *LocalCache) FetchYear(ticker string, year int) ([]domain.RawTradeRecord, int, error) {
	pattern := filepath.Join(c.baseDir, c.folderFor(ticker), strconv.Itoa(year), "*.csv")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, 0, fmt.Errorf("globbing %s: %w", pattern, err)
	}
	sort.Strings(files)

	var records []domain.RawTradeRecord
	skippedTotal := 0
	for _, file := range files {
		recs, skipped, err := c.parseFile(file)
		if err != nil {
			return nil, skippedTotal, err
		}
		if skipped > 0 {
			c.log.Debug("skipped malformed rows", "file", file, "skipped", skipped)
		}
		records = append(records, recs...)
		skippedTotal += skipped
	}
	return records, skippedTotal, nil
}

// parseFile parses one archive CSV file, returning records and the count of
// rows dropped for not matching the 7-field pattern.
func (c *LocalCache) parseFile(path string) ([]domain.RawTradeRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // length checked per row; bad rows skip, not abort

	var records []domain.RawTradeRecord
	skipped := 0
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}
		rec, ok := parseArchiveRow(fields)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// parseArchiveRow converts one 7-field row into a record. Bid/ask columns may
// be empty; datetime, price, and volume are mandatory.
func parseArchiveRow(fields []string) (domain.RawTradeRecord, bool) {
	if len(fields) != 7 {
		return domain.RawTradeRecord{}, false
	}

	rec := domain.RawTradeRecord{
		Datetime: strings.TrimSpace(fields[0]),
		Source:   domain.SourceLocalCache,
	}
	if rec.Datetime == "" {
		return domain.RawTradeRecord{}, false
	}
	if _, err := rec.Time(); err != nil {
		return domain.RawTradeRecord{}, false
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return domain.RawTradeRecord{}, false
	}
	rec.Price = price

	volume, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return domain.RawTradeRecord{}, false
	}
	rec.Volume = volume

	if v, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err == nil {
		rec.Bid = &v
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64); err == nil {
		rec.BidSize = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64); err == nil {
		rec.Ask = &v
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(fields[6]), 10, 64); err == nil {
		rec.AskSize = &v
	}

	return rec, true
}
