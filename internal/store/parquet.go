package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"

	"pennypipe/internal/domain"
)

// ParquetArchive keeps a columnar copy of each entity's consolidated record
// list for bulk analytical reads outside the pipeline. One file per entity:
//
//	<dir>/<CIK>-<TICKER>.parquet
type ParquetArchive struct {
	Dir string
}

// NewParquetArchive creates a ParquetArchive rooted at dir.
func NewParquetArchive(dir string) *ParquetArchive {
	return &ParquetArchive{Dir: dir}
}

// archiveRow is the on-disk Parquet schema. Absent bid/ask are stored as
// zero with the has flags cleared, so the optionality round-trips.
type archiveRow struct {
	CIK       string  `parquet:"cik"`
	Ticker    string  `parquet:"ticker"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Price     float64 `parquet:"price"`
	Volume    int64   `parquet:"volume"`
	Bid       float64 `parquet:"bid"`
	BidSize   int64   `parquet:"bid_size"`
	Ask       float64 `parquet:"ask"`
	AskSize   int64   `parquet:"ask_size"`
	HasQuote  bool    `parquet:"has_quote"`
	Source    string  `parquet:"source"`
}

func (a *ParquetArchive) path(cik, ticker string) string {
	return filepath.Join(a.Dir, entityKey(cik, ticker)+".parquet")
}

// WriteRecords replaces the entity's archive file with the given records.
// Records whose datetime does not parse are skipped; consolidation has
// already filtered those.
func (a *ParquetArchive) WriteRecords(cik, ticker string, records []domain.RawTradeRecord) error {
	rows := make([]archiveRow, 0, len(records))
	for _, r := range records {
		t, err := r.Time()
		if err != nil {
			continue
		}
		row := archiveRow{
			CIK:       cik,
			Ticker:    ticker,
			Timestamp: t.UnixMilli(),
			Price:     r.Price,
			Volume:    r.Volume,
			Source:    string(r.Source),
		}
		if r.Bid != nil || r.Ask != nil {
			row.HasQuote = true
			if r.Bid != nil {
				row.Bid = *r.Bid
			}
			if r.BidSize != nil {
				row.BidSize = *r.BidSize
			}
			if r.Ask != nil {
				row.Ask = *r.Ask
			}
			if r.AskSize != nil {
				row.AskSize = *r.AskSize
			}
		}
		rows = append(rows, row)
	}

	path := a.path(cik, ticker)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("writing archive for %s-%s: %w", cik, ticker, err)
	}
	return nil
}

// ReadRecords loads the entity's archive. A missing file returns (nil, nil).
func (a *ParquetArchive) ReadRecords(cik, ticker string) ([]domain.RawTradeRecord, error) {
	path := a.path(cik, ticker)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	rows, err := parquet.ReadFile[archiveRow](path)
	if err != nil {
		return nil, fmt.Errorf("reading archive %s: %w", path, err)
	}

	records := make([]domain.RawTradeRecord, 0, len(rows))
	for _, row := range rows {
		t := time.UnixMilli(row.Timestamp).UTC()
		rec := domain.RawTradeRecord{
			Datetime: t.Format("2006-01-02 15:04:05"),
			Price:    row.Price,
			Volume:   row.Volume,
			Source:   domain.Source(row.Source),
		}
		if row.HasQuote {
			bid, bidSize, ask, askSize := row.Bid, row.BidSize, row.Ask, row.AskSize
			rec.Bid = &bid
			rec.BidSize = &bidSize
			rec.Ask = &ask
			rec.AskSize = &askSize
		}
		records = append(records, rec)
	}
	return records, nil
}
