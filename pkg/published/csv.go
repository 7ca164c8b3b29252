package published

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pennypipe/internal/domain"
)

// CSVHeader is the fixed column order of the published CSV files.
var CSVHeader = []string{
	"date", "open", "high", "low", "close",
	"volume", "dollar_volume", "trade_count", "sources",
}

// WriteCSV renders a daily series in the published CSV format: prices with
// four decimals, dollar volume with two, sources semicolon-joined.
func WriteCSV(w io.Writer, daily []domain.DailyOHLCV) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, d := range daily {
		sources := make([]string, len(d.Sources))
		for i, s := range d.Sources {
			sources[i] = string(s)
		}
		row := []string{
			d.Date,
			strconv.FormatFloat(d.Open, 'f', 4, 64),
			strconv.FormatFloat(d.High, 'f', 4, 64),
			strconv.FormatFloat(d.Low, 'f', 4, 64),
			strconv.FormatFloat(d.Close, 'f', 4, 64),
			strconv.FormatInt(d.Volume, 10),
			strconv.FormatFloat(d.DollarVolume, 'f', 2, 64),
			strconv.Itoa(d.TradeCount),
			strings.Join(sources, ";"),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a published CSV back into a daily series.
func ReadCSV(r io.Reader) ([]domain.DailyOHLCV, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty csv")
	}
	if len(rows[0]) != len(CSVHeader) || rows[0][0] != "date" {
		return nil, fmt.Errorf("unexpected csv header: %v", rows[0])
	}

	daily := make([]domain.DailyOHLCV, 0, len(rows)-1)
	for _, row := range rows[1:] {
		d := domain.DailyOHLCV{Date: row[0]}
		if d.Open, err = strconv.ParseFloat(row[1], 64); err != nil {
			return nil, fmt.Errorf("row %s: %w", row[0], err)
		}
		if d.High, err = strconv.ParseFloat(row[2], 64); err != nil {
			return nil, fmt.Errorf("row %s: %w", row[0], err)
		}
		if d.Low, err = strconv.ParseFloat(row[3], 64); err != nil {
			return nil, fmt.Errorf("row %s: %w", row[0], err)
		}
		if d.Close, err = strconv.ParseFloat(row[4], 64); err != nil {
			return nil, fmt.Errorf("row %s: %w", row[0], err)
		}
		if d.Volume, err = strconv.ParseInt(row[5], 10, 64); err != nil {
			return nil, fmt.Errorf("row %s: %w", row[0], err)
		}
		if d.DollarVolume, err = strconv.ParseFloat(row[6], 64); err != nil {
			return nil, fmt.Errorf("row %s: %w", row[0], err)
		}
		if d.TradeCount, err = strconv.Atoi(row[7]); err != nil {
			return nil, fmt.Errorf("row %s: %w", row[0], err)
		}
		if row[8] != "" {
			for _, s := range strings.Split(row[8], ";") {
				d.Sources = append(d.Sources, domain.Source(s))
			}
		}
		daily = append(daily, d)
	}
	return daily, nil
}
