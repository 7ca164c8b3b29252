package domain

import (
	"testing"
	"time"
)

func TestRawTradeRecordTime(t *testing.T) {
	cases := []struct {
		datetime string
		want     time.Time
		wantErr  bool
	}{
		{"2010-03-15 10:30:00", time.Date(2010, 3, 15, 10, 30, 0, 0, time.UTC), false},
		{"2010-03-15T10:30:00", time.Date(2010, 3, 15, 10, 30, 0, 0, time.UTC), false},
		{"2010-03-15", time.Date(2010, 3, 15, 0, 0, 0, 0, time.UTC), false},
		{"not-a-date", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tc := range cases {
		r := RawTradeRecord{Datetime: tc.datetime}
		got, err := r.Time()
		if tc.wantErr {
			if err == nil {
				t.Errorf("Time(%q) expected error, got %v", tc.datetime, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Time(%q) unexpected error: %v", tc.datetime, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("Time(%q) = %v, want %v", tc.datetime, got, tc.want)
		}
	}
}

func TestRawTradeRecordDate(t *testing.T) {
	r := RawTradeRecord{Datetime: "2020-01-02 16:00:00"}
	if got := r.Date(); got != "2020-01-02" {
		t.Errorf("Date() = %q, want %q", got, "2020-01-02")
	}

	bad := RawTradeRecord{Datetime: "garbage"}
	if got := bad.Date(); got != "" {
		t.Errorf("Date() for unparseable datetime = %q, want empty", got)
	}
}

func TestSourceConstants(t *testing.T) {
	if SourceLocalCache != "local-cache" {
		t.Errorf("SourceLocalCache = %q, want %q", SourceLocalCache, "local-cache")
	}
	if SourceAlphaVantage != "alpha-vantage" {
		t.Errorf("SourceAlphaVantage = %q, want %q", SourceAlphaVantage, "alpha-vantage")
	}
}
