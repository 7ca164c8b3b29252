package entity

import "testing"

func galaxyEntity() Entity {
	return Entity{
		CIK:           "13156",
		PrimaryTicker: "GLXZ",
		Category:      CategoryCorporate,
		Tickers: []TickerPeriod{
			{Symbol: "SCRE", Start: "2006-01-01", End: "2009-03-31", Exchange: ExchangeOTCBB},
			{Symbol: "GLXZ", Start: "2009-04-01", Exchange: ExchangeOTC},
		},
		Names: []NamePeriod{
			{Name: "Secured Diversified Investment Ltd", Start: "2006-01-01", End: "2009-03-31"},
			{Name: "Galaxy Gaming Inc", Start: "2009-04-01"},
		},
		HasMarketData: true,
	}
}

func TestPaddedCIK(t *testing.T) {
	e := galaxyEntity()
	if got := e.PaddedCIK(); got != "0000013156" {
		t.Errorf("PaddedCIK() = %q, want %q", got, "0000013156")
	}

	n, err := e.NumericCIK()
	if err != nil {
		t.Fatalf("NumericCIK() error: %v", err)
	}
	if n != 13156 {
		t.Errorf("NumericCIK() = %d, want 13156", n)
	}
}

func TestTickerOn(t *testing.T) {
	e := galaxyEntity()

	cases := []struct {
		date string
		want string
	}{
		{"2007-06-15", "SCRE"},
		{"2009-03-31", "SCRE"}, // inclusive end
		{"2009-04-01", "GLXZ"},
		{"2020-01-01", "GLXZ"}, // open-ended period
	}
	for _, tc := range cases {
		tp := e.TickerOn(tc.date)
		if tp == nil {
			t.Errorf("TickerOn(%s) = nil, want %s", tc.date, tc.want)
			continue
		}
		if tp.Symbol != tc.want {
			t.Errorf("TickerOn(%s) = %s, want %s", tc.date, tp.Symbol, tc.want)
		}
	}

	if tp := e.TickerOn("2001-01-01"); tp != nil {
		t.Errorf("TickerOn before history = %v, want nil", tp)
	}
}

func TestTickerOnFallsBackToMostRecent(t *testing.T) {
	e := Entity{
		CIK: "878146",
		Tickers: []TickerPeriod{
			{Symbol: "AAA", Start: "2000-01-01", End: "2001-12-31"},
			{Symbol: "BBB", Start: "2003-01-01", End: "2004-12-31"},
		},
	}
	// 2002 falls in the gap between periods; resolve to the most recent
	// period started on or before it.
	tp := e.TickerOn("2002-06-01")
	if tp == nil || tp.Symbol != "AAA" {
		t.Fatalf("TickerOn(gap) = %v, want AAA", tp)
	}
	tp = e.TickerOn("2010-01-01")
	if tp == nil || tp.Symbol != "BBB" {
		t.Fatalf("TickerOn(after all) = %v, want BBB", tp)
	}
}

func TestNameOn(t *testing.T) {
	e := galaxyEntity()
	if got := e.NameOn("2008-01-01"); got != "Secured Diversified Investment Ltd" {
		t.Errorf("NameOn(2008-01-01) = %q", got)
	}
	if got := e.NameOn("2015-01-01"); got != "Galaxy Gaming Inc" {
		t.Errorf("NameOn(2015-01-01) = %q", got)
	}
	if got := e.CurrentName(); got != "Galaxy Gaming Inc" {
		t.Errorf("CurrentName() = %q", got)
	}
}

func TestValidateRejectsOverlap(t *testing.T) {
	e := galaxyEntity()
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate() on clean history: %v", err)
	}

	e.Tickers = append(e.Tickers, TickerPeriod{Symbol: "DUPE", Start: "2010-01-01"})
	if err := e.Validate(); err == nil {
		t.Fatal("Validate() should reject two open-ended overlapping periods")
	}
}

func TestActiveYears(t *testing.T) {
	tp := TickerPeriod{Symbol: "GLXZ", Start: "2009-04-01", End: "2012-02-15"}
	years := tp.ActiveYears()
	want := []int{2009, 2010, 2011, 2012}
	if len(years) != len(want) {
		t.Fatalf("ActiveYears() = %v, want %v", years, want)
	}
	for i := range want {
		if years[i] != want[i] {
			t.Fatalf("ActiveYears() = %v, want %v", years, want)
		}
	}
}

func TestPrimary(t *testing.T) {
	e := galaxyEntity()
	p := e.Primary()
	if p == nil || p.Symbol != "GLXZ" {
		t.Fatalf("Primary() = %v, want GLXZ", p)
	}
}
