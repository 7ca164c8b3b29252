package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfig = `
storage:
  cache_dir: "/tmp/pennypipe/cache"
  public_dir: "/tmp/pennypipe/public"
  local_csv_dir: "/tmp/penny-stocks"
  catalog_path: "/tmp/pennypipe/catalog.db"
providers:
  alpha_vantage:
    api_key: "av-test-key"
    requests_per_minute: 5
    daily_quota: 25
  sec_edgar:
    user_agent: "pennypipe test test@example.com"
  twelve_data:
    api_key: "td-test-key"
logging:
  level: "info"
  format: "text"
entities: "config/entities.yaml"
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pennypipe.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	os.Unsetenv("ALPHA_VANTAGE_API_KEY")
	os.Unsetenv("PENNY_STOCKS_DATA_PATH")

	cfg, err := Load(writeTempConfig(t, testConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.CacheDir != "/tmp/pennypipe/cache" {
		t.Errorf("CacheDir = %q", cfg.Storage.CacheDir)
	}
	if cfg.Providers.AlphaVantage.APIKey != "av-test-key" {
		t.Errorf("AlphaVantage.APIKey = %q", cfg.Providers.AlphaVantage.APIKey)
	}
	if cfg.Providers.SECEdgar.UserAgent != "pennypipe test test@example.com" {
		t.Errorf("SECEdgar.UserAgent = %q", cfg.Providers.SECEdgar.UserAgent)
	}

	// Defaults fill in unset limiter parameters.
	if cfg.Providers.SECEdgar.DelayMS != 110 {
		t.Errorf("SECEdgar.DelayMS default = %d, want 110", cfg.Providers.SECEdgar.DelayMS)
	}
	if cfg.Providers.Finnhub.RequestsPerMinute != 60 {
		t.Errorf("Finnhub.RequestsPerMinute default = %d, want 60", cfg.Providers.Finnhub.RequestsPerMinute)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_API_KEY", "override-key")
	t.Setenv("PENNY_STOCKS_DATA_PATH", "/mnt/archive")

	cfg, err := Load(writeTempConfig(t, testConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Providers.AlphaVantage.APIKey != "override-key" {
		t.Errorf("env override not applied: APIKey = %q", cfg.Providers.AlphaVantage.APIKey)
	}
	if cfg.Storage.LocalCSVDir != "/mnt/archive" {
		t.Errorf("env override not applied: LocalCSVDir = %q", cfg.Storage.LocalCSVDir)
	}
}

const testEntities = `
entities:
  - cik: "13156"
    primary_ticker: "GLXZ"
    category: corporate
    has_market_data: true
    tickers:
      - symbol: "GLXZ"
        start: "2009-04-01"
        exchange: "OTC"
    names:
      - name: "Galaxy Gaming Inc"
        start: "2009-04-01"
  - cik: "878146"
    primary_ticker: "VPER"
    category: corporate
    has_market_data: false
    tickers:
      - symbol: "VPER"
        start: "2001-01-01"
        end: "2004-01-01"
        exchange: "PINK"
    names:
      - name: "Viper Networks Inc"
        start: "2001-01-01"
`

func TestLoadEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	if err := os.WriteFile(path, []byte(testEntities), 0o644); err != nil {
		t.Fatalf("writing entities file: %v", err)
	}

	entities, err := LoadEntities(path)
	if err != nil {
		t.Fatalf("LoadEntities: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("got %d entities, want 2", len(entities))
	}
	if entities[0].PaddedCIK() != "0000013156" {
		t.Errorf("PaddedCIK = %q", entities[0].PaddedCIK())
	}
	if entities[1].HasMarketData {
		t.Error("second entity should have has_market_data: false")
	}
}

func TestLoadEntitiesRejectsOverlap(t *testing.T) {
	bad := `
entities:
  - cik: "13156"
    primary_ticker: "GLXZ"
    tickers:
      - symbol: "AAA"
        start: "2009-01-01"
      - symbol: "BBB"
        start: "2010-01-01"
`
	path := filepath.Join(t.TempDir(), "entities.yaml")
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("writing entities file: %v", err)
	}
	if _, err := LoadEntities(path); err == nil {
		t.Fatal("LoadEntities should reject overlapping ticker periods")
	}
}
