// Package config loads the pipeline configuration and the entity reference
// document from YAML, applying environment-variable overrides for API keys
// and paths.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pennypipe/internal/entity"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the pennypipe pipeline.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Providers Providers `yaml:"providers"`
	Logging   Logging   `yaml:"logging"`
	Entities  string    `yaml:"entities"` // path to the entity reference document
}

// Storage holds paths for the cache tree and published artifacts.
type Storage struct {
	CacheDir    string `yaml:"cache_dir"`
	PublicDir   string `yaml:"public_dir"`
	LocalCSVDir string `yaml:"local_csv_dir"` // penny-stock CSV archive root
	CatalogPath string `yaml:"catalog_path"`  // SQLite run catalog
}

// Providers holds per-provider credentials and rate-limit parameters. Each
// provider client receives only its own section.
type Providers struct {
	AlphaVantage AlphaVantage `yaml:"alpha_vantage"`
	SECEdgar     SECEdgar     `yaml:"sec_edgar"`
	Yahoo        Yahoo        `yaml:"yahoo"`
	TwelveData   KeyedAPI     `yaml:"twelve_data"`
	Finnhub      KeyedAPI     `yaml:"finnhub"`
	Massive      KeyedAPI     `yaml:"massive"`
	Alpaca       Alpaca       `yaml:"alpaca"`
}

// AlphaVantage configures the free-tier minute window and daily quota.
type AlphaVantage struct {
	APIKey            string `yaml:"api_key"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	DailyQuota        int    `yaml:"daily_quota"`
}

// SECEdgar configures the EDGAR submissions client. The SEC requires a
// descriptive User-Agent with contact information.
type SECEdgar struct {
	UserAgent string `yaml:"user_agent"`
	DelayMS   int    `yaml:"delay_ms"`
}

// Yahoo configures the chart-API client.
type Yahoo struct {
	DelayMS int `yaml:"delay_ms"`
}

// KeyedAPI is the shared shape for token-bucket providers (Twelve Data,
// Finnhub, Massive).
type KeyedAPI struct {
	APIKey            string `yaml:"api_key"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// Alpaca holds credentials for the optional Alpaca trades provider. The
// provider is enabled only when both fields are set.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Providers.AlphaVantage.RequestsPerMinute == 0 {
		cfg.Providers.AlphaVantage.RequestsPerMinute = 5
	}
	if cfg.Providers.AlphaVantage.DailyQuota == 0 {
		cfg.Providers.AlphaVantage.DailyQuota = 25
	}
	if cfg.Providers.SECEdgar.DelayMS == 0 {
		cfg.Providers.SECEdgar.DelayMS = 110 // documented 10 req/sec ceiling
	}
	if cfg.Providers.Yahoo.DelayMS == 0 {
		cfg.Providers.Yahoo.DelayMS = 250
	}
	if cfg.Providers.TwelveData.RequestsPerMinute == 0 {
		cfg.Providers.TwelveData.RequestsPerMinute = 8
	}
	if cfg.Providers.Finnhub.RequestsPerMinute == 0 {
		cfg.Providers.Finnhub.RequestsPerMinute = 60
	}
	if cfg.Providers.Massive.RequestsPerMinute == 0 {
		cfg.Providers.Massive.RequestsPerMinute = 5
	}
	if cfg.Entities == "" {
		cfg.Entities = "config/entities.yaml"
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PENNY_STOCKS_DATA_PATH"); v != "" {
		cfg.Storage.LocalCSVDir = v
	}
	if v := os.Getenv("PENNYPIPE_CACHE_DIR"); v != "" {
		cfg.Storage.CacheDir = v
	}

	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Providers.AlphaVantage.APIKey = v
	}
	if v := os.Getenv("SEC_EDGAR_USER_AGENT"); v != "" {
		cfg.Providers.SECEdgar.UserAgent = v
	}
	if v := os.Getenv("TWELVE_DATA_API_KEY"); v != "" {
		cfg.Providers.TwelveData.APIKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Providers.Finnhub.APIKey = v
	}
	if v := os.Getenv("MASSIVE_API_KEY"); v != "" {
		cfg.Providers.Massive.APIKey = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Providers.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Providers.Alpaca.APISecret = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ---------------------------------------------------------------------------
// Entity reference document
// ---------------------------------------------------------------------------

type entityDocument struct {
	Entities []entity.Entity `yaml:"entities"`
}

// LoadEntities reads and validates the entity reference document. Every
// entity's ticker and name histories must resolve unambiguously by date.
func LoadEntities(path string) ([]entity.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc entityDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing entity document %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(doc.Entities))
	for _, e := range doc.Entities {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		cik := e.PaddedCIK()
		if _, dup := seen[cik]; dup {
			return nil, fmt.Errorf("duplicate entity CIK %s", cik)
		}
		seen[cik] = struct{}{}
	}
	return doc.Entities, nil
}
