package pnl

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange time zones on hosts without a zoneinfo database

	"github.com/etnz/pnl/date"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration of the PnL engine and its command line.
type Config struct {
	Currency string         `toml:"currency"` // currency of prices, presentation only
	Exchange ExchangeConfig `toml:"exchange"`
	Engine   EngineConfig   `toml:"engine"`
	Splits   []SplitConfig  `toml:"splits"`
	Ingest   IngestConfig   `toml:"ingest"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ExchangeConfig describes the exchange trading days are read from.
type ExchangeConfig struct {
	Timezone string   `toml:"timezone"`
	Holidays []string `toml:"holidays"` // YYYY-MM-DD
}

type EngineConfig struct {
	SnapshotLag      int `toml:"snapshot_lag"`      // trading days
	FetchConcurrency int `toml:"fetch_concurrency"` // concurrent close batches
}

// SplitConfig is one entry of the split table.
type SplitConfig struct {
	Symbol      string `toml:"symbol"`
	Date        string `toml:"date"`
	Numerator   int64  `toml:"numerator"`
	Denominator int64  `toml:"denominator"`
}

// IngestConfig overrides the jsonpath aliases of canonical fields.
type IngestConfig struct {
	Aliases map[string][]string `toml:"aliases"`
}

// StorageConfig selects where transactions, closes and snapshots live.
// Driver is one of "memory", "sqlite" or "postgres".
type StorageConfig struct {
	Driver      string `toml:"driver"`
	PostgresDSN string `toml:"postgres_dsn"`
	SQLitePath  string `toml:"sqlite_path"`
	RedisAddr   string `toml:"redis_addr"` // optional snapshot cache
	RedisTTL    string `toml:"redis_ttl"`
}

// GetRedisTTL parses and returns the snapshot cache expiry.
func (c *StorageConfig) GetRedisTTL() time.Duration {
	d, err := time.ParseDuration(c.RedisTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Currency: "USD",
		Exchange: ExchangeConfig{Timezone: "America/New_York"},
		Engine: EngineConfig{
			SnapshotLag:      DefaultSnapshotLag,
			FetchConcurrency: 8,
		},
		Storage: StorageConfig{
			Driver:     "memory",
			SQLitePath: "pnl.db",
			RedisTTL:   "24h",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones, missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PNL_CURRENCY"); v != "" {
		config.Currency = strings.ToUpper(v)
	}
	if v := os.Getenv("PNL_TIMEZONE"); v != "" {
		config.Exchange.Timezone = v
	}
	if v := os.Getenv("PNL_SNAPSHOT_LAG"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Engine.SnapshotLag = n
		}
	}
	if v := os.Getenv("PNL_FETCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Engine.FetchConcurrency = n
		}
	}
	if v := os.Getenv("PNL_STORAGE_DRIVER"); v != "" {
		config.Storage.Driver = v
	}
	if v := os.Getenv("PNL_POSTGRES_DSN"); v != "" {
		config.Storage.PostgresDSN = v
	}
	if v := os.Getenv("PNL_SQLITE_PATH"); v != "" {
		config.Storage.SQLitePath = v
	}
	if v := os.Getenv("PNL_REDIS_ADDR"); v != "" {
		config.Storage.RedisAddr = v
	}
	if v := os.Getenv("PNL_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// Location returns the exchange time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Exchange.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Exchange.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid exchange timezone %q: %w", c.Exchange.Timezone, err)
	}
	return loc, nil
}

// TradingCalendar returns the sessions of the exchange.
func (c *Config) TradingCalendar() (date.Calendar, error) {
	holidays := make([]date.Date, 0, len(c.Exchange.Holidays))
	for _, h := range c.Exchange.Holidays {
		d, err := date.Parse(h)
		if err != nil {
			return date.Calendar{}, fmt.Errorf("invalid holiday %q: %w", h, err)
		}
		holidays = append(holidays, d)
	}
	return date.NewCalendar(holidays...), nil
}

// SplitTable returns the configured splits, trading days read in loc.
func (c *Config) SplitTable(loc *time.Location) (*Splits, error) {
	s := NewSplits(loc)
	for _, sc := range c.Splits {
		d, err := date.Parse(sc.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid split date %q for %s: %w", sc.Date, sc.Symbol, err)
		}
		s.Add(Split{Symbol: sc.Symbol, Date: d, Numerator: sc.Numerator, Denominator: sc.Denominator})
	}
	return s, nil
}

// EngineOptions returns the engine options the configuration describes.
func (c *Config) EngineOptions(logger *Logger) ([]Option, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	sessions, err := c.TradingCalendar()
	if err != nil {
		return nil, err
	}
	splits, err := c.SplitTable(loc)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithLocation(loc),
		WithSessions(sessions),
		WithSplits(splits),
		WithSnapshotLag(c.Engine.SnapshotLag),
		WithFetchConcurrency(c.Engine.FetchConcurrency),
		WithLogger(logger),
	}, nil
}
