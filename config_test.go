package pnl

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "USD", config.Currency)
	assert.Equal(t, DefaultSnapshotLag, config.Engine.SnapshotLag)
	assert.Equal(t, "memory", config.Storage.Driver)
	assert.Equal(t, 24*time.Hour, config.Storage.GetRedisTTL())
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pnl.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
currency = "EUR"

[exchange]
timezone = "Europe/Paris"
holidays = ["2024-05-01"]

[engine]
snapshot_lag = 3

[[splits]]
symbol = "NVDA"
date = "2024-06-10"
numerator = 10
denominator = 1

[ingest.aliases]
symbol = ["$.contract.localSymbol"]

[storage]
redis_ttl = "1h"
`), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "EUR", config.Currency)
	assert.Equal(t, 3, config.Engine.SnapshotLag)
	assert.Equal(t, 8, config.Engine.FetchConcurrency, "defaults survive a partial file")
	assert.Equal(t, time.Hour, config.Storage.GetRedisTTL())
	assert.Equal(t, []string{"$.contract.localSymbol"}, config.Ingest.Aliases[FieldSymbol])

	loc, err := config.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	sessions, err := config.TradingCalendar()
	require.NoError(t, err)
	assert.False(t, sessions.IsTradingDay(on(2024, 5, 1)))
	assert.True(t, sessions.IsTradingDay(on(2024, 5, 2)))

	splits, err := config.SplitTable(loc)
	require.NoError(t, err)
	f, err := splits.Factor("NVDA", ms(2024, 6, 7, 12))
	require.NoError(t, err)
	assertQuantity(t, "10", f)

	opts, err := config.EngineOptions(NewSilentLogger())
	require.NoError(t, err)
	assert.Len(t, opts, 6)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("PNL_CURRENCY", "gbp")
	t.Setenv("PNL_SNAPSHOT_LAG", "10")
	t.Setenv("PNL_FETCH_CONCURRENCY", "not a number")
	t.Setenv("PNL_STORAGE_DRIVER", "sqlite")
	t.Setenv("PNL_LOG_LEVEL", "debug")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "GBP", config.Currency)
	assert.Equal(t, 10, config.Engine.SnapshotLag)
	assert.Equal(t, 8, config.Engine.FetchConcurrency)
	assert.Equal(t, "sqlite", config.Storage.Driver)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pnl.toml")
	require.NoError(t, os.WriteFile(path, []byte("currency = "), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	config := NewDefaultConfig()
	config.Exchange.Timezone = "Nowhere/Nothing"
	_, err = config.EngineOptions(nil)
	assert.Error(t, err)

	config = NewDefaultConfig()
	config.Splits = []SplitConfig{{Symbol: "X", Date: "yesterday", Numerator: 2, Denominator: 1}}
	_, err = config.EngineOptions(nil)
	assert.Error(t, err)

	config = NewDefaultConfig()
	config.Exchange.Holidays = []string{"2024-13-01"}
	_, err = config.TradingCalendar()
	assert.Error(t, err)
}
