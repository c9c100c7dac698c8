package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", env(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.DB.Driver)
	assert.Equal(t, 5, cfg.Limits.PortfolioSharesPerDay)
	assert.Equal(t, "@every 1m", cfg.Sweep.Schedule)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "9090"

[db]
driver = "sqlite"
sqlite_path = "/tmp/x.db"
migrate_on_start = false

[limits]
request_burst = 2

[log]
format = "json"
colour = "blue"
`), 0o600))

	cfg, err := Load(path, env(map[string]string{
		"PORT":                    "7070",
		"REQUEST_RATE_PER_MINUTE": "3",
	}))
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.DB.SQLitePath)
	assert.False(t, cfg.DB.MigrateOnStart)
	assert.Equal(t, 2, cfg.Limits.RequestBurst)
	assert.Equal(t, 3, cfg.Limits.RequestsPerMinute)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"log.colour"}, cfg.UnknownKeys)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"), env(nil))
	assert.Error(t, err)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":   {"DB_DRIVER": "mongo"},
		"postgres w/o dsn": {"DB_DRIVER": "postgres"},
		"zero portfolio":   {"PORTFOLIO_SHARES_PER_DAY": "0"},
		"negative burst":   {"REQUEST_BURST": "-1"},
		"not a number":     {"REQUEST_RATE_PER_MINUTE": "lots"},
		"bad schedule":     {"SWEEP_SCHEDULE": "sometimes"},
		"bad bool":         {"MIGRATE_ON_START": "maybe"},
		"bad port":         {"PORT": "http"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load("", env(vars))
			assert.Error(t, err)
		})
	}
}
