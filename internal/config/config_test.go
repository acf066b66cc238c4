package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSheetID = "1AbCdEfGhIjK"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ETA_CUBATAO_SHEET_ID", testSheetID)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "America/Sao_Paulo", cfg.Timezone.String())
	assert.Equal(t, "https://docs.google.com/spreadsheets/d", cfg.SheetsBaseURL)
	assert.Equal(t, "csv", cfg.SheetsFormat)
	assert.Equal(t, 15*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 0, cfg.FetchRetries)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 32, cfg.CacheMaxEntries)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "@every 1h", cfg.RefreshSchedule)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "hydro-readings", cfg.KafkaTopic)
	assert.Empty(t, cfg.ArchivePath)

	require.Len(t, cfg.Stations, 1)
	assert.Equal(t, Station{ID: "cubatao", Name: "ETA Cubatão", SheetID: testSheetID, GID: "0"}, cfg.Stations[0])
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("ETA_CUBATAO_SHEET_ID", testSheetID)
	t.Setenv("ETA_CUBATAO_GID", "123")
	t.Setenv("ETA_PIRAI_SHEET_ID", "pirai-sheet")
	t.Setenv("ETA_PIRAI_GID", "456")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("SOURCE_TIMEZONE", "UTC")
	t.Setenv("SHEETS_BASE_URL", "http://localhost:9999/d/")
	t.Setenv("SHEETS_FORMAT", "GVIZ")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("FETCH_RETRIES", "2")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("CACHE_MAX_ENTRIES", "4")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REFRESH_SCHEDULE", "off")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "readings")
	t.Setenv("ARCHIVE_PATH", "/tmp/readings.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Equal(t, "http://localhost:9999/d", cfg.SheetsBaseURL)
	assert.Equal(t, "gviz", cfg.SheetsFormat)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 2, cfg.FetchRetries)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 4, cfg.CacheMaxEntries)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Empty(t, cfg.RefreshSchedule)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "readings", cfg.KafkaTopic)
	assert.Equal(t, "/tmp/readings.db", cfg.ArchivePath)

	require.Len(t, cfg.Stations, 2)
	assert.Equal(t, "123", cfg.Stations[0].GID)
	pirai, ok := cfg.Station("pirai")
	require.True(t, ok)
	assert.Equal(t, "ETA Piraí", pirai.Name)
	assert.Equal(t, "456", pirai.GID)

	_, ok = cfg.Station("unknown")
	assert.False(t, ok)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"shutdown timeout", "SHUTDOWN_TIMEOUT", "abc"},
		{"zero shutdown timeout", "SHUTDOWN_TIMEOUT", "0s"},
		{"fetch timeout", "FETCH_TIMEOUT", "-1s"},
		{"cache ttl", "CACHE_TTL", "soon"},
		{"timezone", "SOURCE_TIMEZONE", "Mars/Olympus"},
		{"retries too high", "FETCH_RETRIES", "9"},
		{"retries not a number", "FETCH_RETRIES", "two"},
		{"cache entries", "CACHE_MAX_ENTRIES", "0"},
		{"redis db", "REDIS_DB", "x"},
		{"format", "SHEETS_FORMAT", "xlsx"},
		{"cache backend", "CACHE_BACKEND", "memcached"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ETA_CUBATAO_SHEET_ID", testSheetID)
			t.Setenv(tc.key, tc.val)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.key)
		})
	}
}

func TestLoad_RequiresStation(t *testing.T) {
	t.Setenv("ETA_CUBATAO_SHEET_ID", "")
	t.Setenv("ETA_PIRAI_SHEET_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETA_CUBATAO_SHEET_ID")
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("ETA_PIRAI_SHEET_ID=from-dotenv\nHTTP_ADDR=:7070\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("HTTP_ADDR", ":6060")
	// godotenv sets variables it loads; make sure they are cleared afterwards.
	t.Setenv("ETA_PIRAI_SHEET_ID", "")
	require.NoError(t, os.Unsetenv("ETA_PIRAI_SHEET_ID"))

	cfg, err := Load()
	require.NoError(t, err)

	pirai, ok := cfg.Station("pirai")
	require.True(t, ok)
	assert.Equal(t, "from-dotenv", pirai.SheetID)
	assert.Equal(t, ":6060", cfg.HTTPAddr, "real env wins over .env")
}
