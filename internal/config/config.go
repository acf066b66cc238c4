package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // station timezones resolve without a system zoneinfo

	"github.com/joho/godotenv"
)

// Station is one monitored water treatment station and the sheet tab that
// holds its operator log.
type Station struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	SheetID string `json:"-"`
	GID     string `json:"-"`
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	Timezone        *time.Location

	// Sheet source.
	SheetsBaseURL string
	SheetsFormat  string
	FetchTimeout  time.Duration
	FetchRetries  int
	Stations      []Station

	// Fetch cache.
	CacheBackend    string
	CacheTTL        time.Duration
	CacheMaxEntries int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Background sync. An empty schedule disables it.
	RefreshSchedule string
	KafkaBrokers    []string
	KafkaTopic      string
	ArchivePath     string
}

// stationProfiles lists the known stations and their env prefixes.
var stationProfiles = []struct {
	id, name, prefix string
}{
	{"cubatao", "ETA Cubatão", "ETA_CUBATAO"},
	{"pirai", "ETA Piraí", "ETA_PIRAI"},
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first; it never overrides
// variables already set in the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parsePositiveDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}

	tzName := envOrDefault("SOURCE_TIMEZONE", "America/Sao_Paulo")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid SOURCE_TIMEZONE %q: %w", tzName, err)
	}

	retries, err := parseInt("FETCH_RETRIES", 0)
	if err != nil {
		return nil, err
	}
	if retries < 0 || retries > 5 {
		return nil, errors.New("FETCH_RETRIES must be between 0 and 5")
	}
	maxEntries, err := parseInt("CACHE_MAX_ENTRIES", 32)
	if err != nil {
		return nil, err
	}
	if maxEntries <= 0 {
		return nil, errors.New("CACHE_MAX_ENTRIES must be positive")
	}
	redisDB, err := parseInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	schedule := envOrDefault("REFRESH_SCHEDULE", "@every 1h")
	if strings.EqualFold(schedule, "off") {
		schedule = ""
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		Timezone:        tz,

		SheetsBaseURL: strings.TrimRight(envOrDefault("SHEETS_BASE_URL", "https://docs.google.com/spreadsheets/d"), "/"),
		SheetsFormat:  strings.ToLower(envOrDefault("SHEETS_FORMAT", "csv")),
		FetchTimeout:  fetchTimeout,
		FetchRetries:  retries,
		Stations:      loadStations(),

		CacheBackend:    strings.ToLower(envOrDefault("CACHE_BACKEND", "memory")),
		CacheTTL:        cacheTTL,
		CacheMaxEntries: maxEntries,
		RedisAddr:       envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,

		RefreshSchedule: schedule,
		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      envOrDefault("KAFKA_TOPIC", "hydro-readings"),
		ArchivePath:     os.Getenv("ARCHIVE_PATH"),
	}

	if cfg.SheetsFormat != "csv" && cfg.SheetsFormat != "gviz" {
		return nil, fmt.Errorf("invalid SHEETS_FORMAT %q: want csv or gviz", cfg.SheetsFormat)
	}
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" {
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q: want memory or redis", cfg.CacheBackend)
	}
	if len(cfg.Stations) == 0 {
		return nil, errors.New("at least one of ETA_CUBATAO_SHEET_ID or ETA_PIRAI_SHEET_ID is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// Station looks up a configured station by id.
func (c *Config) Station(id string) (Station, bool) {
	for _, s := range c.Stations {
		if s.ID == id {
			return s, true
		}
	}
	return Station{}, false
}

func loadStations() []Station {
	var out []Station
	for _, p := range stationProfiles {
		sheet := strings.TrimSpace(os.Getenv(p.prefix + "_SHEET_ID"))
		if sheet == "" {
			continue
		}
		out = append(out, Station{
			ID:      p.id,
			Name:    p.name,
			SheetID: sheet,
			GID:     envOrDefault(p.prefix+"_GID", "0"),
		})
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
