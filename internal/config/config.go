package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

// AppConfig is everything the server reads from the environment.
type AppConfig struct {
	Port        string
	AppEnv      string // "development" | "production"
	LogLevel    slog.Level
	FrontendURL string

	// Outbound HTTP defaults.
	HTTPTimeout time.Duration

	// Upstream credentials. Any of these may be empty; the matching
	// endpoints then answer with a configuration error.
	OpenWeatherAPIKey   string
	WeatherAPIKey       string
	StormGlassAPIKey    string
	WorldTidesAPIKey    string
	NASAAPIKey          string
	ThingSpeakChannelID string
	ThingSpeakReadKey   string
	GeocoderAPIKey      string

	// DefaultLocation is used when a request omits coordinates.
	DefaultLocation ocean.Location

	// Cache tuning.
	CacheDefaultTTL    time.Duration
	CacheSweepInterval time.Duration

	// WarmupInterval refreshes the hybrid envelope for the default location
	// in the background. Zero disables it.
	WarmupInterval time.Duration

	// Rate limiting (requests per window per client IP).
	RateLimitMax    int
	RateLimitWindow time.Duration

	// CMEMS retrieval script.
	CMEMSCommand       string
	CMEMSArgs          []string
	CMEMSScriptTimeout time.Duration
}

// Load reads configuration from the environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "3001")
	cfg.AppEnv = getenvDefault("APP_ENV", "development")
	switch cfg.AppEnv {
	case "development", "production":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: development, production)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.FrontendURL = os.Getenv("FRONTEND_URL")

	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OWM_API_KEY")
	cfg.WeatherAPIKey = os.Getenv("WEATHERAPI_KEY")
	cfg.StormGlassAPIKey = os.Getenv("STORMGLASS_API_KEY")
	cfg.WorldTidesAPIKey = os.Getenv("WORLDTIDES_API_KEY")
	cfg.NASAAPIKey = os.Getenv("NASA_API_KEY")
	cfg.ThingSpeakChannelID = os.Getenv("THINGSPEAK_CHANNEL_ID")
	cfg.ThingSpeakReadKey = os.Getenv("THINGSPEAK_READ_API_KEY")
	cfg.GeocoderAPIKey = os.Getenv("GOOGLE_GEOCODER_API_KEY")

	cfg.DefaultLocation = ocean.Location{
		Latitude:  getenvFloat("DEFAULT_LAT", 39.355),
		Longitude: getenvFloat("DEFAULT_LON", -9.381),
		Name:      getenvDefault("DEFAULT_LOCATION_NAME", "Peniche"),
	}

	cfg.CacheDefaultTTL, err = getenvDuration("CACHE_DEFAULT_TTL", 300*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.CacheSweepInterval, err = getenvDuration("CACHE_SWEEP_INTERVAL", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.WarmupInterval, err = getenvDuration("WARMUP_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	cfg.RateLimitMax = getenvInt("RATE_LIMIT_MAX", 100)
	cfg.RateLimitWindow, err = getenvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.CMEMSCommand = getenvDefault("CMEMS_COMMAND", "python3")
	if args := os.Getenv("CMEMS_ARGS"); args != "" {
		cfg.CMEMSArgs = strings.Fields(args)
	} else {
		cfg.CMEMSArgs = []string{"scripts/cmems_tides.py"}
	}
	cfg.CMEMSScriptTimeout, err = getenvDuration("CMEMS_SCRIPT_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Development reports whether verbose error details may be exposed.
func (c *AppConfig) Development() bool {
	return c.AppEnv == "development"
}

// AuditKeys logs which upstream integrations are configured. The server
// starts regardless; unconfigured integrations answer with help hints.
func (c *AppConfig) AuditKeys(log *slog.Logger) {
	keys := []struct {
		name string
		set  bool
	}{
		{"OWM_API_KEY", c.OpenWeatherAPIKey != ""},
		{"WEATHERAPI_KEY", c.WeatherAPIKey != ""},
		{"STORMGLASS_API_KEY", c.StormGlassAPIKey != ""},
		{"WORLDTIDES_API_KEY", c.WorldTidesAPIKey != ""},
		{"NASA_API_KEY", c.NASAAPIKey != ""},
		{"THINGSPEAK_CHANNEL_ID", c.ThingSpeakChannelID != ""},
		{"THINGSPEAK_READ_API_KEY", c.ThingSpeakReadKey != ""},
		{"GOOGLE_GEOCODER_API_KEY", c.GeocoderAPIKey != ""},
	}
	for _, k := range keys {
		if k.set {
			log.Info("api key configured", "key", k.name)
		} else {
			log.Warn("api key missing, functionality limited", "key", k.name)
		}
	}
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
