package ocean

import (
	"fmt"
	"time"
)

// Source identifies one upstream ocean-data provider.
type Source string

const (
	// SourceWorldTides provides high/low tide extremes (requires API key).
	SourceWorldTides Source = "worldtides"
	// SourceStormGlass provides point marine conditions (requires API key,
	// tight upstream rate limits).
	SourceStormGlass Source = "stormglass"
	// SourceCMEMS provides scientific ocean-model output via an external
	// retrieval script.
	SourceCMEMS Source = "cmems"
	// SourceOpenMeteo provides hourly atmospheric data as a keyless,
	// low-priority backup.
	SourceOpenMeteo Source = "openmeteo"
)

// MergePriority is the fixed source-of-record order used when merging
// hybrid results into the current snapshot: earlier sources win.
var MergePriority = []Source{SourceWorldTides, SourceStormGlass, SourceCMEMS, SourceOpenMeteo}

// Strategy selects which source(s) a combined request consults.
type Strategy string

const (
	StrategyHybrid     Strategy = "hybrid"
	StrategyWorldTides Strategy = Strategy(SourceWorldTides)
	StrategyCMEMS      Strategy = Strategy(SourceCMEMS)
	StrategyStormGlass Strategy = Strategy(SourceStormGlass)
)

// ParseStrategy validates a source query value. Open-Meteo is a hybrid-only
// supplement and is not addressable as a single-source strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyHybrid, StrategyWorldTides, StrategyCMEMS, StrategyStormGlass:
		return Strategy(s), nil
	case "":
		return StrategyHybrid, nil
	}
	return "", fmt.Errorf("unknown source %q (allowed: hybrid, worldtides, cmems, stormglass)", s)
}

// Status describes how a source contributed to an envelope.
type Status string

const (
	StatusActive      Status = "active"
	StatusLimited     Status = "limited"
	StatusUnavailable Status = "unavailable"
	StatusError       Status = "error"
)

// Location is the coordinate a request is resolved against. Immutable per
// request; defaulted to the configured home spot when the caller omits it.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// Key returns the cache key component for this location, rounded so that
// nearby floating-point coordinates share an entry.
func (l Location) Key() string {
	return fmt.Sprintf("%.4f:%.4f", l.Latitude, l.Longitude)
}

// TideEvent is a single predicted high or low tide.
type TideEvent struct {
	Time   time.Time `json:"time"`
	Type   string    `json:"type"` // "High" or "Low"
	Height float64   `json:"height"`
}

// Metrics holds the per-metric readings a source can report. Fields are
// pointers so the merge can distinguish "absent" from zero.
type Metrics struct {
	WaveHeight       *float64   `json:"wave_height,omitempty"`
	WaterTemperature *float64   `json:"water_temperature,omitempty"`
	AirTemperature   *float64   `json:"air_temperature,omitempty"`
	WindSpeed        *float64   `json:"wind_speed,omitempty"`
	SeaLevelAnomaly  *float64   `json:"sea_level_anomaly,omitempty"`
	Pressure         *float64   `json:"pressure,omitempty"`
	TideLevel        *float64   `json:"tide_level,omitempty"`
	NextTide         *TideEvent `json:"next_tide,omitempty"`
}

// ForecastPoint is one time-ordered entry in the envelope forecast. It
// carries whichever metrics its origin source provided.
type ForecastPoint struct {
	Time    time.Time `json:"time"`
	Source  Source    `json:"source"`
	Metrics Metrics   `json:"metrics"`
}

// Snapshot is what a fetcher produces: a best-effort view of current
// conditions plus a short forecast.
type Snapshot struct {
	Current    Metrics
	Forecast   []ForecastPoint
	ObservedAt time.Time
	// Fallback marks synthetic substitute data (see the StormGlass fetcher).
	Fallback bool
}

// SourceResult records one source's contribution (or failure) in an envelope.
type SourceResult struct {
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Fallback  bool       `json:"fallback,omitempty"`
	Data      *Metrics   `json:"data,omitempty"`
}

// CacheInfo annotates envelopes served from the response cache.
type CacheInfo struct {
	ServedFromCache  bool    `json:"served_from_cache"`
	CacheAgeMinutes  float64 `json:"cache_age_minutes"`
	ExpiresInSeconds int     `json:"expires_in_seconds"`
}

// Metadata summarizes how an envelope was assembled.
type Metadata struct {
	RequestID       string   `json:"request_id"`
	DataSources     []Source `json:"data_sources"`
	QualityScore    int      `json:"quality_score"`
	CacheTTLSeconds int      `json:"cache_ttl_seconds"`
	SystemError     string   `json:"system_error,omitempty"`
}

// Envelope is the unified combined-endpoint response.
type Envelope struct {
	Location  Location                 `json:"location"`
	Timestamp time.Time                `json:"timestamp"`
	Strategy  Strategy                 `json:"strategy"`
	Sources   map[Source]*SourceResult `json:"sources"`
	Current   Metrics                  `json:"current"`
	Forecast  []ForecastPoint          `json:"forecast"`
	Metadata  Metadata                 `json:"metadata"`
	CacheInfo *CacheInfo               `json:"cache_info,omitempty"`
}

// MaxForecastPoints bounds the merged forecast length.
const MaxForecastPoints = 12

// cacheTTL is the per-strategy envelope TTL. Single-source strategies can
// stay cached longer than the hybrid blend, which mixes fast-moving inputs.
var cacheTTL = map[Strategy]time.Duration{
	StrategyWorldTides: 1800 * time.Second,
	StrategyCMEMS:      2700 * time.Second,
	StrategyStormGlass: 3600 * time.Second,
	StrategyHybrid:     900 * time.Second,
}

// TTLFor returns the cache TTL for a strategy.
func TTLFor(s Strategy) time.Duration {
	if ttl, ok := cacheTTL[s]; ok {
		return ttl
	}
	return cacheTTL[StrategyHybrid]
}

// singleSourceQuality is the fixed quality constant awarded when a
// single-source strategy succeeds.
var singleSourceQuality = map[Strategy]int{
	StrategyStormGlass: 85,
	StrategyWorldTides: 90,
	StrategyCMEMS:      95,
}
