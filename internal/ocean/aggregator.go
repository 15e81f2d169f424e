package ocean

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/penichelab/ocean-dashboard/internal/cache"
)

// ResponseCache is the slice of the response cache the aggregator needs.
// Injected so tests can run against a fake.
type ResponseCache interface {
	Get(key string) (cache.Entry, bool)
	Set(key string, value any, ttl time.Duration)
}

// Service aggregates the registered fetchers into combined envelopes.
// Stateless per request; the injected cache is the only persistent state.
type Service struct {
	fetchers map[Source]Fetcher
	cache    ResponseCache
	log      *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a Service over the given cache and fetchers.
func NewService(c ResponseCache, log *slog.Logger, fetchers ...Fetcher) *Service {
	m := make(map[Source]Fetcher, len(fetchers))
	for _, f := range fetchers {
		m[f.Source()] = f
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		fetchers: m,
		cache:    c,
		log:      log,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func cacheKey(strategy Strategy, loc Location) string {
	return fmt.Sprintf("ocean_combined:%s:%s", strategy, loc.Key())
}

// Combined resolves one combined-data request. The only error it returns is a
// *ConfigError from a single-source strategy whose key is missing; every other
// failure is folded into the envelope so the endpoint can keep answering 200.
func (s *Service) Combined(ctx context.Context, loc Location, strategy Strategy, forceRefresh bool) (env *Envelope, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("combined aggregation panicked", "strategy", strategy, "panic", r)
			env, err = s.systemErrorEnvelope(loc, strategy, fmt.Sprintf("internal fault: %v", r)), nil
		}
	}()

	key := cacheKey(strategy, loc)
	if !forceRefresh {
		if entry, ok := s.cache.Get(key); ok {
			if cached, ok := entry.Value.(*Envelope); ok {
				return s.annotateCached(cached, entry), nil
			}
		}
	}

	if strategy == StrategyHybrid {
		env = s.hybrid(ctx, loc)
	} else {
		env, err = s.singleSource(ctx, loc, strategy)
		if err != nil {
			return nil, err
		}
	}

	ttl := TTLFor(strategy)
	env.Metadata.CacheTTLSeconds = int(ttl.Seconds())
	s.cache.Set(key, env, ttl)
	return env, nil
}

// annotateCached returns a shallow copy of the stored envelope carrying
// cache-age metadata. The stored envelope is never mutated after write, so
// sharing its maps and slices is safe.
func (s *Service) annotateCached(stored *Envelope, entry cache.Entry) *Envelope {
	cp := *stored
	age := s.now().Sub(entry.StoredAt)
	if age < 0 {
		age = 0
	}
	remaining := entry.ExpiresAt.Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	cp.CacheInfo = &CacheInfo{
		ServedFromCache:  true,
		CacheAgeMinutes:  math.Round(age.Minutes()*10) / 10,
		ExpiresInSeconds: int(remaining.Seconds()),
	}
	return &cp
}

func (s *Service) newEnvelope(loc Location, strategy Strategy) *Envelope {
	return &Envelope{
		Location:  loc,
		Timestamp: s.now().UTC(),
		Strategy:  strategy,
		Sources:   make(map[Source]*SourceResult),
		Metadata: Metadata{
			RequestID:   s.newID(),
			DataSources: []Source{},
		},
		Forecast: []ForecastPoint{},
	}
}

// singleSource consults exactly one fetcher. A missing API key propagates as
// *ConfigError; any other failure is recorded as degraded data.
func (s *Service) singleSource(ctx context.Context, loc Location, strategy Strategy) (*Envelope, error) {
	env := s.newEnvelope(loc, strategy)
	src := Source(strategy)

	fetcher, ok := s.fetchers[src]
	if !ok {
		env.Sources[src] = &SourceResult{Status: StatusUnavailable, Error: "source not configured"}
		return env, nil
	}

	snap, err := fetcher.Fetch(ctx, loc)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		s.log.Warn("single-source fetch failed", "source", src, "error", err)
		env.Sources[src] = &SourceResult{Status: StatusError, Error: err.Error()}
		env.Metadata.QualityScore = 0
		return env, nil
	}

	status := StatusActive
	if snap.Fallback {
		status = StatusLimited
	}
	observed := snap.ObservedAt
	env.Sources[src] = &SourceResult{
		Status:    status,
		Timestamp: &observed,
		Fallback:  snap.Fallback,
		Data:      &snap.Current,
	}
	env.Current = snap.Current
	env.Forecast = capForecast(snap.Forecast)
	env.Metadata.DataSources = []Source{src}
	env.Metadata.QualityScore = singleSourceQuality[strategy]
	return env, nil
}

type settled struct {
	snap *Snapshot
	err  error
}

// hybrid fans out to every candidate source concurrently and settles all of
// them: a failed or missing source degrades quality, it never cancels or
// corrupts the siblings.
func (s *Service) hybrid(ctx context.Context, loc Location) *Envelope {
	env := s.newEnvelope(loc, StrategyHybrid)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[Source]settled, len(MergePriority))
	)

	for _, src := range MergePriority {
		fetcher, ok := s.fetchers[src]
		if !ok {
			mu.Lock()
			results[src] = settled{err: fmt.Errorf("source not configured")}
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(src Source, f Fetcher) {
			defer wg.Done()
			snap, err := f.Fetch(ctx, loc)
			mu.Lock()
			results[src] = settled{snap: snap, err: err}
			mu.Unlock()
		}(src, fetcher)
	}
	wg.Wait()

	active := 0
	var forecast []ForecastPoint

	// Merge in fixed priority order: the first source to report a metric owns
	// it, later sources never overwrite.
	for _, src := range MergePriority {
		res := results[src]
		if res.err != nil {
			var cfgErr *ConfigError
			status := StatusError
			if errors.As(res.err, &cfgErr) {
				status = StatusUnavailable
			} else {
				s.log.Warn("hybrid source failed", "source", src, "error", res.err)
			}
			env.Sources[src] = &SourceResult{Status: status, Error: res.err.Error()}
			continue
		}

		snap := res.snap
		status := StatusActive
		if snap.Fallback {
			status = StatusLimited
		} else {
			active++
		}
		observed := snap.ObservedAt
		env.Sources[src] = &SourceResult{
			Status:    status,
			Timestamp: &observed,
			Fallback:  snap.Fallback,
			Data:      &snap.Current,
		}
		mergeMetrics(&env.Current, snap.Current)
		forecast = append(forecast, snap.Forecast...)
		env.Metadata.DataSources = append(env.Metadata.DataSources, src)
	}

	sort.SliceStable(forecast, func(i, j int) bool {
		return forecast[i].Time.Before(forecast[j].Time)
	})
	env.Forecast = capForecast(forecast)

	env.Metadata.QualityScore = int(math.Round(100 * float64(active) / float64(len(MergePriority))))
	return env
}

func (s *Service) systemErrorEnvelope(loc Location, strategy Strategy, msg string) *Envelope {
	env := s.newEnvelope(loc, strategy)
	env.Metadata.SystemError = msg
	candidates := MergePriority
	if strategy != StrategyHybrid {
		candidates = []Source{Source(strategy)}
	}
	for _, src := range candidates {
		env.Sources[src] = &SourceResult{Status: StatusError, Error: msg}
	}
	return env
}

// mergeMetrics fills unset fields of dst from src (first-writer-wins).
func mergeMetrics(dst *Metrics, src Metrics) {
	if dst.WaveHeight == nil {
		dst.WaveHeight = src.WaveHeight
	}
	if dst.WaterTemperature == nil {
		dst.WaterTemperature = src.WaterTemperature
	}
	if dst.AirTemperature == nil {
		dst.AirTemperature = src.AirTemperature
	}
	if dst.WindSpeed == nil {
		dst.WindSpeed = src.WindSpeed
	}
	if dst.SeaLevelAnomaly == nil {
		dst.SeaLevelAnomaly = src.SeaLevelAnomaly
	}
	if dst.Pressure == nil {
		dst.Pressure = src.Pressure
	}
	if dst.TideLevel == nil {
		dst.TideLevel = src.TideLevel
	}
	if dst.NextTide == nil {
		dst.NextTide = src.NextTide
	}
}

func capForecast(points []ForecastPoint) []ForecastPoint {
	if points == nil {
		return []ForecastPoint{}
	}
	if len(points) > MaxForecastPoints {
		return points[:MaxForecastPoints]
	}
	return points
}
