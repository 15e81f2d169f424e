package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

// Sweeper removes expired cache entries and reports how many were dropped.
type Sweeper interface {
	Sweep() int
}

// Scheduler runs the periodic cache sweep and, optionally, a background
// warm-up of the hybrid envelope for the default location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	log       *slog.Logger

	caches        []Sweeper
	sweepInterval time.Duration

	service        *ocean.Service
	warmupLocation ocean.Location
	warmupInterval time.Duration
}

func New(log *slog.Logger, sweepInterval time.Duration, caches ...Sweeper) *Scheduler {
	return &Scheduler{
		scheduler:     gocron.NewScheduler(time.UTC),
		log:           log,
		caches:        caches,
		sweepInterval: sweepInterval,
	}
}

// EnableWarmup schedules a periodic hybrid fetch so the first dashboard
// request after startup is served warm. Zero interval leaves it off.
func (s *Scheduler) EnableWarmup(service *ocean.Service, loc ocean.Location, interval time.Duration) {
	s.service = service
	s.warmupLocation = loc
	s.warmupInterval = interval
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.sweepInterval > 0 && len(s.caches) > 0 {
		_, err := s.scheduler.Every(s.sweepInterval).Do(func() {
			total := 0
			for _, c := range s.caches {
				total += c.Sweep()
			}
			if total > 0 {
				s.log.Debug("cache sweep completed", "evicted", total)
			}
		})
		if err != nil {
			return err
		}
	}

	if s.service != nil && s.warmupInterval > 0 {
		_, err := s.scheduler.Every(s.warmupInterval).Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			env, err := s.service.Combined(ctx, s.warmupLocation, ocean.StrategyHybrid, true)
			if err != nil {
				s.log.Warn("warm-up fetch failed", "location", s.warmupLocation.Key(), "error", err)
				return
			}
			s.log.Debug("warm-up fetch completed",
				"location", s.warmupLocation.Key(),
				"quality", env.Metadata.QualityScore)
		})
		if err != nil {
			return err
		}
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
