package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/penichelab/ocean-dashboard/internal/api/http"
	"github.com/penichelab/ocean-dashboard/internal/cache"
	"github.com/penichelab/ocean-dashboard/internal/config"
	"github.com/penichelab/ocean-dashboard/internal/geo"
	"github.com/penichelab/ocean-dashboard/internal/httpx"
	"github.com/penichelab/ocean-dashboard/internal/logging"
	"github.com/penichelab/ocean-dashboard/internal/ocean"
	"github.com/penichelab/ocean-dashboard/internal/ocean/sources"
	"github.com/penichelab/ocean-dashboard/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, cfg.Development())
	log.Info("starting ocean dashboard", "port", cfg.Port, "env", cfg.AppEnv)
	cfg.AuditKeys(log)

	// Shared response cache and outbound HTTP client.
	responseCache := cache.New(cfg.CacheDefaultTTL)
	client := httpx.New(&http.Client{Timeout: cfg.HTTPTimeout})

	// Combined-data fetchers. Unconfigured sources are still registered; they
	// surface as unavailable in the hybrid envelope and as a configuration
	// error on single-source requests.
	runner := &sources.ScriptRunner{
		Command: cfg.CMEMSCommand,
		Args:    cfg.CMEMSArgs,
		Timeout: cfg.CMEMSScriptTimeout,
	}
	service := ocean.NewService(responseCache, log,
		sources.NewWorldTides(client, cfg.WorldTidesAPIKey),
		sources.NewStormGlass(client, cfg.StormGlassAPIKey),
		sources.NewCMEMS(runner),
		sources.NewOpenMeteo(client),
	)

	resolver := geo.NewResolver(cfg.GeocoderAPIKey)

	// Background jobs: cache sweep, optional hybrid warm-up.
	sched := scheduler.New(log, cfg.CacheSweepInterval, responseCache)
	if cfg.WarmupInterval > 0 {
		sched.EnableWarmup(service, cfg.DefaultLocation, cfg.WarmupInterval)
	}
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "ocean-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			if cfg.Development() {
				return true
			}
			return origin == cfg.FrontendURL ||
				strings.Contains(origin, "localhost") ||
				strings.Contains(origin, "127.0.0.1")
		},
		AllowCredentials: true,
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitMax,
		Expiration: cfg.RateLimitWindow,
		Next: func(c *fiber.Ctx) bool {
			// Local requests skip the limiter in development.
			return cfg.Development() && c.IP() == "127.0.0.1"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, try again later",
			})
		},
	}))

	server := httpapi.NewServer(cfg, log, responseCache, client, service, resolver)
	server.RegisterRoutes(app)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}
