package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/penichelab/ocean-dashboard/internal/cache"
	"github.com/penichelab/ocean-dashboard/internal/config"
	"github.com/penichelab/ocean-dashboard/internal/geo"
	"github.com/penichelab/ocean-dashboard/internal/httpx"
	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

var validate = validator.New()

// Server bundles the dependencies the HTTP handlers need.
type Server struct {
	cfg      *config.AppConfig
	log      *slog.Logger
	cache    *cache.Cache
	client   *httpx.Client
	ocean    *ocean.Service
	resolver *geo.Resolver
	started  time.Time
}

func NewServer(cfg *config.AppConfig, log *slog.Logger, c *cache.Cache, client *httpx.Client, svc *ocean.Service, resolver *geo.Resolver) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		cache:    c,
		client:   client,
		ocean:    svc,
		resolver: resolver,
		started:  time.Now(),
	}
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func (s *Server) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/", s.handleDoc)
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)

	api.Get("/ocean/combined", s.handleOceanCombined)

	api.Get("/thingspeak", s.handleThingSpeak)
	api.Get("/openweathermap", s.handleOpenWeatherMap)
	api.Get("/weatherapi", s.handleWeatherAPI)
	api.Get("/worldtides", s.handleWorldTides)
	api.Get("/worldtides/test", s.handleWorldTidesTest)
	api.Get("/openmeteo", s.handleOpenMeteo)
	api.Get("/stormglass", s.handleStormGlass)
	api.Get("/sun", s.handleSun)

	nasa := api.Group("/nasa")
	nasa.Get("/apod", s.handleAPOD)
	nasa.Get("/portugal", s.handleNASAPortugal)
	nasa.Get("/mars", s.handleMarsPhotos)
	nasa.Get("/iss-real", s.handleISS)
	nasa.Get("/portugal-space", s.handlePortugalSpace)
	nasa.Get("/events", s.handleNASAEvents)

	copernicus := api.Group("/copernicus")
	copernicus.Get("/emergency", notImplemented("requires a dedicated emergency-service API and credentials"))
	copernicus.Get("/images", notImplemented("STAC/Data Space access requires OAuth"))
	copernicus.Get("/timeseries", notImplemented("CMEMS Motu delivers NetCDF over POST"))
	copernicus.Get("/airquality", notImplemented("CAMS/ADS requires its own key and endpoint"))
}

func notImplemented(help string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "not implemented",
			"help":  help,
		})
	}
}

// queryCacheKey builds a cache key from the endpoint name and the raw query
// string, so distinct parameter combinations get distinct entries.
func (s *Server) queryCacheKey(prefix string, c *fiber.Ctx) string {
	return fmt.Sprintf("%s_%s", prefix, c.Request().URI().QueryString())
}

// details returns err.Error() in development and a generic message otherwise.
func (s *Server) details(err error) string {
	if s.cfg.Development() {
		return err.Error()
	}
	return "internal error"
}

// missingParams answers 400 with the required parameter list and a worked example.
func missingParams(c *fiber.Ctx, example string, required ...string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":    "missing required parameters",
		"example":  example,
		"required": required,
	})
}

// notConfigured answers 500 with a hint naming the env vars to set.
func notConfigured(c *fiber.Ctx, api, help string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": api + " is not configured",
		"help":  help,
	})
}

// upstreamError maps a failed upstream call onto the response taxonomy:
// deadline hits become 408, upstream HTTP failures keep their status code,
// everything else is a 500. Details are redacted outside development.
func (s *Server) upstreamError(c *fiber.Ctx, api string, err error) error {
	if errors.Is(err, httpx.ErrTimeout) {
		s.log.Warn("upstream timeout", "api", api)
		return c.Status(fiber.StatusRequestTimeout).JSON(fiber.Map{
			"error": api + " request timed out",
		})
	}

	status := fiber.StatusInternalServerError
	var upErr *httpx.UpstreamError
	if errors.As(err, &upErr) {
		status = upErr.Status
	}
	s.log.Error("upstream call failed", "api", api, "error", err)
	return c.Status(status).JSON(fiber.Map{
		"error":   "failed to reach " + api,
		"details": s.details(err),
	})
}

// proxyJSON is the shared pass-through path: serve from cache when possible,
// otherwise fetch, cache with the default TTL and relay the body unchanged.
func (s *Server) proxyJSON(c *fiber.Ctx, api, cacheKey, url string, opts httpx.Options) error {
	if entry, ok := s.cache.Get(cacheKey); ok {
		return c.JSON(entry.Value)
	}
	data, err := s.client.FetchJSON(c.UserContext(), url, opts)
	if err != nil {
		return s.upstreamError(c, api, err)
	}
	s.cache.SetDefault(cacheKey, data)
	return c.JSON(data)
}
