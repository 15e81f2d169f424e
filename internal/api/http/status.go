package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// handleHealth answers the liveness probe.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

// handleStatus reports which upstream integrations are configured. Cached
// briefly so dashboards can poll it freely.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	const cacheKey = "status"
	if entry, ok := s.cache.Get(cacheKey); ok {
		return c.JSON(entry.Value)
	}

	status := fiber.Map{
		"server":      "online",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": s.cfg.AppEnv,
		"apis": fiber.Map{
			"openweathermap": s.cfg.OpenWeatherAPIKey != "",
			"weatherapi":     s.cfg.WeatherAPIKey != "",
			"stormglass":     s.cfg.StormGlassAPIKey != "",
			"worldtides":     s.cfg.WorldTidesAPIKey != "",
			"nasa":           s.cfg.NASAAPIKey != "",
			"thingspeak":     s.cfg.ThingSpeakChannelID != "" && s.cfg.ThingSpeakReadKey != "",
			"openmeteo":      true,
			"sun":            true,
		},
	}
	s.cache.Set(cacheKey, status, 30*time.Second)
	return c.JSON(status)
}

type endpointDoc struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// handleDoc is the self-documentation payload at /api.
func (s *Server) handleDoc(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "ocean dashboard API",
		"version": "1.0.0",
		"endpoints": []endpointDoc{
			{"/api/health", "GET", "server health check"},
			{"/api/status", "GET", "configured upstream APIs"},
			{"/api/ocean/combined", "GET", "combined ocean conditions (hybrid or single source)"},
			{"/api/thingspeak", "GET", "local sensor feed (ThingSpeak)"},
			{"/api/openweathermap", "GET", "weather forecast (OpenWeatherMap One Call)"},
			{"/api/weatherapi", "GET", "weather forecast (WeatherAPI)"},
			{"/api/worldtides", "GET", "tide data (WorldTides)"},
			{"/api/worldtides/test", "GET", "WorldTides connectivity probe"},
			{"/api/openmeteo", "GET", "weather forecast (Open-Meteo)"},
			{"/api/stormglass", "GET", "marine conditions (StormGlass)"},
			{"/api/sun", "GET", "sunrise and sunset times"},
			{"/api/nasa/apod", "GET", "Astronomy Picture of the Day"},
			{"/api/nasa/portugal", "GET", "NASA imagery of Portugal"},
			{"/api/nasa/mars", "GET", "latest Mars rover photos"},
			{"/api/nasa/iss-real", "GET", "current ISS position"},
			{"/api/nasa/portugal-space", "GET", "Portugal space program facts"},
			{"/api/nasa/events", "GET", "open natural events (NASA EONET)"},
			{"/api/copernicus/*", "GET", "Copernicus endpoints (not implemented)"},
		},
	})
}
