package httpapi

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/penichelab/ocean-dashboard/internal/ocean"
)

const combinedExample = "/api/ocean/combined?lat=39.355&lon=-9.381&source=hybrid"

// combinedQuery holds the parsed combined-endpoint parameters.
type combinedQuery struct {
	Lat float64 `validate:"latitude"`
	Lon float64 `validate:"longitude"`
}

// handleOceanCombined answers GET /api/ocean/combined. Coordinates default to
// the configured home spot; a partial or malformed pair is rejected rather
// than silently defaulted.
func (s *Server) handleOceanCombined(c *fiber.Ctx) error {
	loc, err := s.resolveLocation(c)
	if err != nil {
		return missingParams(c, combinedExample, "lat", "lon")
	}

	strategy, err := ocean.ParseStrategy(c.Query("source"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   err.Error(),
			"example": combinedExample,
		})
	}

	forceRefresh := c.QueryBool("force_refresh")

	env, err := s.ocean.Combined(c.UserContext(), loc, strategy, forceRefresh)
	if err != nil {
		var cfgErr *ocean.ConfigError
		if errors.As(err, &cfgErr) {
			return notConfigured(c, string(cfgErr.Source),
				fmt.Sprintf("%s required in .env", cfgErr.EnvVar))
		}
		s.log.Error("combined request failed", "strategy", strategy, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "failed to assemble combined data",
			"details": s.details(err),
		})
	}
	return c.JSON(env)
}

func (s *Server) resolveLocation(c *fiber.Ctx) (ocean.Location, error) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" && lonStr == "" {
		return s.cfg.DefaultLocation, nil
	}
	if latStr == "" || lonStr == "" {
		return ocean.Location{}, errors.New("lat and lon must be provided together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return ocean.Location{}, fmt.Errorf("invalid lat: %w", err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return ocean.Location{}, fmt.Errorf("invalid lon: %w", err)
	}

	q := combinedQuery{Lat: lat, Lon: lon}
	if err := validate.Struct(q); err != nil {
		return ocean.Location{}, err
	}

	loc := ocean.Location{Latitude: lat, Longitude: lon}
	if resolved, err := s.resolver.Resolve(loc); err == nil {
		loc = resolved
	}
	return loc, nil
}
