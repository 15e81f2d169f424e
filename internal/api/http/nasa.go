package httpapi

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/penichelab/ocean-dashboard/internal/httpx"
)

// handleAPOD relays NASA's Astronomy Picture of the Day.
func (s *Server) handleAPOD(c *fiber.Ctx) error {
	if s.cfg.NASAAPIKey == "" {
		return notConfigured(c, "NASA API", "NASA_API_KEY required in .env")
	}
	u := "https://api.nasa.gov/planetary/apod?api_key=" + url.QueryEscape(s.cfg.NASAAPIKey)
	return s.proxyJSON(c, "NASA APOD", "nasa_apod", u, httpx.Options{})
}

// handleNASAPortugal searches the NASA image library for a Portugal picture
// and reduces the hit to what the dashboard card needs. The image search API
// is keyless.
func (s *Server) handleNASAPortugal(c *fiber.Ctx) error {
	const cacheKey = "nasa_portugal"
	if entry, ok := s.cache.Get(cacheKey); ok {
		return c.JSON(entry.Value)
	}

	var body struct {
		Collection struct {
			Items []struct {
				Links []struct {
					Href string `json:"href"`
				} `json:"links"`
				Data []struct {
					Title       string `json:"title"`
					Description string `json:"description"`
				} `json:"data"`
			} `json:"items"`
		} `json:"collection"`
	}
	u := "https://images-api.nasa.gov/search?q=Portugal&media_type=image"
	if err := s.client.DecodeJSON(c.UserContext(), u, httpx.Options{}, &body); err != nil {
		return s.upstreamError(c, "NASA image search", err)
	}

	items := body.Collection.Items
	if len(items) == 0 || len(items[0].Links) == 0 || len(items[0].Data) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no Portugal imagery found",
		})
	}

	result := fiber.Map{
		"url":         items[0].Links[0].Href,
		"title":       items[0].Data[0].Title,
		"description": items[0].Data[0].Description,
	}
	s.cache.SetDefault(cacheKey, result)
	return c.JSON(result)
}

// marsDemoPhotos is served when no NASA key is configured so the dashboard
// card still renders.
var marsDemoPhotos = []fiber.Map{
	{
		"img_src":    "https://mars.nasa.gov/system/news_items/main_images/9144_1-PIA24264.jpg",
		"sol":        1000,
		"earth_date": "2024-01-15",
		"camera":     fiber.Map{"name": "NAVCAM", "full_name": "Navigation Camera"},
		"rover":      fiber.Map{"name": "Perseverance"},
	},
	{
		"img_src":    "https://mars.nasa.gov/system/news_items/main_images/9263_PIA25681.jpg",
		"sol":        1001,
		"earth_date": "2024-01-16",
		"camera":     fiber.Map{"name": "MASTCAM", "full_name": "Mast Camera"},
		"rover":      fiber.Map{"name": "Perseverance"},
	},
}

// handleMarsPhotos relays the latest rover photos, falling back to a small
// demo payload when no key is configured.
func (s *Server) handleMarsPhotos(c *fiber.Ctx) error {
	rover := c.Query("rover", "perseverance")

	if s.cfg.NASAAPIKey == "" {
		return c.JSON(fiber.Map{
			"rover":        rover,
			"photos":       marsDemoPhotos,
			"total_photos": len(marsDemoPhotos),
			"source":       "demo",
			"status":       "demo",
		})
	}

	cacheKey := s.queryCacheKey("nasa_mars", c)
	if entry, ok := s.cache.Get(cacheKey); ok {
		return c.JSON(entry.Value)
	}

	var body struct {
		LatestPhotos []struct {
			ImgSrc    string `json:"img_src"`
			Sol       int    `json:"sol"`
			EarthDate string `json:"earth_date"`
			Camera    struct {
				Name     string `json:"name"`
				FullName string `json:"full_name"`
			} `json:"camera"`
			Rover struct {
				Name string `json:"name"`
			} `json:"rover"`
		} `json:"latest_photos"`
	}
	u := "https://api.nasa.gov/mars-photos/api/v1/rovers/" + url.PathEscape(rover) +
		"/latest_photos?api_key=" + url.QueryEscape(s.cfg.NASAAPIKey)
	if err := s.client.DecodeJSON(c.UserContext(), u, httpx.Options{}, &body); err != nil {
		return s.upstreamError(c, "NASA Mars photos", err)
	}

	result := fiber.Map{
		"rover":        rover,
		"photos":       body.LatestPhotos,
		"total_photos": len(body.LatestPhotos),
		"source":       "NASA Mars Photos API",
		"status":       "live",
	}
	s.cache.SetDefault(cacheKey, result)
	return c.JSON(result)
}

// handleISS reports the current ISS position from wheretheiss.at, reduced to
// the fields the dashboard renders.
func (s *Server) handleISS(c *fiber.Ctx) error {
	const cacheKey = "nasa_iss"
	if entry, ok := s.cache.Get(cacheKey); ok {
		return c.JSON(entry.Value)
	}

	var body struct {
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
		Altitude   float64 `json:"altitude"`
		Velocity   float64 `json:"velocity"`
		Visibility string  `json:"visibility"`
		Timestamp  int64   `json:"timestamp"`
	}
	u := "https://api.wheretheiss.at/v1/satellites/25544"
	if err := s.client.DecodeJSON(c.UserContext(), u, httpx.Options{}, &body); err != nil {
		return s.upstreamError(c, "ISS tracker", err)
	}

	result := fiber.Map{
		"latitude":    body.Latitude,
		"longitude":   body.Longitude,
		"altitude_km": body.Altitude,
		"speed_kmh":   body.Velocity,
		"visibility":  body.Visibility,
		"timestamp":   body.Timestamp,
	}
	// The station moves ~8 km/s; keep the cache short.
	s.cache.Set(cacheKey, result, 30*time.Second)
	return c.JSON(result)
}

// handlePortugalSpace serves the static "Portugal in space" card content.
func (s *Server) handlePortugalSpace(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"missions": []fiber.Map{
			{
				"name":        "PoSAT-1",
				"description": "Portugal's first satellite, a microsatellite built with the University of Surrey.",
				"launch_date": "1993-09-26",
				"status":      "retired",
			},
			{
				"name":        "Azores Teleport",
				"description": "Santa Maria ground station supporting ESA launch tracking from the Azores.",
				"launch_date": "2008",
				"status":      "operational",
			},
			{
				"name":        "Atlantic Constellation",
				"description": "Portuguese-led Earth observation smallsat constellation for ocean and climate monitoring.",
				"launch_date": "2025",
				"status":      "in development",
			},
		},
		"satellites": []fiber.Map{
			{
				"name":        "ISTSat-1",
				"description": "CubeSat built by IST students, flown on Ariane 6's maiden launch.",
				"launch_date": "2024-07-09",
				"status":      "operational",
			},
			{
				"name":        "Aeros MH-1",
				"description": "Ocean-monitoring smallsat named after the Portuguese sea.",
				"launch_date": "2024-03-04",
				"status":      "operational",
			},
		},
		"interesting_facts": []string{
			"Portugal joined the European Space Agency in 2000.",
			"The Azores host one of ESA's main satellite tracking stations.",
			"Portugal plans a spaceport on Santa Maria island for small launchers.",
		},
		"statistics": fiber.Map{
			"space_companies":       80,
			"satellites_launched":   5,
			"missions_participated": 30,
		},
	})
}

// handleNASAEvents relays open natural events from NASA EONET (keyless).
func (s *Server) handleNASAEvents(c *fiber.Ctx) error {
	limit := c.Query("limit", "10")
	u := "https://eonet.gsfc.nasa.gov/api/v3/events?status=open&limit=" + url.QueryEscape(limit)
	return s.proxyJSON(c, "NASA EONET", s.queryCacheKey("nasa_events", c), u, httpx.Options{})
}
