package httpapi

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/penichelab/ocean-dashboard/internal/httpx"
)

// handleThingSpeak relays the latest sensor feed rows from the configured
// ThingSpeak channel.
func (s *Server) handleThingSpeak(c *fiber.Ctx) error {
	if s.cfg.ThingSpeakChannelID == "" || s.cfg.ThingSpeakReadKey == "" {
		return notConfigured(c, "ThingSpeak",
			"THINGSPEAK_CHANNEL_ID and THINGSPEAK_READ_API_KEY required in .env")
	}

	results := c.Query("results", "1")
	u := fmt.Sprintf("https://api.thingspeak.com/channels/%s/feeds.json?api_key=%s&results=%s",
		s.cfg.ThingSpeakChannelID, s.cfg.ThingSpeakReadKey, url.QueryEscape(results))

	return s.proxyJSON(c, "ThingSpeak", s.queryCacheKey("thingspeak", c), u, httpx.Options{})
}

// handleOpenWeatherMap relays the One Call 3.0 forecast.
func (s *Server) handleOpenWeatherMap(c *fiber.Ctx) error {
	if s.cfg.OpenWeatherAPIKey == "" {
		return notConfigured(c, "OpenWeatherMap", "OWM_API_KEY required in .env")
	}

	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" || lon == "" {
		return missingParams(c, "/api/openweathermap?lat=39.36&lon=-9.16", "lat", "lon")
	}

	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("exclude", c.Query("exclude"))
	q.Set("units", c.Query("units", "metric"))
	q.Set("lang", c.Query("lang", "pt"))
	q.Set("appid", s.cfg.OpenWeatherAPIKey)
	u := "https://api.openweathermap.org/data/3.0/onecall?" + q.Encode()

	return s.proxyJSON(c, "OpenWeatherMap", s.queryCacheKey("openweathermap", c), u, httpx.Options{})
}

// handleWeatherAPI relays the weatherapi.com forecast.
func (s *Server) handleWeatherAPI(c *fiber.Ctx) error {
	if s.cfg.WeatherAPIKey == "" {
		return notConfigured(c, "WeatherAPI", "WEATHERAPI_KEY required in .env")
	}

	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" || lon == "" {
		return missingParams(c, "/api/weatherapi?lat=39.36&lon=-9.16&days=2", "lat", "lon")
	}

	q := url.Values{}
	q.Set("key", s.cfg.WeatherAPIKey)
	q.Set("q", lat+","+lon)
	q.Set("days", c.Query("days", "2"))
	q.Set("aqi", "no")
	q.Set("alerts", "no")
	q.Set("lang", c.Query("lang", "pt"))
	u := "https://api.weatherapi.com/v1/forecast.json?" + q.Encode()

	return s.proxyJSON(c, "WeatherAPI", s.queryCacheKey("weatherapi", c), u, httpx.Options{})
}

// handleWorldTides relays tide data. WorldTides reports failures inside a 200
// body, so the relay inspects it before caching.
func (s *Server) handleWorldTides(c *fiber.Ctx) error {
	if s.cfg.WorldTidesAPIKey == "" {
		return notConfigured(c, "WorldTides", "WORLDTIDES_API_KEY required in .env")
	}

	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" || lon == "" {
		return missingParams(c, "/api/worldtides?lat=39.3558&lon=-9.38112&extremes=1&length=86400", "lat", "lon")
	}

	cacheKey := s.queryCacheKey("worldtides", c)
	if entry, ok := s.cache.Get(cacheKey); ok {
		return c.JSON(entry.Value)
	}

	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("key", s.cfg.WorldTidesAPIKey)
	if v := c.Query("extremes"); v != "" {
		q.Set("extremes", v)
	}
	if v := c.Query("length"); v != "" {
		q.Set("length", v)
	}
	u := "https://www.worldtides.info/api/v3?" + q.Encode()

	raw, err := s.client.FetchJSON(c.UserContext(), u, httpx.Options{
		Headers: map[string]string{"User-Agent": "ocean-dashboard/1.0"},
	})
	if err != nil {
		return s.upstreamError(c, "WorldTides", err)
	}

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		code := body.Code
		if code == "" {
			code = "UNKNOWN"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "WorldTides: " + body.Error,
			"code":  code,
		})
	}

	s.cache.SetDefault(cacheKey, raw)
	return c.JSON(raw)
}

// handleWorldTidesTest is a connectivity probe for the WorldTides key. It
// always answers 200 with a status payload and uses a short cache so repeated
// probing does not burn the call quota.
func (s *Server) handleWorldTidesTest(c *fiber.Ctx) error {
	const cacheKey = "worldtides_test"
	const probeTTL = 60 * time.Second

	if entry, ok := s.cache.Get(cacheKey); ok {
		return c.JSON(entry.Value)
	}

	if s.cfg.WorldTidesAPIKey == "" {
		result := fiber.Map{
			"status":     "error",
			"message":    "WORLDTIDES_API_KEY not set in .env",
			"configured": false,
		}
		s.cache.Set(cacheKey, result, probeTTL)
		return c.JSON(result)
	}

	loc := s.cfg.DefaultLocation
	u := fmt.Sprintf("https://www.worldtides.info/api/v3?lat=%s&lon=%s&extremes=1&length=3600&key=%s",
		strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
		strconv.FormatFloat(loc.Longitude, 'f', -1, 64),
		s.cfg.WorldTidesAPIKey)

	raw, err := s.client.FetchJSON(c.UserContext(), u, httpx.Options{})
	if err != nil {
		result := fiber.Map{
			"status":        "error",
			"message":       "WorldTides probe failed: " + s.details(err),
			"configured":    true,
			"network_error": true,
		}
		s.cache.Set(cacheKey, result, probeTTL)
		return c.JSON(result)
	}

	var body struct {
		Error     string            `json:"error"`
		CallCount int               `json:"callCount"`
		Extremes  []json.RawMessage `json:"extremes"`
	}
	_ = json.Unmarshal(raw, &body)

	var result fiber.Map
	if body.Error != "" {
		result = fiber.Map{
			"status":     "error",
			"message":    body.Error,
			"configured": true,
			"api_error":  true,
		}
	} else {
		result = fiber.Map{
			"status":     "success",
			"message":    "WorldTides API key is valid",
			"configured": true,
			"call_count": body.CallCount,
			"extremes":   len(body.Extremes),
		}
	}
	s.cache.Set(cacheKey, result, probeTTL)
	return c.JSON(result)
}

// openMeteoForecast mirrors the subset of the Open-Meteo hourly response the
// pass-through consumes.
type openMeteoForecast struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Humidity      []float64 `json:"relative_humidity_2m"`
		PrecipProb    []float64 `json:"precipitation_probability"`
		Precipitation []float64 `json:"precipitation"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
		WindGusts     []float64 `json:"wind_gusts_10m"`
		WindDirection []float64 `json:"wind_direction_10m"`
		Pressure      []float64 `json:"pressure_msl"`
		WeatherCode   []int     `json:"weather_code"`
		CloudCover    []float64 `json:"cloud_cover"`
	} `json:"hourly"`
}

// hourlyEntry is the dashboard's hourly forecast shape (OpenWeatherMap-like).
type hourlyEntry struct {
	DT            int64        `json:"dt"`
	Temp          float64      `json:"temp"`
	Humidity      float64      `json:"humidity"`
	Pop           float64      `json:"pop"`
	Precipitation float64      `json:"precipitation"`
	WindSpeed     float64      `json:"wind_speed"`
	WindGust      float64      `json:"wind_gust"`
	WindDeg       float64      `json:"wind_deg"`
	Pressure      float64      `json:"pressure"`
	Clouds        float64      `json:"clouds"`
	Weather       []weatherRef `json:"weather"`
}

type weatherRef struct {
	ID int `json:"id"`
}

// handleOpenMeteo fetches the Open-Meteo hourly forecast and reshapes it into
// the hourly format the dashboard expects.
func (s *Server) handleOpenMeteo(c *fiber.Ctx) error {
	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" || lon == "" {
		return missingParams(c, "/api/openmeteo?lat=39.3606&lon=-9.1575", "lat", "lon")
	}

	cacheKey := s.queryCacheKey("openmeteo", c)
	if entry, ok := s.cache.Get(cacheKey); ok {
		return c.JSON(entry.Value)
	}

	q := url.Values{}
	q.Set("latitude", lat)
	q.Set("longitude", lon)
	q.Set("hourly", "temperature_2m,relative_humidity_2m,precipitation_probability,precipitation,"+
		"wind_speed_10m,wind_gusts_10m,wind_direction_10m,pressure_msl,weather_code,cloud_cover")
	q.Set("forecast_days", "2")
	q.Set("timezone", c.Query("tz", "auto"))
	u := "https://api.open-meteo.com/v1/forecast?" + q.Encode()

	var raw openMeteoForecast
	if err := s.client.DecodeJSON(c.UserContext(), u, httpx.Options{}, &raw); err != nil {
		return s.upstreamError(c, "Open-Meteo", err)
	}

	hours := c.QueryInt("hours", 24)
	if hours <= 0 {
		hours = 24
	}
	n := len(raw.Hourly.Time)
	if hours < n {
		n = hours
	}

	at := func(vals []float64, i int) float64 {
		if i < len(vals) {
			return vals[i]
		}
		return 0
	}

	hourly := make([]hourlyEntry, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.Parse("2006-01-02T15:04", raw.Hourly.Time[i])
		if err != nil {
			continue
		}
		code := 0
		if i < len(raw.Hourly.WeatherCode) {
			code = raw.Hourly.WeatherCode[i]
		}
		hourly = append(hourly, hourlyEntry{
			DT:            ts.Unix(),
			Temp:          at(raw.Hourly.Temperature, i),
			Humidity:      at(raw.Hourly.Humidity, i),
			Pop:           at(raw.Hourly.PrecipProb, i) / 100,
			Precipitation: at(raw.Hourly.Precipitation, i),
			WindSpeed:     at(raw.Hourly.WindSpeed, i),
			WindGust:      at(raw.Hourly.WindGusts, i),
			WindDeg:       at(raw.Hourly.WindDirection, i),
			Pressure:      at(raw.Hourly.Pressure, i),
			Clouds:        at(raw.Hourly.CloudCover, i),
			Weather:       []weatherRef{{ID: code}},
		})
	}

	out := fiber.Map{"hourly": hourly}
	s.cache.SetDefault(cacheKey, out)
	return c.JSON(out)
}

// handleStormGlass relays the StormGlass point window.
func (s *Server) handleStormGlass(c *fiber.Ctx) error {
	if s.cfg.StormGlassAPIKey == "" {
		return notConfigured(c, "StormGlass", "STORMGLASS_API_KEY required in .env")
	}

	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" || lon == "" {
		return missingParams(c, "/api/stormglass?lat=39.36&lon=-9.16", "lat", "lon")
	}

	hours := c.QueryInt("hours", 24)
	if hours <= 0 {
		hours = 24
	}
	end := time.Now()
	start := end.Add(-time.Duration(hours) * time.Hour)

	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lng", lon)
	q.Set("params", "airTemperature,windSpeed,windGust,windDirection,"+
		"waveHeight,waveDirection,wavePeriod,swellHeight,swellDirection,swellPeriod,waterTemperature")
	q.Set("source", "sg")
	q.Set("start", strconv.FormatInt(start.Unix(), 10))
	q.Set("end", strconv.FormatInt(end.Unix(), 10))
	u := "https://api.stormglass.io/v2/weather/point?" + q.Encode()

	return s.proxyJSON(c, "StormGlass", s.queryCacheKey("stormglass", c), u, httpx.Options{
		Headers: map[string]string{"Authorization": s.cfg.StormGlassAPIKey},
	})
}

// handleSun relays sunrise/sunset times (keyless upstream).
func (s *Server) handleSun(c *fiber.Ctx) error {
	lat, lon := c.Query("lat"), c.Query("lon")
	if lat == "" || lon == "" {
		return missingParams(c, "/api/sun?lat=39.36&lon=-9.16", "lat", "lon")
	}

	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lng", lon)
	q.Set("date", c.Query("date", "today"))
	q.Set("time_format", c.Query("format", "24"))
	q.Set("timezone", c.Query("tz", "auto"))
	u := "https://api.sunrisesunset.io/json?" + q.Encode()

	return s.proxyJSON(c, "Sunrise/Sunset", s.queryCacheKey("sun", c), u, httpx.Options{})
}
