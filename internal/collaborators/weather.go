package collaborators

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/internal/cache"
	"github.com/jordanhubbard/krishi/internal/metrics"
	"github.com/jordanhubbard/krishi/pkg/config"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// Weather conditions reported by the providers
const (
	ConditionClear        = "clear"
	ConditionPartlyCloudy = "partly cloudy"
	ConditionFoggy        = "foggy"
	ConditionRainy        = "rainy"
	ConditionSnowy        = "snowy"
	ConditionUnknown      = "unknown"
)

// StaticWeather returns the same conditions for every location
type StaticWeather struct {
	Conditions *models.Weather
	Err        error
}

// NewStaticWeather returns a provider reporting mild, dry conditions
func NewStaticWeather() *StaticWeather {
	return &StaticWeather{
		Conditions: &models.Weather{
			Condition:   ConditionPartlyCloudy,
			Temperature: 28,
			Humidity:    75,
			Rainfall:    "light",
		},
	}
}

func (w *StaticWeather) CurrentConditions(ctx context.Context, location string) (*models.Weather, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	if w.Conditions == nil {
		return nil, nil
	}
	c := *w.Conditions
	return &c, nil
}

// OpenMeteo fetches current conditions from the Open-Meteo forecast API.
// Locations are resolved to coordinates from configuration.
type OpenMeteo struct {
	baseURL   string
	locations map[string]config.Coordinates
	client    *http.Client
}

// NewOpenMeteo creates a provider from the weather configuration
func NewOpenMeteo(cfg config.WeatherConfig, timeout time.Duration) *OpenMeteo {
	locations := make(map[string]config.Coordinates, len(cfg.Locations))
	for name, c := range cfg.Locations {
		locations[strings.ToLower(strings.TrimSpace(name))] = c
	}
	return &OpenMeteo{
		baseURL:   cfg.BaseURL,
		locations: locations,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type openMeteoResponse struct {
	CurrentWeather struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
	Hourly struct {
		Humidity      []float64 `json:"relative_humidity_2m"`
		Precipitation []float64 `json:"precipitation"`
	} `json:"hourly"`
}

func (o *OpenMeteo) CurrentConditions(ctx context.Context, location string) (*models.Weather, error) {
	coords, ok := o.locations[strings.ToLower(strings.TrimSpace(location))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, location)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', 4, 64))
	q.Set("current_weather", "true")
	q.Set("hourly", "relative_humidity_2m,precipitation")
	q.Set("forecast_days", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build weather request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather request failed: status %d", resp.StatusCode)
	}

	var result openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode weather response: %w", err)
	}

	humidity := 0.0
	if len(result.Hourly.Humidity) > 0 {
		humidity = result.Hourly.Humidity[0]
	}
	rain := 0.0
	for _, p := range result.Hourly.Precipitation {
		rain += p
	}

	return &models.Weather{
		Condition:   WeatherCodeToCondition(result.CurrentWeather.WeatherCode),
		Temperature: result.CurrentWeather.Temperature,
		Humidity:    humidity,
		Rainfall:    fmt.Sprintf("%.1f mm", rain),
	}, nil
}

// WeatherCodeToCondition maps a WMO weather code to a condition
func WeatherCodeToCondition(code int) string {
	switch {
	case code < 0:
		return ConditionUnknown
	case code == 0:
		return ConditionClear
	case code <= 3:
		return ConditionPartlyCloudy
	case code <= 48:
		return ConditionFoggy
	case code <= 67:
		return ConditionRainy
	case code <= 77:
		return ConditionSnowy
	case code <= 82:
		return ConditionRainy
	case code <= 86:
		return ConditionSnowy
	case code <= 99:
		return ConditionRainy
	default:
		return ConditionUnknown
	}
}

// CachedWeather serves conditions from a cache, falling back to the
// wrapped provider on a miss.
type CachedWeather struct {
	provider WeatherProvider
	cache    *cache.Cache
	ttl      time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewCachedWeather wraps provider. m may be nil.
func NewCachedWeather(provider WeatherProvider, c *cache.Cache, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *CachedWeather {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedWeather{provider: provider, cache: c, ttl: ttl, metrics: m, logger: logger}
}

func (w *CachedWeather) CurrentConditions(ctx context.Context, location string) (*models.Weather, error) {
	key := "weather:" + strings.ToLower(strings.TrimSpace(location))

	if data, ok := w.cache.Get(ctx, key); ok {
		var cached models.Weather
		if err := json.Unmarshal(data, &cached); err == nil {
			if w.metrics != nil {
				w.metrics.CacheHits.Inc()
			}
			return &cached, nil
		}
		w.logger.Warn("discarding undecodable weather cache entry", zap.String("key", key))
		if err := w.cache.Delete(ctx, key); err != nil {
			w.logger.Warn("failed to drop weather cache entry", zap.String("key", key), zap.Error(err))
		}
	}
	if w.metrics != nil {
		w.metrics.CacheMisses.Inc()
	}

	weather, err := w.provider.CurrentConditions(ctx, location)
	if err != nil || weather == nil {
		return weather, err
	}

	data, err := json.Marshal(weather)
	if err == nil {
		err = w.cache.Set(ctx, key, data, w.ttl)
	}
	if err != nil {
		w.logger.Warn("failed to cache weather", zap.String("key", key), zap.Error(err))
	}
	return weather, nil
}

// Stats reports the hit rate and size of the underlying cache
func (w *CachedWeather) Stats(ctx context.Context) cache.Stats {
	return w.cache.GetStats(ctx)
}
