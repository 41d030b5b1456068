package advice

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/internal/collaborators"
	"github.com/jordanhubbard/krishi/internal/knowledge"
	"github.com/jordanhubbard/krishi/internal/metrics"
	"github.com/jordanhubbard/krishi/internal/telemetry"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// HistoryLimit is the number of prior queries carried in an advice context
const HistoryLimit = 5

// Builder resolves the advice context for a query
type Builder struct {
	kb      *knowledge.Base
	weather collaborators.WeatherProvider
	clock   collaborators.Clock
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewBuilder creates a context builder. weather and m may be nil.
func NewBuilder(kb *knowledge.Base, weather collaborators.WeatherProvider, clock collaborators.Clock, timeout time.Duration, m *metrics.Metrics, logger *zap.Logger) *Builder {
	if clock == nil {
		clock = collaborators.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		kb:      kb,
		weather: weather,
		clock:   clock,
		timeout: timeout,
		metrics: m,
		logger:  logger.Named("context"),
	}
}

// SeasonFor maps a date to its season: monsoon June-September,
// post-monsoon October-February, pre-monsoon otherwise.
func SeasonFor(t time.Time) string {
	switch m := t.Month(); {
	case m >= time.June && m <= time.September:
		return models.SeasonMonsoon
	case m >= time.October || m <= time.February:
		return models.SeasonPostMonsoon
	default:
		return models.SeasonPreMonsoon
	}
}

// Build merges the explicit query fields, NLU entities and the farmer profile
// into an advice context. For each field the first non-empty value wins, in
// that order, before falling back to a default.
func (b *Builder) Build(ctx context.Context, explicit models.Query, nlu *models.NluResult, profile *models.FarmerProfile, history []models.QueryRecord) models.AdviceContext {
	var entities models.Entities
	if nlu.Usable() {
		entities = nlu.Entities
	}
	var profileLocation string
	if profile != nil {
		profileLocation = profile.Location
	}

	farmerID := firstNonEmpty(explicit.FarmerID, models.AnonymousFarmer)
	actx := models.AdviceContext{
		FarmerID: farmerID,
		Location: normalize(firstNonEmpty(explicit.Location, entities.Location, profileLocation)),
		Crop:     normalize(firstNonEmpty(explicit.Crop, entities.Crop, profile.LatestCrop())),
		Season:   normalize(firstNonEmpty(explicit.Season, entities.Season, SeasonFor(b.clock.Now()))),
		History:  recent(history, HistoryLimit),
	}

	if actx.Location != "" {
		actx.Weather = b.fetchWeather(ctx, actx.Location)
	}
	if actx.Crop != "" {
		actx.Calendar = b.kb.Calendar(actx.Crop, actx.Season)
	}
	return actx
}

func (b *Builder) fetchWeather(ctx context.Context, location string) *models.Weather {
	if b.weather == nil {
		return nil
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	weather, err := b.weather.CurrentConditions(ctx, location)
	elapsed := time.Since(start)
	if b.metrics != nil {
		b.metrics.RecordCollaborator("weather", err == nil, elapsed.Seconds())
	}
	telemetry.RecordCollaborator(ctx, "weather", elapsed)

	if err != nil {
		b.logger.Warn("weather unavailable", zap.String("location", location), zap.Error(err))
		return nil
	}
	return weather
}

// recent returns the last n records in their original order
func recent(history []models.QueryRecord, n int) []models.QueryRecord {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	if len(history) == 0 {
		return nil
	}
	return append([]models.QueryRecord(nil), history...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
