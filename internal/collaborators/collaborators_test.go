package collaborators

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/internal/cache"
	"github.com/jordanhubbard/krishi/internal/knowledge"
	"github.com/jordanhubbard/krishi/pkg/config"
	"github.com/jordanhubbard/krishi/pkg/models"
)

func TestPhraseTranslator(t *testing.T) {
	tr, err := NewPhraseTranslator()
	require.NoError(t, err)
	ctx := context.Background()

	got, err := tr.Translate(ctx, "എന്റെ വാഴ ഇലപ്പുള്ളി രോഗം", "ml")
	require.NoError(t, err)
	assert.Equal(t, "my banana leaf spot disease", got)

	got, err = tr.Translate(ctx, "എന്റെ വാഴ ഇലകൾ", "ML")
	require.NoError(t, err)
	assert.Equal(t, "my banana leaves", got, "longer phrase should win over its prefix")

	got, err = tr.Translate(ctx, "unknown words stay", "ml")
	require.NoError(t, err)
	assert.Equal(t, "unknown words stay", got)

	got, err = tr.Translate(ctx, "रोग", "hi")
	require.NoError(t, err)
	assert.Equal(t, "रोग", got, "languages without a table pass through")
}

func TestPhraseTranslator_Cancelled(t *testing.T) {
	tr, err := ParsePhraseTable([]byte("ml:\n  a: b\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Translate(ctx, "a", "ml")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParsePhraseTable_Invalid(t *testing.T) {
	_, err := ParsePhraseTable([]byte("ml: [unclosed"))
	assert.Error(t, err)
}

func TestStubClassifier(t *testing.T) {
	kb, err := knowledge.Default()
	require.NoError(t, err)
	c := NewStubClassifier(kb)
	ctx := context.Background()

	result, err := c.Classify(ctx, "uploads/leaf.jpg", "Banana")
	require.NoError(t, err)
	entry, _ := kb.Crop("banana")
	assert.Equal(t, entry.Diseases[0], result.Disease)
	assert.Equal(t, 0.87, result.Confidence)
	assert.Equal(t, models.SeverityHigh, result.Severity)
	assert.True(t, result.HasFinding())

	result, err = c.Classify(ctx, "uploads/leaf.jpg", "dragonfruit")
	require.NoError(t, err)
	assert.Equal(t, models.UnknownCondition, result.Disease)
	assert.False(t, result.HasFinding())
	assert.Equal(t, models.SeverityLow, result.Severity)

	_, err = c.Classify(ctx, "  ", "banana")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestFixedClassifier(t *testing.T) {
	c := FixedClassifier{Result: &models.ImageAnalysis{Disease: "Leaf Spot", Confidence: 0.45}}
	result, err := c.Classify(context.Background(), "x", "banana")
	require.NoError(t, err)
	assert.Equal(t, models.SeverityMedium, result.Severity)

	boom := errors.New("model offline")
	_, err = FixedClassifier{Err: boom}.Classify(context.Background(), "x", "banana")
	assert.ErrorIs(t, err, boom)
}

func TestStubRecognizer(t *testing.T) {
	r := NewStubRecognizer()
	tr, err := r.Transcribe(context.Background(), "voice/note.ogg")
	require.NoError(t, err)
	assert.NotEmpty(t, tr.Text)
	assert.Equal(t, "en", tr.Language)

	_, err = r.Transcribe(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at, FixedClock{T: at}.Now())
	assert.False(t, SystemClock{}.Now().IsZero())
}

func TestWeatherCodeToCondition(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{0, ConditionClear},
		{2, ConditionPartlyCloudy},
		{45, ConditionFoggy},
		{51, ConditionRainy},
		{65, ConditionRainy},
		{71, ConditionSnowy},
		{81, ConditionRainy},
		{95, ConditionRainy},
		{120, ConditionUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WeatherCodeToCondition(tt.code), "code %d", tt.code)
	}
}

func newOpenMeteoServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		assert.Equal(t, "10.8505", r.URL.Query().Get("latitude"))
		assert.Equal(t, "true", r.URL.Query().Get("current_weather"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"current_weather": {"temperature": 26.4, "weathercode": 63},
			"hourly": {"relative_humidity_2m": [88, 90], "precipitation": [1.5, 2.0]}
		}`))
	}))
}

func TestOpenMeteo(t *testing.T) {
	var hits int32
	srv := newOpenMeteoServer(t, &hits)
	defer srv.Close()

	cfg := config.DefaultConfig().Collaborators.Weather
	cfg.BaseURL = srv.URL
	provider := NewOpenMeteo(cfg, time.Second)

	w, err := provider.CurrentConditions(context.Background(), "Kerala")
	require.NoError(t, err)
	assert.Equal(t, ConditionRainy, w.Condition)
	assert.Equal(t, 26.4, w.Temperature)
	assert.Equal(t, 88.0, w.Humidity)
	assert.Equal(t, "3.5 mm", w.Rainfall)

	_, err = provider.CurrentConditions(context.Background(), "atlantis")
	assert.ErrorIs(t, err, ErrUnknownLocation)
}

func TestOpenMeteo_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Collaborators.Weather
	cfg.BaseURL = srv.URL
	_, err := NewOpenMeteo(cfg, time.Second).CurrentConditions(context.Background(), "kerala")
	assert.Error(t, err)
}

func TestCachedWeather(t *testing.T) {
	var hits int32
	srv := newOpenMeteoServer(t, &hits)
	defer srv.Close()

	cfg := config.DefaultConfig().Collaborators.Weather
	cfg.BaseURL = srv.URL
	c := cache.New(cache.DefaultConfig())
	defer c.Close()

	provider := NewCachedWeather(NewOpenMeteo(cfg, time.Second), c, time.Minute, nil, zap.NewNop())
	ctx := context.Background()

	first, err := provider.CurrentConditions(ctx, "kerala")
	require.NoError(t, err)
	second, err := provider.CurrentConditions(ctx, " Kerala ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second lookup should be served from cache")
	assert.Equal(t, int64(1), c.GetStats(ctx).Hits)
}

func TestCachedWeather_ProviderError(t *testing.T) {
	c := cache.New(cache.DefaultConfig())
	defer c.Close()

	boom := errors.New("upstream down")
	provider := NewCachedWeather(&StaticWeather{Err: boom}, c, time.Minute, nil, nil)
	_, err := provider.CurrentConditions(context.Background(), "kerala")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), c.GetStats(context.Background()).TotalEntries)
}

func TestCachedWeather_DropsUndecodableEntry(t *testing.T) {
	c := cache.New(cache.DefaultConfig())
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "weather:kerala", []byte("not json"), time.Minute))

	provider := NewCachedWeather(NewStaticWeather(), c, time.Minute, nil, nil)
	got, err := provider.CurrentConditions(ctx, "kerala")
	require.NoError(t, err)
	require.NotNil(t, got)

	// The corrupt entry is replaced by the provider's answer
	data, ok := c.Get(ctx, "weather:kerala")
	require.True(t, ok)
	assert.NotEqual(t, "not json", string(data))

	stats := provider.Stats(ctx)
	assert.Equal(t, int64(1), stats.TotalEntries)
	assert.Equal(t, int64(2), stats.Hits)
}
