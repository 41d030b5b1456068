// Package advisor runs a farmer query through understanding, context
// assembly, advice generation and the escalation policy, records the outcome
// and publishes it.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jordanhubbard/krishi/internal/advice"
	"github.com/jordanhubbard/krishi/internal/collaborators"
	"github.com/jordanhubbard/krishi/internal/escalation"
	"github.com/jordanhubbard/krishi/internal/learning"
	"github.com/jordanhubbard/krishi/internal/messagebus"
	"github.com/jordanhubbard/krishi/internal/metrics"
	"github.com/jordanhubbard/krishi/internal/nlu"
	"github.com/jordanhubbard/krishi/internal/telemetry"
	"github.com/jordanhubbard/krishi/pkg/messages"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// DefaultLanguage is assumed when a request names none
const DefaultLanguage = "en"

var ErrInvalidRating = errors.New("rating must be between 1 and 5")

// Config wires the service's components. Pipeline, Builder, Generator,
// Policy and Store are required; everything else is optional.
type Config struct {
	Pipeline   *nlu.Pipeline
	Builder    *advice.Builder
	Generator  *advice.Generator
	Policy     *escalation.Policy
	Store      *learning.Store
	Classifier collaborators.ImageClassifier
	Recognizer collaborators.SpeechRecognizer
	Publisher  messagebus.EventPublisher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	InstanceID string
	Timeout    time.Duration // per-call bound on classifier and recognizer
}

// Service is the advisory core
type Service struct {
	pipeline   *nlu.Pipeline
	builder    *advice.Builder
	generator  *advice.Generator
	policy     *escalation.Policy
	store      *learning.Store
	classifier collaborators.ImageClassifier
	recognizer collaborators.SpeechRecognizer
	publisher  messagebus.EventPublisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	instanceID string
	timeout    time.Duration

	mu       sync.RWMutex
	watchers []func(models.EscalationRecord)
}

// New creates a service from cfg
func New(cfg Config) (*Service, error) {
	if cfg.Pipeline == nil || cfg.Builder == nil || cfg.Generator == nil || cfg.Policy == nil || cfg.Store == nil {
		return nil, errors.New("advisor: pipeline, builder, generator, policy and store are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = "krishi"
	}
	return &Service{
		pipeline:   cfg.Pipeline,
		builder:    cfg.Builder,
		generator:  cfg.Generator,
		policy:     cfg.Policy,
		store:      cfg.Store,
		classifier: cfg.Classifier,
		recognizer: cfg.Recognizer,
		publisher:  cfg.Publisher,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.Named("advisor"),
		instanceID: cfg.InstanceID,
		timeout:    cfg.Timeout,
	}, nil
}

// WatchEscalations registers fn to be called with every escalation raised by
// this service. fn runs on the request goroutine and must not block.
func (s *Service) WatchEscalations(fn func(models.EscalationRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// signals are the collaborator outputs gathered before advice generation
type signals struct {
	text       string
	language   string
	transcript *models.Transcript
	nlu        models.NluResult
	image      *models.ImageAnalysis
}

// ProcessQuery answers one farmer query. Collaborator failures degrade the
// answer instead of failing the request. Every query that reaches the
// service is recorded; when ctx is cancelled the query is still recorded
// and the cancellation is returned alongside the response.
func (s *Service) ProcessQuery(ctx context.Context, req models.QueryRequest) (models.QueryResponse, error) {
	start := time.Now()
	ctx, span := telemetry.Tracer.Start(ctx, "advisor.ProcessQuery")
	defer span.End()

	query := models.Query{
		Text:     req.Text,
		FarmerID: strings.TrimSpace(req.FarmerID),
		Crop:     req.Crop,
		Location: req.Location,
		Season:   req.Season,
		Language: strings.ToLower(strings.TrimSpace(req.Language)),
	}
	if query.FarmerID == "" {
		query.FarmerID = models.AnonymousFarmer
	}

	var profile *models.FarmerProfile
	if p, ok := s.store.Profile(query.FarmerID); ok {
		profile = &p
	}
	history := s.store.RecentQueries(query.FarmerID, advice.HistoryLimit)

	sig := s.gather(ctx, req, query, profile)
	query.Text = sig.text
	query.Language = sig.language

	// The caller went away; finish recording without it.
	cancelErr := ctx.Err()
	if cancelErr != nil {
		span.SetStatus(codes.Error, cancelErr.Error())
		ctx = context.WithoutCancel(ctx)
	}

	actx := s.builder.Build(ctx, query, &sig.nlu, profile, history)
	result := s.generator.Generate(&sig.nlu, sig.image, actx)

	// Record the resolved context so the profile learns crops and
	// locations that were only mentioned in the text.
	query.Crop = actx.Crop
	query.Location = actx.Location
	query.Season = actx.Season

	decision := s.policy.Decide(query, &sig.nlu, sig.image, result)
	rec := s.store.Record(query, result, decision.Record)

	resp := models.QueryResponse{
		QueryID:         rec.ID,
		Answer:          result.Advice,
		Recommendations: result.Recommendations,
		Confidence:      result.Confidence,
		Status:          rec.Status,
		EscalationID:    rec.EscalationID,
		Context:         result.Context,
		Image:           sig.image,
		Flags: models.ProcessingFlags{
			Translated:       sig.nlu.TranslatedText != "",
			VoiceTranscribed: sig.transcript != nil,
			ImageAnalyzed:    sig.image != nil,
			WeatherAvailable: actx.Weather != nil,
			NluError:         sig.nlu.Error != "",
		},
	}
	nluCopy := sig.nlu
	resp.Nlu = &nluCopy

	var escalated *models.EscalationRecord
	if decision.Escalated() {
		linked := *decision.Record
		linked.QueryID = rec.ID
		linked.FarmerID = rec.Query.FarmerID
		escalated = &linked
		resp.Priority = linked.Priority
	}

	s.observe(ctx, sig, rec, escalated, time.Since(start))
	span.SetAttributes(
		attribute.String("query.id", rec.ID),
		attribute.String("query.status", rec.Status),
		attribute.String("advice.branch", result.Branch),
		attribute.Float64("advice.confidence", result.Confidence),
	)

	s.publish(ctx, messages.EventQueryAnswered, messages.QueryAnswered(rec, s.instanceID))
	if escalated != nil {
		s.publish(ctx, messages.EventQueryEscalated, messages.QueryEscalated(*escalated, s.instanceID))
		s.notify(*escalated)
	}

	s.logger.Info("query processed",
		zap.String("query_id", rec.ID),
		zap.String("farmer_id", rec.Query.FarmerID),
		zap.String("status", rec.Status),
		zap.String("branch", result.Branch),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("duration", time.Since(start)),
	)
	if cancelErr != nil {
		return resp, fmt.Errorf("query cancelled: %w", cancelErr)
	}
	return resp, nil
}

// gather runs image classification concurrently with transcription and
// understanding. Neither branch returns an error: a failed collaborator
// leaves its signal absent.
func (s *Service) gather(ctx context.Context, req models.QueryRequest, query models.Query, profile *models.FarmerProfile) signals {
	sig := signals{text: query.Text, language: query.Language}
	g, gctx := errgroup.WithContext(ctx)

	if req.ImageRef != "" && s.classifier != nil {
		crop := strings.ToLower(strings.TrimSpace(query.Crop))
		if crop == "" {
			crop = profile.LatestCrop()
		}
		g.Go(func() error {
			sig.image = s.classify(gctx, req.ImageRef, crop)
			return nil
		})
	}

	g.Go(func() error {
		if strings.TrimSpace(sig.text) == "" && req.AudioRef != "" && s.recognizer != nil {
			if tr := s.transcribe(gctx, req.AudioRef); tr != nil && strings.TrimSpace(tr.Text) != "" {
				sig.transcript = tr
				sig.text = tr.Text
				if sig.language == "" {
					sig.language = strings.ToLower(tr.Language)
				}
			}
		}
		if sig.language == "" {
			sig.language = DefaultLanguage
		}
		sig.nlu = s.pipeline.Understand(gctx, sig.text, sig.language)
		return nil
	})

	_ = g.Wait()
	return sig
}

func (s *Service) classify(ctx context.Context, imageRef, crop string) *models.ImageAnalysis {
	ctx, span := telemetry.Tracer.Start(ctx, "collaborator.classify")
	defer span.End()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	start := time.Now()
	analysis, err := s.classifier.Classify(ctx, imageRef, crop)
	s.recordCollaborator(ctx, "image_classifier", err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("image classification unavailable", zap.String("image_ref", imageRef), zap.Error(err))
		return nil
	}
	if analysis != nil && analysis.Severity == "" {
		analysis.Severity = models.SeverityFor(analysis.Disease, analysis.Confidence)
	}
	return analysis
}

func (s *Service) transcribe(ctx context.Context, audioRef string) *models.Transcript {
	ctx, span := telemetry.Tracer.Start(ctx, "collaborator.transcribe")
	defer span.End()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	start := time.Now()
	tr, err := s.recognizer.Transcribe(ctx, audioRef)
	s.recordCollaborator(ctx, "speech_recognizer", err == nil, time.Since(start))
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("transcription unavailable", zap.String("audio_ref", audioRef), zap.Error(err))
		return nil
	}
	return tr
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Service) recordCollaborator(ctx context.Context, name string, ok bool, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordCollaborator(name, ok, d.Seconds())
	}
	telemetry.RecordCollaborator(ctx, name, d)
}

func (s *Service) observe(ctx context.Context, sig signals, rec models.QueryRecord, esc *models.EscalationRecord, d time.Duration) {
	telemetry.RecordQuery(ctx, rec.Result.Branch, esc != nil)
	if s.metrics == nil {
		return
	}
	priority := ""
	if esc != nil {
		priority = esc.Priority
	}
	s.metrics.RecordQuery(rec.Status, rec.Result.Branch, priority, rec.Result.Confidence, d.Seconds())
	if sig.nlu.Error != "" {
		s.metrics.NluErrors.Inc()
	} else if sig.nlu.Intent != "" {
		s.metrics.IntentsClassified.WithLabelValues(string(sig.nlu.Intent)).Inc()
	}
	_, farmers := s.store.Counts()
	s.metrics.FarmersTotal.Set(float64(farmers))
}

func (s *Service) publish(ctx context.Context, eventType string, event *messages.EventMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, eventType, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.WithLabelValues(eventType).Inc()
	}
}

func (s *Service) notify(esc models.EscalationRecord) {
	s.mu.RLock()
	watchers := append([]func(models.EscalationRecord){}, s.watchers...)
	s.mu.RUnlock()
	for _, fn := range watchers {
		fn(esc)
	}
}

// SubmitFeedback attaches a rating to a processed query. Feedback for an
// unknown query id is reported with Recorded=false and changes nothing.
func (s *Service) SubmitFeedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResult, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return models.FeedbackResult{}, fmt.Errorf("%w: got %d", ErrInvalidRating, req.Rating)
	}

	entry, err := s.store.AttachFeedback(req.QueryID, models.FeedbackEntry{
		QueryID: req.QueryID,
		Rating:  req.Rating,
		Comment: req.Comment,
		Helpful: req.Helpful,
	})
	if errors.Is(err, learning.ErrUnknownQuery) {
		s.logger.Info("feedback for unknown query ignored", zap.String("query_id", req.QueryID))
		return models.FeedbackResult{
			QueryID:  req.QueryID,
			Recorded: false,
			Message:  "no query with that id",
		}, nil
	}
	if err != nil {
		return models.FeedbackResult{}, fmt.Errorf("failed to record feedback: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordFeedback(entry.Helpful)
	}
	s.publish(ctx, messages.EventFeedbackRecorded, messages.FeedbackRecorded(entry, s.instanceID))
	return models.FeedbackResult{
		FeedbackID: entry.ID,
		QueryID:    entry.QueryID,
		Recorded:   true,
		Message:    "feedback recorded",
	}, nil
}

// ListEscalations returns up to limit escalations, newest first.
// A limit of zero or less returns all of them.
func (s *Service) ListEscalations(limit int) []models.EscalationRecord {
	return s.store.Escalations(limit)
}

// Analytics returns the aggregate view over everything recorded so far
func (s *Service) Analytics() models.Analytics {
	return s.store.Analytics()
}

// Farmer returns the profile of a farmer who has asked at least one query
func (s *Service) Farmer(id string) (models.FarmerProfile, bool) {
	return s.store.Profile(id)
}

// Query returns a recorded query by id
func (s *Service) Query(id string) (models.QueryRecord, bool) {
	return s.store.Query(id)
}
