// Package collaborators defines the external signal providers the advisory
// pipeline consults (translation, image classification, speech recognition,
// weather, time) together with stub and real implementations.
package collaborators

import (
	"context"
	"errors"
	"time"

	"github.com/jordanhubbard/krishi/pkg/models"
)

var (
	ErrNoImage         = errors.New("no image reference")
	ErrNoAudio         = errors.New("no audio reference")
	ErrUnknownLocation = errors.New("unknown location")
)

// Translator converts text from a source language to English.
// Unknown phrases pass through unchanged.
type Translator interface {
	Translate(ctx context.Context, text, sourceLanguage string) (string, error)
}

// ImageClassifier diagnoses a crop photo. A Disease of
// models.UnknownCondition means no finding.
type ImageClassifier interface {
	Classify(ctx context.Context, imageRef, crop string) (*models.ImageAnalysis, error)
}

// SpeechRecognizer transcribes a voice note
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, audioRef string) (*models.Transcript, error)
}

// WeatherProvider reports current conditions for a location.
// A nil result with a nil error means no data.
type WeatherProvider interface {
	CurrentConditions(ctx context.Context, location string) (*models.Weather, error)
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
