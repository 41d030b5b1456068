package collaborators

import (
	"context"
	"strings"

	"github.com/jordanhubbard/krishi/pkg/models"
)

// StubRecognizer returns a fixed transcript for any voice note
type StubRecognizer struct {
	Transcript models.Transcript
	Err        error
}

// NewStubRecognizer returns a recognizer with a canned English transcript
func NewStubRecognizer() *StubRecognizer {
	return &StubRecognizer{
		Transcript: models.Transcript{
			Text:       "my rice leaves are turning yellow with brown spots",
			Language:   "en",
			Confidence: 0.92,
		},
	}
}

func (r *StubRecognizer) Transcribe(ctx context.Context, audioRef string) (*models.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(audioRef) == "" {
		return nil, ErrNoAudio
	}
	if r.Err != nil {
		return nil, r.Err
	}
	t := r.Transcript
	return &t, nil
}
