package collaborators

import (
	"context"
	"strings"

	"github.com/jordanhubbard/krishi/internal/knowledge"
	"github.com/jordanhubbard/krishi/pkg/models"
)

const stubClassifierConfidence = 0.87

// StubClassifier reports the crop's first known disease for any photo.
// Unknown crops yield the no-finding sentinel.
type StubClassifier struct {
	kb *knowledge.Base
}

func NewStubClassifier(kb *knowledge.Base) *StubClassifier {
	return &StubClassifier{kb: kb}
}

func (c *StubClassifier) Classify(ctx context.Context, imageRef, crop string) (*models.ImageAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(imageRef) == "" {
		return nil, ErrNoImage
	}

	entry, ok := c.kb.Crop(crop)
	if !ok || len(entry.Diseases) == 0 {
		return &models.ImageAnalysis{
			Disease:    models.UnknownCondition,
			Confidence: 0.3,
			Symptoms:   []string{},
			Severity:   models.SeverityFor(models.UnknownCondition, 0.3),
		}, nil
	}

	disease := entry.Diseases[0]
	return &models.ImageAnalysis{
		Disease:    disease,
		Confidence: stubClassifierConfidence,
		Symptoms:   []string{"discoloured lesions on leaves", "reduced vigour"},
		Severity:   models.SeverityFor(disease, stubClassifierConfidence),
	}, nil
}

// FixedClassifier returns the same analysis (or error) for every photo
type FixedClassifier struct {
	Result *models.ImageAnalysis
	Err    error
}

func (c FixedClassifier) Classify(ctx context.Context, imageRef, crop string) (*models.ImageAnalysis, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Result == nil {
		return nil, nil
	}
	result := *c.Result
	result.Symptoms = append([]string(nil), c.Result.Symptoms...)
	if result.Severity == "" {
		result.Severity = models.SeverityFor(result.Disease, result.Confidence)
	}
	return &result, nil
}
