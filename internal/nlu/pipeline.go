// Package nlu extracts entities and classifies the intent of farmer queries
// using the knowledge base vocabularies and an ordered keyword table.
package nlu

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jordanhubbard/krishi/internal/collaborators"
	"github.com/jordanhubbard/krishi/internal/knowledge"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// Confidence is reported for every successfully understood query.
// It is not derived from the text.
const Confidence = 0.85

// LanguageMalayalam is the only source language routed through translation
const LanguageMalayalam = "ml"

//go:embed intents.yaml
var defaultIntents []byte

var ErrNoIntents = errors.New("intent table is empty")

type intentRule struct {
	Name     models.Intent `yaml:"name"`
	Keywords []string      `yaml:"keywords"`
}

// Pipeline turns raw query text into an NluResult
type Pipeline struct {
	crops      []string
	diseases   []string
	pests      []string
	rules      []intentRule
	translator collaborators.Translator
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a pipeline over the knowledge base vocabularies. translator may
// be nil, in which case Malayalam text is matched untranslated.
func New(kb *knowledge.Base, translator collaborators.Translator, timeout time.Duration, logger *zap.Logger) (*Pipeline, error) {
	rules, err := parseIntentRules(defaultIntents)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		crops:      kb.CropTerms(),
		diseases:   kb.DiseaseTerms(),
		pests:      kb.PestTerms(),
		rules:      rules,
		translator: translator,
		timeout:    timeout,
		logger:     logger.Named("nlu"),
	}, nil
}

func parseIntentRules(data []byte) ([]intentRule, error) {
	var doc struct {
		Intents []intentRule `yaml:"intents"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse intent table: %w", err)
	}
	if len(doc.Intents) == 0 {
		return nil, ErrNoIntents
	}
	for i := range doc.Intents {
		for j, kw := range doc.Intents[i].Keywords {
			doc.Intents[i].Keywords[j] = normalize(kw)
		}
	}
	return doc.Intents, nil
}

// Understand extracts entities and the intent from text. It never fails:
// empty input or an internal fault produces a result whose Error field is
// set and which carries no entities and no intent.
func (p *Pipeline) Understand(ctx context.Context, text, language string) (result models.NluResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("understanding failed", zap.Any("panic", r))
			result = failed(text, fmt.Sprint(r))
		}
	}()

	normalized := normalize(text)
	if normalized == "" {
		return failed(text, "empty query text")
	}

	result = models.NluResult{Text: text}
	if strings.EqualFold(strings.TrimSpace(language), LanguageMalayalam) && p.translator != nil {
		if translated, ok := p.translate(ctx, normalized); ok {
			result.TranslatedText = translated
			normalized = normalize(translated)
		}
	}

	result.Entities = models.Entities{
		Crop:    lastMatch(normalized, p.crops),
		Disease: lastMatch(normalized, p.diseases),
		Pest:    lastMatch(normalized, p.pests),
	}
	result.Intent = p.classify(normalized)
	result.Confidence = Confidence
	return result
}

func (p *Pipeline) translate(ctx context.Context, text string) (string, bool) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	translated, err := p.translator.Translate(ctx, text, LanguageMalayalam)
	if err != nil {
		p.logger.Warn("translation unavailable, using original text", zap.Error(err))
		return "", false
	}
	return translated, true
}

// classify returns the first intent with a keyword contained in text
func (p *Pipeline) classify(text string) models.Intent {
	for _, rule := range p.rules {
		for _, kw := range rule.Keywords {
			if kw != "" && strings.Contains(text, kw) {
				return rule.Name
			}
		}
	}
	return models.IntentGeneralQuery
}

// lastMatch returns the last vocabulary term, in vocabulary order, contained
// in text. Earlier matches are overwritten, so only one term fills the slot.
func lastMatch(text string, vocabulary []string) string {
	match := ""
	for _, term := range vocabulary {
		if strings.Contains(text, term) {
			match = term
		}
	}
	return match
}

func failed(text, msg string) models.NluResult {
	return models.NluResult{
		Text:  text,
		Error: "error: " + msg,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
