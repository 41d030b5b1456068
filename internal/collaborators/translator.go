package collaborators

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var defaultPhrases []byte

// PhraseTranslator substitutes known phrases from a per-language table.
// Longer phrases win over shorter ones that share a prefix.
type PhraseTranslator struct {
	replacers map[string]*strings.Replacer
}

// NewPhraseTranslator builds a translator from the compiled-in phrase table
func NewPhraseTranslator() (*PhraseTranslator, error) {
	return ParsePhraseTable(defaultPhrases)
}

// ParsePhraseTable builds a translator from YAML of the form
// {language: {phrase: english}}.
func ParsePhraseTable(data []byte) (*PhraseTranslator, error) {
	var table map[string]map[string]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse phrase table: %w", err)
	}

	t := &PhraseTranslator{replacers: make(map[string]*strings.Replacer, len(table))}
	for lang, phrases := range table {
		keys := make([]string, 0, len(phrases))
		for phrase := range phrases {
			if phrase != "" {
				keys = append(keys, phrase)
			}
		}
		// strings.Replacer prefers earlier pairs at the same position
		slices.SortFunc(keys, func(a, b string) int {
			if n := utf8.RuneCountInString(b) - utf8.RuneCountInString(a); n != 0 {
				return n
			}
			return strings.Compare(a, b)
		})
		pairs := make([]string, 0, 2*len(keys))
		for _, k := range keys {
			pairs = append(pairs, k, phrases[k])
		}
		t.replacers[strings.ToLower(lang)] = strings.NewReplacer(pairs...)
	}
	return t, nil
}

// Translate replaces every known phrase of sourceLanguage in text.
// Languages without a table return text unchanged.
func (t *PhraseTranslator) Translate(ctx context.Context, text, sourceLanguage string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r, ok := t.replacers[strings.ToLower(sourceLanguage)]
	if !ok {
		return text, nil
	}
	return r.Replace(text), nil
}
