// Package knowledge holds the static crop and scheme reference data used by
// the advisory pipeline. A Base is loaded once and never mutated.
package knowledge

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/jordanhubbard/krishi/pkg/models"
	"gopkg.in/yaml.v3"
)

//go:embed knowledge.yaml
var defaultYAML []byte

var (
	ErrNoCrops      = errors.New("knowledge base has no crops")
	ErrEmptyVocab   = errors.New("knowledge base vocabulary is empty")
	ErrDuplicateKey = errors.New("duplicate knowledge base key")
)

// Treatment pairs a disease with its recommended treatment
type Treatment struct {
	Disease   string `yaml:"disease"`
	Treatment string `yaml:"treatment"`
}

// CropEntry is the reference data for one crop
type CropEntry struct {
	Name       string            `yaml:"name"`
	Diseases   []string          `yaml:"diseases"`
	Pests      []string          `yaml:"pests"`
	Planting   string            `yaml:"planting"`
	Harvest    string            `yaml:"harvest"`
	Treatments []Treatment       `yaml:"treatments"`
	Activities map[string]string `yaml:"activities"`
}

// Scheme is a government support programme available in a region
type Scheme struct {
	Name        string `yaml:"name"`
	Eligibility string `yaml:"eligibility"`
	Benefit     string `yaml:"benefit"`
}

type regionSchemes struct {
	Region  string   `yaml:"region"`
	Schemes []Scheme `yaml:"schemes"`
}

type vocabulary struct {
	Crops    []string `yaml:"crops"`
	Diseases []string `yaml:"diseases"`
	Pests    []string `yaml:"pests"`
}

type document struct {
	Vocabulary vocabulary      `yaml:"vocabulary"`
	Crops      []CropEntry     `yaml:"crops"`
	Schemes    []regionSchemes `yaml:"schemes"`
}

// Base is the immutable knowledge base
type Base struct {
	vocab   vocabulary
	crops   map[string]*CropEntry
	schemes map[string][]Scheme
}

// Default loads the knowledge base compiled into the binary
func Default() (*Base, error) {
	return Parse(defaultYAML)
}

// LoadFile loads a knowledge base from a YAML file on disk
func LoadFile(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Base from YAML
func Parse(data []byte) (*Base, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	if len(doc.Crops) == 0 {
		return nil, ErrNoCrops
	}
	if len(doc.Vocabulary.Crops) == 0 {
		return nil, ErrEmptyVocab
	}

	b := &Base{
		vocab: vocabulary{
			Crops:    lowerAll(doc.Vocabulary.Crops),
			Diseases: lowerAll(doc.Vocabulary.Diseases),
			Pests:    lowerAll(doc.Vocabulary.Pests),
		},
		crops:   make(map[string]*CropEntry, len(doc.Crops)),
		schemes: make(map[string][]Scheme, len(doc.Schemes)),
	}

	for i := range doc.Crops {
		entry := doc.Crops[i]
		key := normalize(entry.Name)
		if _, dup := b.crops[key]; dup {
			return nil, fmt.Errorf("%w: crop %q", ErrDuplicateKey, entry.Name)
		}
		entry.Name = key
		b.crops[key] = &entry
	}
	for _, rs := range doc.Schemes {
		key := normalize(rs.Region)
		if _, dup := b.schemes[key]; dup {
			return nil, fmt.Errorf("%w: region %q", ErrDuplicateKey, rs.Region)
		}
		b.schemes[key] = rs.Schemes
	}
	return b, nil
}

// CropTerms returns the ordered crop vocabulary
func (b *Base) CropTerms() []string { return slices.Clone(b.vocab.Crops) }

// DiseaseTerms returns the ordered disease vocabulary
func (b *Base) DiseaseTerms() []string { return slices.Clone(b.vocab.Diseases) }

// PestTerms returns the ordered pest vocabulary
func (b *Base) PestTerms() []string { return slices.Clone(b.vocab.Pests) }

// Crop looks up a crop by name, case-insensitively
func (b *Base) Crop(name string) (CropEntry, bool) {
	entry, ok := b.crops[normalize(name)]
	if !ok {
		return CropEntry{}, false
	}
	return *entry, true
}

// CropNames returns the known crop names in sorted order
func (b *Base) CropNames() []string {
	names := make([]string, 0, len(b.crops))
	for name := range b.crops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Treatment returns the treatment for a crop's disease. An exact
// case-insensitive disease match wins; otherwise the crop's first listed
// treatment is returned. ok is false only when the crop is unknown or has no
// treatments.
func (b *Base) Treatment(crop, disease string) (treatment string, exact bool, ok bool) {
	entry, found := b.crops[normalize(crop)]
	if !found || len(entry.Treatments) == 0 {
		return "", false, false
	}
	want := normalize(disease)
	for _, t := range entry.Treatments {
		if normalize(t.Disease) == want {
			return t.Treatment, true, true
		}
	}
	return entry.Treatments[0].Treatment, false, true
}

// Schemes returns the schemes for a region, case-insensitively.
// Unknown regions yield an empty list.
func (b *Base) Schemes(region string) []Scheme {
	return slices.Clone(b.schemes[normalize(region)])
}

// Calendar returns the crop calendar with the activity for the given season,
// or nil when the crop is unknown.
func (b *Base) Calendar(crop, season string) *models.CropCalendar {
	entry, ok := b.crops[normalize(crop)]
	if !ok {
		return nil
	}
	return &models.CropCalendar{
		Crop:         entry.Name,
		Planting:     entry.Planting,
		Harvest:      entry.Harvest,
		NextActivity: entry.Activities[season],
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = normalize(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
