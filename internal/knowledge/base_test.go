package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	kb, err := Default()
	require.NoError(t, err)

	assert.Contains(t, kb.CropNames(), "banana")
	assert.Contains(t, kb.CropTerms(), "tomato")
	assert.NotEmpty(t, kb.DiseaseTerms())
	assert.NotEmpty(t, kb.PestTerms())
}

func TestTreatment(t *testing.T) {
	kb, err := Default()
	require.NoError(t, err)

	tests := []struct {
		name      string
		crop      string
		disease   string
		want      string
		wantExact bool
		wantOK    bool
	}{
		{"exact case-insensitive", "banana", "Leaf Spot", "Copper oxychloride 0.3% or Mancozeb 0.2%", true, true},
		{"crop case-insensitive", "BANANA", "leaf spot", "Copper oxychloride 0.3% or Mancozeb 0.2%", true, true},
		{"falls back to first treatment", "banana", "sigatoka", "Copper oxychloride 0.3% or Mancozeb 0.2%", false, true},
		{"tomato late blight", "tomato", "late blight", "Metalaxyl + Mancozeb at 2.5 g/litre", true, true},
		{"unknown crop", "durian", "leaf spot", "", false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, exact, ok := kb.Treatment(tc.crop, tc.disease)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantExact, exact)
			assert.Equal(t, tc.wantOK, ok)
		})
	}
}

func TestSchemes(t *testing.T) {
	kb, err := Default()
	require.NoError(t, err)

	schemes := kb.Schemes("Kerala")
	require.Len(t, schemes, 3)
	assert.Equal(t, "Krishi Bhavan Support", schemes[0].Name)
	assert.Equal(t, "Organic Farming Subsidy", schemes[1].Name)
	assert.Equal(t, "Crop Insurance", schemes[2].Name)

	assert.Empty(t, kb.Schemes("atlantis"))
}

func TestCalendar(t *testing.T) {
	kb, err := Default()
	require.NoError(t, err)

	cal := kb.Calendar("Rice", "monsoon")
	require.NotNil(t, cal)
	assert.Equal(t, "rice", cal.Crop)
	assert.NotEmpty(t, cal.Planting)
	assert.Contains(t, cal.NextActivity, "standing water")

	assert.Nil(t, kb.Calendar("durian", "monsoon"))
}

func TestVocabularyIsACopy(t *testing.T) {
	kb, err := Default()
	require.NoError(t, err)

	terms := kb.CropTerms()
	terms[0] = "mutated"
	assert.NotEqual(t, "mutated", kb.CropTerms()[0])
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("crops: []"))
	assert.ErrorIs(t, err, ErrNoCrops)

	_, err = Parse([]byte("crops:\n  - name: rice\n"))
	assert.ErrorIs(t, err, ErrEmptyVocab)

	dup := `
vocabulary:
  crops: [rice]
crops:
  - name: rice
  - name: Rice
`
	_, err = Parse([]byte(dup))
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = Parse([]byte("crops: [unterminated"))
	assert.Error(t, err)
}
