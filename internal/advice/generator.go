// Package advice resolves the context for a farmer query and generates the
// recommendation returned to the farmer.
package advice

import (
	"fmt"
	"strings"
	"time"

	"github.com/jordanhubbard/krishi/internal/collaborators"
	"github.com/jordanhubbard/krishi/internal/escalation"
	"github.com/jordanhubbard/krishi/internal/knowledge"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// InsufficientConfidence is reported when neither an image finding nor an
// intent is available.
const InsufficientConfidence = 0.3

// Advice phrases that callers and tests rely on
const (
	UrgencyPrefix     = "URGENT: immediate action is needed."
	SafetyInstruction = "Spray during early morning or late evening hours and ensure complete coverage of both leaf surfaces."
	ConsultOfficer    = "Please consult a local agricultural officer for an on-field inspection."
	AskForPhoto       = "please upload a clear photo of the affected leaves, stems or fruit"
	InsufficientInput = "We could not understand your query. Please describe the problem in more detail or upload a photo of the affected crop."
)

// Generator produces advice from NLU output, an optional image finding and
// the resolved context. Output depends only on its inputs and the clock.
type Generator struct {
	kb  *knowledge.Base
	now func() time.Time
}

// NewGenerator creates an advice generator
func NewGenerator(kb *knowledge.Base, now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	return &Generator{kb: kb, now: now}
}

// Generate dispatches to image advice, intent advice or the insufficient
// information prompt, in that order, and appends contextual recommendations.
func (g *Generator) Generate(nlu *models.NluResult, image *models.ImageAnalysis, actx models.AdviceContext) models.AdviceResult {
	var (
		text       string
		recs       []string
		confidence float64
		branch     string
	)

	switch {
	case image.HasFinding():
		text, recs = g.imageAdvice(image, actx)
		confidence, branch = image.Confidence, models.BranchImage
	case nlu.Usable():
		text, recs = g.intentAdvice(nlu, actx)
		confidence, branch = nlu.Confidence, models.BranchIntent
	default:
		text = InsufficientInput
		recs = []string{"Mention your crop and the symptoms you see", "Attach a photo or a voice note if possible"}
		confidence, branch = InsufficientConfidence, models.BranchInsufficient
	}

	confidence = clamp(confidence)
	return models.AdviceResult{
		Advice:          text,
		Recommendations: append(recs, contextual(actx)...),
		Confidence:      confidence,
		Escalate:        escalation.NeedsReview(confidence),
		Branch:          branch,
		Context:         actx,
		GeneratedAt:     g.now(),
	}
}

func (g *Generator) imageAdvice(image *models.ImageAnalysis, actx models.AdviceContext) (string, []string) {
	crop := actx.Crop
	treatment, _, ok := g.kb.Treatment(crop, image.Disease)
	if !ok {
		text := fmt.Sprintf("The photo suggests %s on your %s, but we have no treatment guidance for this crop. %s",
			image.Disease, orDefault(crop, "crop"), ConsultOfficer)
		return text, []string{"Isolate affected plants until they are inspected"}
	}

	severity := image.Severity
	if severity == "" {
		severity = models.SeverityFor(image.Disease, image.Confidence)
	}

	var b strings.Builder
	if severity == models.SeverityHigh {
		b.WriteString(UrgencyPrefix)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "The photo shows signs of %s on your %s (%.0f%% confidence). Recommended treatment: %s. %s",
		image.Disease, crop, image.Confidence*100, treatment, SafetyInstruction)
	if actx.Season != "" {
		b.WriteString(" ")
		b.WriteString(waterCaveat(actx.Season))
	}

	recs := []string{"Remove and destroy badly affected plant parts"}
	if len(image.Symptoms) > 0 {
		recs = append(recs, "Observed symptoms: "+strings.Join(image.Symptoms, ", "))
	}
	recs = append(recs, "Re-inspect the crop 7 days after treatment")
	return b.String(), recs
}

func waterCaveat(season string) string {
	if season == models.SeasonMonsoon {
		return "Keep field drainage channels clear so water does not stagnate around the plants."
	}
	return fmt.Sprintf("Irrigate regularly during the %s season and avoid water stress while the crop recovers.", season)
}

func (g *Generator) intentAdvice(nlu *models.NluResult, actx models.AdviceContext) (string, []string) {
	crop := orDefault(actx.Crop, "crop")

	switch nlu.Intent {
	case models.IntentDiseaseDiagnosis:
		where := ""
		if actx.Location != "" {
			where = " in " + actx.Location
		}
		recs := []string{"Photograph both sides of an affected leaf in daylight", "Note when the symptoms first appeared"}
		if d := nlu.Entities.Disease; d != "" {
			recs = append(recs, fmt.Sprintf("Symptoms resembling %s were mentioned; treatment will be confirmed after the photo is reviewed", d))
		}
		return fmt.Sprintf("To diagnose the problem with your %s%s, %s.", crop, where, AskForPhoto), recs

	case models.IntentPestControl:
		ipm := "Follow an integrated pest management (IPM) protocol: spray neem oil at 5 ml/litre, install yellow sticky traps, and encourage biological control with natural predators such as ladybird beetles."
		if entry, ok := g.kb.Crop(actx.Crop); ok && len(entry.Pests) > 0 {
			return fmt.Sprintf("Common pests of %s include %s. %s", entry.Name, strings.Join(entry.Pests, ", "), ipm),
				[]string{"Scout the field twice a week", "Use chemical pesticides only when damage crosses the economic threshold"}
		}
		return ipm, []string{"Tell us your crop for pest-specific advice"}

	case models.IntentFertilizerAdvice:
		season := "current"
		if actx.Season != "" {
			season = actx.Season
		}
		return fmt.Sprintf("Apply a balanced NPK fertilizer to your %s suited to the %s season, and get a soil test at your nearest soil testing lab to fine-tune the dose.", crop, season),
			[]string{"Split nitrogen into two or three doses", "Add organic manure or compost to improve soil health"}

	case models.IntentSchemeInfo:
		schemes := g.kb.Schemes(actx.Location)
		if len(schemes) == 0 {
			return "We could not find schemes for your region. Contact your local agriculture office for current programmes.", []string{}
		}
		names := make([]string, 0, len(schemes))
		recs := make([]string, 0, len(schemes))
		for _, s := range schemes {
			names = append(names, s.Name)
			recs = append(recs, fmt.Sprintf("%s: %s (eligibility: %s)", s.Name, s.Benefit, s.Eligibility))
		}
		return fmt.Sprintf("Schemes available in %s: %s.", actx.Location, strings.Join(names, ", ")), recs

	default:
		return fmt.Sprintf("Please share more details about your %s, such as the symptoms you see, the affected area and recent weather, so we can advise you better.", crop),
			[]string{"Attach a photo of the problem if possible"}
	}
}

// contextual returns the weather, season and calendar recommendations, in that order
func contextual(actx models.AdviceContext) []string {
	var recs []string
	if actx.Weather != nil && strings.EqualFold(actx.Weather.Condition, collaborators.ConditionRainy) {
		recs = append(recs, "Rain is expected: ensure good field drainage and postpone spraying until dry weather")
	}
	if actx.Season == models.SeasonMonsoon {
		recs = append(recs, "Monsoon season: inspect the crop regularly for fungal disease")
	}
	if actx.Calendar != nil && actx.Calendar.NextActivity != "" {
		recs = append(recs, fmt.Sprintf("Next activity for %s: %s", actx.Calendar.Crop, actx.Calendar.NextActivity))
	}
	return recs
}

func clamp(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
