package models

import "time"

// Intent is the purpose category assigned to a farmer's query
type Intent string

const (
	IntentDiseaseDiagnosis Intent = "disease_diagnosis"
	IntentPestControl      Intent = "pest_control"
	IntentFertilizerAdvice Intent = "fertilizer_advice"
	IntentSchemeInfo       Intent = "scheme_info"
	IntentGeneralQuery     Intent = "general_query"
)

// UnknownCondition is the image classifier's "no finding" label
const UnknownCondition = "Unknown condition"

// Severity levels reported by image analysis
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Season names used for defaulting and calendar lookups
const (
	SeasonMonsoon     = "monsoon"
	SeasonPostMonsoon = "post-monsoon"
	SeasonPreMonsoon  = "pre-monsoon"
)

// Entities holds the single-valued slots extracted from query text
type Entities struct {
	Crop     string `json:"crop,omitempty"`
	Disease  string `json:"disease,omitempty"`
	Pest     string `json:"pest,omitempty"`
	Location string `json:"location,omitempty"`
	Season   string `json:"season,omitempty"`
}

// NluResult is the output of the understanding pipeline
type NluResult struct {
	Text           string   `json:"text"`
	TranslatedText string   `json:"translated_text,omitempty"`
	Entities       Entities `json:"entities"`
	Intent         Intent   `json:"intent,omitempty"`
	Confidence     float64  `json:"confidence"`
	Error          string   `json:"error,omitempty"` // "error: <message>" when understanding failed
}

// Usable reports whether the result carries a classified intent.
// Error-marked results are treated as "no entities, no intent".
func (r *NluResult) Usable() bool {
	return r != nil && r.Error == "" && r.Intent != ""
}

// ImageAnalysis is the image classifier's finding for an uploaded photo
type ImageAnalysis struct {
	Disease    string   `json:"disease"`
	Confidence float64  `json:"confidence"`
	Symptoms   []string `json:"symptoms"`
	Severity   string   `json:"severity"`
}

// HasFinding reports whether the classifier identified a condition
func (a *ImageAnalysis) HasFinding() bool {
	return a != nil && a.Disease != "" && a.Disease != UnknownCondition
}

// SeverityFor derives a severity from classifier confidence
func SeverityFor(disease string, confidence float64) string {
	if disease == "" || disease == UnknownCondition {
		return SeverityLow
	}
	if confidence > 0.8 {
		return SeverityHigh
	}
	return SeverityMedium
}

// Transcript is the speech recognizer's output for a voice note
type Transcript struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Weather is a snapshot of current conditions at a location
type Weather struct {
	Condition   string  `json:"condition"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Rainfall    string  `json:"rainfall"`
}

// CropCalendar is the planting/harvest window for a crop plus the next activity
type CropCalendar struct {
	Crop         string `json:"crop"`
	Planting     string `json:"planting"`
	Harvest      string `json:"harvest"`
	NextActivity string `json:"next_activity,omitempty"`
}

// AdviceContext is the resolved bundle used to generate advice for one query
type AdviceContext struct {
	FarmerID string        `json:"farmer_id"`
	Location string        `json:"location"`
	Crop     string        `json:"crop"`
	Season   string        `json:"season"`
	History  []QueryRecord `json:"history,omitempty"`
	Weather  *Weather      `json:"weather,omitempty"`
	Calendar *CropCalendar `json:"calendar,omitempty"`
}

// Advice branches
const (
	BranchImage        = "image"
	BranchIntent       = "intent"
	BranchInsufficient = "insufficient"
)

// AdviceResult is the generated recommendation for one query
type AdviceResult struct {
	Advice          string        `json:"advice"`
	Recommendations []string      `json:"recommendations"`
	Confidence      float64       `json:"confidence"`
	Escalate        bool          `json:"escalate"`
	Branch          string        `json:"branch"`
	Context         AdviceContext `json:"context"`
	GeneratedAt     time.Time     `json:"generated_at"`
}
