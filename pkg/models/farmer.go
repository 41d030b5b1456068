package models

import "time"

// AnonymousFarmer is the farmer id used when a request carries none
const AnonymousFarmer = "anonymous"

// Query status values
const (
	StatusAnswered  = "answered"
	StatusEscalated = "escalated"
)

// Escalation priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Query is the originating request as stored in the query log
type Query struct {
	Text     string `json:"text"`
	FarmerID string `json:"farmer_id"`
	Crop     string `json:"crop,omitempty"`
	Location string `json:"location,omitempty"`
	Season   string `json:"season,omitempty"`
	Language string `json:"language"`
}

// FarmerProfile is the accumulated per-farmer state
type FarmerProfile struct {
	ID       string    `json:"id"`
	Location string    `json:"location,omitempty"`
	Crops    []string  `json:"crops"`
	QueryIDs []string  `json:"query_ids"`
	JoinedAt time.Time `json:"joined_at"`
}

// HasCrop reports whether the crop is already in the profile's crop set
func (p *FarmerProfile) HasCrop(crop string) bool {
	for _, c := range p.Crops {
		if c == crop {
			return true
		}
	}
	return false
}

// LatestCrop returns the most recently added crop, or ""
func (p *FarmerProfile) LatestCrop() string {
	if p == nil || len(p.Crops) == 0 {
		return ""
	}
	return p.Crops[len(p.Crops)-1]
}

// QueryRecord is one processed query in the learning log.
// Only Feedback may change after creation.
type QueryRecord struct {
	ID           string         `json:"id"`
	Seq          int64          `json:"seq"`
	Timestamp    time.Time      `json:"timestamp"`
	Query        Query          `json:"query"`
	Result       AdviceResult   `json:"result"`
	Status       string         `json:"status"`
	EscalationID string         `json:"escalation_id,omitempty"`
	Feedback     *FeedbackEntry `json:"feedback,omitempty"`
}

// EscalationRecord is a query queued for human expert review
type EscalationRecord struct {
	ID        string         `json:"id"`
	QueryID   string         `json:"query_id"`
	FarmerID  string         `json:"farmer_id"`
	Query     string         `json:"query"`
	Nlu       *NluResult     `json:"nlu,omitempty"`
	Image     *ImageAnalysis `json:"image,omitempty"`
	Result    AdviceResult   `json:"result"`
	Location  string         `json:"location,omitempty"`
	Crop      string         `json:"crop,omitempty"`
	Priority  string         `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
}

// DiseaseLabel is the disease the escalation is about, preferring the image finding
func (e *EscalationRecord) DiseaseLabel() string {
	if e.Image.HasFinding() {
		return e.Image.Disease
	}
	if e.Nlu != nil {
		return e.Nlu.Entities.Disease
	}
	return ""
}

// FeedbackEntry is a farmer's rating of an answer
type FeedbackEntry struct {
	ID        string    `json:"id"`
	QueryID   string    `json:"query_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	Helpful   bool      `json:"helpful"`
	Timestamp time.Time `json:"timestamp"`
}
