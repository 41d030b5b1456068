package models

// QueryRequest is the input of processQuery
type QueryRequest struct {
	Text     string `json:"text"`
	FarmerID string `json:"farmer_id,omitempty"`
	Crop     string `json:"crop,omitempty"`
	Location string `json:"location,omitempty"`
	Season   string `json:"season,omitempty"`
	Language string `json:"language,omitempty"`
	ImageRef string `json:"image_ref,omitempty"`
	AudioRef string `json:"audio_ref,omitempty"`
}

// ProcessingFlags records which signals were available while answering
type ProcessingFlags struct {
	Translated       bool `json:"translated"`
	VoiceTranscribed bool `json:"voice_transcribed"`
	ImageAnalyzed    bool `json:"image_analyzed"`
	WeatherAvailable bool `json:"weather_available"`
	NluError         bool `json:"nlu_error"`
}

// QueryResponse is the output of processQuery
type QueryResponse struct {
	QueryID         string          `json:"query_id"`
	Answer          string          `json:"answer"`
	Recommendations []string        `json:"recommendations"`
	Confidence      float64         `json:"confidence"`
	Status          string          `json:"status"`
	Priority        string          `json:"priority,omitempty"`
	EscalationID    string          `json:"escalation_id,omitempty"`
	Context         AdviceContext   `json:"context"`
	Nlu             *NluResult      `json:"nlu,omitempty"`
	Image           *ImageAnalysis  `json:"image,omitempty"`
	Flags           ProcessingFlags `json:"flags"`
}

// FeedbackRequest is the input of submitFeedback
type FeedbackRequest struct {
	QueryID string `json:"query_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
	Helpful bool   `json:"helpful"`
}

// FeedbackResult reports whether feedback was attached to a known query
type FeedbackResult struct {
	FeedbackID string `json:"feedback_id,omitempty"`
	QueryID    string `json:"query_id"`
	Recorded   bool   `json:"recorded"`
	Message    string `json:"message,omitempty"`
}

// CountEntry is a label with its frequency, used in analytics rankings
type CountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Analytics is the derived aggregate view over the learning log
type Analytics struct {
	TotalQueries         int            `json:"total_queries"`
	TotalFarmers         int            `json:"total_farmers"`
	TotalEscalations     int            `json:"total_escalations"`
	EscalationRate       float64        `json:"escalation_rate"`
	AverageConfidence    float64        `json:"average_confidence"`
	TopCrops             []CountEntry   `json:"top_crops"`
	TopEscalatedDiseases []CountEntry   `json:"top_escalated_diseases"`
	LanguageDistribution map[string]int `json:"language_distribution"`
	FeedbackCount        int            `json:"feedback_count"`
	HelpfulRate          float64        `json:"helpful_rate"`
	AverageRating        float64        `json:"average_rating"`
}
