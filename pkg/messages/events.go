package messages

import (
	"time"

	"github.com/jordanhubbard/krishi/pkg/models"
)

// Event types published on krishi.events.<type>
const (
	EventQueryAnswered    = "query.answered"
	EventQueryEscalated   = "query.escalated"
	EventFeedbackRecorded = "feedback.recorded"
)

// EventMessage represents a domain event sent via NATS
type EventMessage struct {
	Type       string                   `json:"type"`   // "query.answered", "query.escalated", "feedback.recorded"
	Source     string                   `json:"source"` // Instance that generated the event
	EntityID   string                   `json:"entity_id,omitempty"`
	FarmerID   string                   `json:"farmer_id,omitempty"`
	Event      EventData                `json:"event"`
	Escalation *models.EscalationRecord `json:"escalation,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
	Metadata   map[string]interface{}   `json:"metadata,omitempty"`
}

// EventData contains the event-specific information
type EventData struct {
	Action      string                 `json:"action"`   // "answered", "escalated", "recorded"
	Category    string                 `json:"category"` // "query", "feedback"
	Description string                 `json:"description,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// QueryAnswered creates a query.answered event
func QueryAnswered(rec models.QueryRecord, source string) *EventMessage {
	return &EventMessage{
		Type:     EventQueryAnswered,
		Source:   source,
		EntityID: rec.ID,
		FarmerID: rec.Query.FarmerID,
		Event: EventData{
			Action:   "answered",
			Category: "query",
			Data: map[string]interface{}{
				"crop":       rec.Result.Context.Crop,
				"branch":     rec.Result.Branch,
				"confidence": rec.Result.Confidence,
			},
		},
		Timestamp: time.Now(),
	}
}

// QueryEscalated creates a query.escalated event carrying the escalation record
func QueryEscalated(esc models.EscalationRecord, source string) *EventMessage {
	return &EventMessage{
		Type:     EventQueryEscalated,
		Source:   source,
		EntityID: esc.QueryID,
		FarmerID: esc.FarmerID,
		Event: EventData{
			Action:      "escalated",
			Category:    "query",
			Description: "queued for expert review",
			Data: map[string]interface{}{
				"escalation_id": esc.ID,
				"priority":      esc.Priority,
				"confidence":    esc.Result.Confidence,
			},
		},
		Escalation: &esc,
		Timestamp:  time.Now(),
	}
}

// FeedbackRecorded creates a feedback.recorded event
func FeedbackRecorded(entry models.FeedbackEntry, source string) *EventMessage {
	return &EventMessage{
		Type:     EventFeedbackRecorded,
		Source:   source,
		EntityID: entry.QueryID,
		Event: EventData{
			Action:   "recorded",
			Category: "feedback",
			Data: map[string]interface{}{
				"feedback_id": entry.ID,
				"rating":      entry.Rating,
				"helpful":     entry.Helpful,
			},
		},
		Timestamp: time.Now(),
	}
}
