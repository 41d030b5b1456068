package messages

import (
	"encoding/json"
	"testing"

	"github.com/jordanhubbard/krishi/pkg/models"
)

func TestQueryAnswered(t *testing.T) {
	rec := models.QueryRecord{
		ID:    "q-1",
		Query: models.Query{FarmerID: "f1"},
		Result: models.AdviceResult{
			Confidence: 0.85,
			Branch:     models.BranchIntent,
			Context:    models.AdviceContext{Crop: "rice"},
		},
	}
	msg := QueryAnswered(rec, "krishi-1")

	if msg.Type != EventQueryAnswered {
		t.Errorf("got type %q", msg.Type)
	}
	if msg.Source != "krishi-1" {
		t.Errorf("got source %q", msg.Source)
	}
	if msg.EntityID != "q-1" || msg.FarmerID != "f1" {
		t.Errorf("got entity %q farmer %q", msg.EntityID, msg.FarmerID)
	}
	if msg.Event.Data["crop"] != "rice" {
		t.Errorf("crop not carried: %v", msg.Event.Data)
	}
	if msg.Escalation != nil {
		t.Error("answered event should not carry an escalation")
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestQueryEscalated(t *testing.T) {
	esc := models.EscalationRecord{ID: "e-1", QueryID: "q-2", FarmerID: "f2", Priority: models.PriorityHigh}
	msg := QueryEscalated(esc, "krishi-1")

	if msg.Type != EventQueryEscalated {
		t.Errorf("got type %q", msg.Type)
	}
	if msg.EntityID != "q-2" {
		t.Errorf("got entity %q", msg.EntityID)
	}
	if msg.Escalation == nil || msg.Escalation.ID != "e-1" {
		t.Fatalf("escalation not carried: %+v", msg.Escalation)
	}
	if msg.Event.Data["priority"] != models.PriorityHigh {
		t.Errorf("got priority %v", msg.Event.Data["priority"])
	}

	// The escalation survives the wire
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	var decoded EventMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Escalation == nil || decoded.Escalation.FarmerID != "f2" {
		t.Errorf("escalation lost in transit: %+v", decoded.Escalation)
	}
}

func TestFeedbackRecorded(t *testing.T) {
	msg := FeedbackRecorded(models.FeedbackEntry{ID: "fb-1", QueryID: "q-1", Rating: 5, Helpful: true}, "krishi-1")

	if msg.Type != EventFeedbackRecorded {
		t.Errorf("got type %q", msg.Type)
	}
	if msg.Event.Category != "feedback" {
		t.Errorf("got category %q", msg.Event.Category)
	}
	if msg.Event.Data["rating"] != 5 {
		t.Errorf("got rating %v", msg.Event.Data["rating"])
	}
}
