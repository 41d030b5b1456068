package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_Shared(t *testing.T) {
	if NewMetrics() != NewMetrics() {
		t.Fatal("NewMetrics should return the shared instance")
	}
}

func TestRecordQuery(t *testing.T) {
	m := NewMetrics()
	answered := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("answered", "intent"))
	escalated := testutil.ToFloat64(m.EscalationsTotal.WithLabelValues("high"))

	m.RecordQuery("answered", "intent", "", 0.85, 0.01)
	m.RecordQuery("escalated", "insufficient", "high", 0.3, 0.02)

	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues("answered", "intent")); got != answered+1 {
		t.Errorf("answered queries = %v, want %v", got, answered+1)
	}
	if got := testutil.ToFloat64(m.EscalationsTotal.WithLabelValues("high")); got != escalated+1 {
		t.Errorf("high escalations = %v, want %v", got, escalated+1)
	}
}

func TestRecordCollaborator(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.CollaboratorCalls.WithLabelValues("weather", "false"))
	m.RecordCollaborator("weather", false, 0.5)
	if got := testutil.ToFloat64(m.CollaboratorCalls.WithLabelValues("weather", "false")); got != before+1 {
		t.Errorf("failed weather calls = %v, want %v", got, before+1)
	}
}

func TestRecordFeedback(t *testing.T) {
	m := NewMetrics()
	before := testutil.ToFloat64(m.FeedbackTotal.WithLabelValues("true"))
	m.RecordFeedback(true)
	if got := testutil.ToFloat64(m.FeedbackTotal.WithLabelValues("true")); got != before+1 {
		t.Errorf("helpful feedback = %v, want %v", got, before+1)
	}
}
