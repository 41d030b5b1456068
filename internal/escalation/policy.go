// Package escalation decides whether advice is answered automatically or
// routed to a human expert.
package escalation

import (
	"time"

	"github.com/google/uuid"

	"github.com/jordanhubbard/krishi/pkg/models"
)

const (
	// Threshold is the confidence below which a query is escalated
	Threshold = 0.6
	// HighPriorityThreshold is the confidence below which an escalation is high priority
	HighPriorityThreshold = 0.4
)

// NeedsReview reports whether advice at this confidence must be escalated
func NeedsReview(confidence float64) bool {
	return confidence < Threshold
}

// PriorityFor returns the escalation priority for a confidence
func PriorityFor(confidence float64) string {
	if confidence < HighPriorityThreshold {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}

// Decision is the outcome of applying the policy to one query
type Decision struct {
	Status string
	Record *models.EscalationRecord
}

// Escalated reports whether the decision carries an escalation
func (d Decision) Escalated() bool {
	return d.Record != nil
}

// Policy applies the confidence cutoffs
type Policy struct {
	now func() time.Time
}

// NewPolicy creates a policy stamping records with now
func NewPolicy(now func() time.Time) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{now: now}
}

// Decide returns "answered" or an escalation record for the advice. The
// record's QueryID is left for the caller to link.
func (p *Policy) Decide(query models.Query, nlu *models.NluResult, image *models.ImageAnalysis, advice models.AdviceResult) Decision {
	if !NeedsReview(advice.Confidence) {
		return Decision{Status: models.StatusAnswered}
	}

	return Decision{
		Status: models.StatusEscalated,
		Record: &models.EscalationRecord{
			ID:        uuid.New().String(),
			FarmerID:  query.FarmerID,
			Query:     query.Text,
			Nlu:       nlu,
			Image:     image,
			Result:    advice,
			Location:  advice.Context.Location,
			Crop:      advice.Context.Crop,
			Priority:  PriorityFor(advice.Confidence),
			CreatedAt: p.now(),
		},
	}
}
