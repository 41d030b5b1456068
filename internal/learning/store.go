// Package learning keeps the query log, farmer profiles, escalations and
// feedback for the lifetime of the process and derives analytics from them.
package learning

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jordanhubbard/krishi/pkg/models"
)

// TopN is the length of the analytics rankings
const TopN = 5

// Language buckets reported by Analytics
var languageBuckets = []string{"en", "ml", "hi", "other"}

var ErrUnknownQuery = errors.New("unknown query id")

// Store holds all learning state. Every mutation happens under one lock, so a
// query, its farmer profile update and its escalation become visible together.
type Store struct {
	mu          sync.RWMutex
	seq         int64
	queries     []*models.QueryRecord
	byID        map[string]*models.QueryRecord
	farmers     map[string]*models.FarmerProfile
	escalations []models.EscalationRecord
	feedback    []models.FeedbackEntry
	now         func() time.Time
}

// NewStore creates an empty store stamping records with now
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		byID:    make(map[string]*models.QueryRecord),
		farmers: make(map[string]*models.FarmerProfile),
		now:     now,
	}
}

// Record appends a query record, upserts the farmer profile and appends the
// escalation (if any) linked to the new query id, as one step.
func (s *Store) Record(query models.Query, result models.AdviceResult, esc *models.EscalationRecord) models.QueryRecord {
	if strings.TrimSpace(query.FarmerID) == "" {
		query.FarmerID = models.AnonymousFarmer
	}
	crop := strings.ToLower(strings.TrimSpace(query.Crop))

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.seq++
	rec := &models.QueryRecord{
		ID:        uuid.New().String(),
		Seq:       s.seq,
		Timestamp: now,
		Query:     query,
		Result:    result,
		Status:    models.StatusAnswered,
	}

	if esc != nil {
		linked := *esc
		linked.QueryID = rec.ID
		if linked.FarmerID == "" {
			linked.FarmerID = query.FarmerID
		}
		rec.Status = models.StatusEscalated
		rec.EscalationID = linked.ID
		s.escalations = append(s.escalations, linked)
	}

	s.queries = append(s.queries, rec)
	s.byID[rec.ID] = rec

	profile, ok := s.farmers[query.FarmerID]
	if !ok {
		profile = &models.FarmerProfile{
			ID:       query.FarmerID,
			Location: query.Location,
			Crops:    []string{},
			JoinedAt: now,
		}
		s.farmers[query.FarmerID] = profile
	}
	if profile.Location == "" {
		profile.Location = query.Location
	}
	profile.QueryIDs = append(profile.QueryIDs, rec.ID)
	if crop != "" && !profile.HasCrop(crop) {
		profile.Crops = append(profile.Crops, crop)
	}

	return copyRecord(rec)
}

// AttachFeedback sets the feedback of a known query and appends it to the
// feedback log. Unknown ids return ErrUnknownQuery and change nothing.
func (s *Store) AttachFeedback(queryID string, entry models.FeedbackEntry) (models.FeedbackEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[queryID]
	if !ok {
		return models.FeedbackEntry{}, ErrUnknownQuery
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.QueryID = queryID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	fb := entry
	rec.Feedback = &fb
	s.feedback = append(s.feedback, entry)
	return entry, nil
}

// Query returns a copy of the record with the given id
func (s *Store) Query(id string) (models.QueryRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return models.QueryRecord{}, false
	}
	return copyRecord(rec), true
}

// Profile returns a copy of the farmer's profile
func (s *Store) Profile(farmerID string) (models.FarmerProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.farmers[farmerID]
	if !ok {
		return models.FarmerProfile{}, false
	}
	return copyProfile(p), true
}

// RecentQueries returns up to n of the farmer's most recent records, oldest first
func (s *Store) RecentQueries(farmerID string, n int) []models.QueryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.farmers[farmerID]
	if !ok || n <= 0 {
		return nil
	}
	ids := p.QueryIDs
	if len(ids) > n {
		ids = ids[len(ids)-n:]
	}
	out := make([]models.QueryRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyRecord(s.byID[id]))
	}
	return out
}

// Escalations returns up to limit escalations, newest first. limit <= 0 returns all.
func (s *Store) Escalations(limit int) []models.EscalationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.escalations)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.EscalationRecord, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.escalations[i])
	}
	return out
}

// Feedback returns a copy of the feedback log in arrival order
func (s *Store) Feedback() []models.FeedbackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.feedback)
}

// Counts returns the number of queries and farmers
func (s *Store) Counts() (queries, farmers int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queries), len(s.farmers)
}

// Analytics derives aggregate statistics. Rates and averages are 0 when
// there is nothing to divide by.
func (s *Store) Analytics() models.Analytics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := models.Analytics{
		TotalQueries:         len(s.queries),
		TotalFarmers:         len(s.farmers),
		TotalEscalations:     len(s.escalations),
		LanguageDistribution: make(map[string]int, len(languageBuckets)),
		FeedbackCount:        len(s.feedback),
	}
	for _, b := range languageBuckets {
		a.LanguageDistribution[b] = 0
	}

	if n := len(s.queries); n > 0 {
		var total float64
		for _, q := range s.queries {
			total += q.Result.Confidence
			a.LanguageDistribution[languageBucket(q.Query.Language)]++
		}
		a.AverageConfidence = total / float64(n)
		a.EscalationRate = float64(len(s.escalations)) / float64(n)
	}

	crops := make(map[string]int)
	for _, p := range s.farmers {
		for _, c := range p.Crops {
			crops[c]++
		}
	}
	a.TopCrops = topN(crops, TopN)

	diseases := make(map[string]int)
	for i := range s.escalations {
		if label := strings.ToLower(strings.TrimSpace(s.escalations[i].DiseaseLabel())); label != "" {
			diseases[label]++
		}
	}
	a.TopEscalatedDiseases = topN(diseases, TopN)

	if n := len(s.feedback); n > 0 {
		helpful, rating := 0, 0
		for _, f := range s.feedback {
			if f.Helpful {
				helpful++
			}
			rating += f.Rating
		}
		a.HelpfulRate = float64(helpful) / float64(n)
		a.AverageRating = float64(rating) / float64(n)
	}

	return a
}

func languageBucket(lang string) string {
	switch l := strings.ToLower(strings.TrimSpace(lang)); l {
	case "en", "ml", "hi":
		return l
	case "":
		return "en"
	default:
		return "other"
	}
}

// topN ranks counts descending, breaking ties by name ascending
func topN(counts map[string]int, n int) []models.CountEntry {
	entries := make([]models.CountEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, models.CountEntry{Name: name, Count: count})
	}
	slices.SortFunc(entries, func(a, b models.CountEntry) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func copyRecord(rec *models.QueryRecord) models.QueryRecord {
	out := *rec
	if rec.Feedback != nil {
		fb := *rec.Feedback
		out.Feedback = &fb
	}
	out.Result.Recommendations = slices.Clone(rec.Result.Recommendations)
	return out
}

func copyProfile(p *models.FarmerProfile) models.FarmerProfile {
	out := *p
	out.Crops = slices.Clone(p.Crops)
	out.QueryIDs = slices.Clone(p.QueryIDs)
	return out
}
