package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/internal/advisor"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// DefaultEscalationLimit is used when GET /api/v1/escalations has no limit
const DefaultEscalationLimit = 50

// handleQuery handles POST /api/v1/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.QueryRequest
	if err := s.parseJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.advisor.ProcessQuery(r.Context(), req)
	if err != nil {
		s.logger.Warn("query failed", zap.String("farmer_id", req.FarmerID), zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleFeedback handles POST /api/v1/feedback
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.FeedbackRequest
	if err := s.parseJSON(w, r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.QueryID == "" {
		s.respondError(w, http.StatusBadRequest, "query_id is required")
		return
	}

	result, err := s.advisor.SubmitFeedback(r.Context(), req)
	switch {
	case errors.Is(err, advisor.ErrInvalidRating):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Unknown query ids are a no-op, not an error
	status := http.StatusCreated
	if !result.Recorded {
		status = http.StatusOK
	}
	s.respondJSON(w, status, result)
}

// handleEscalations handles GET /api/v1/escalations?limit=N
func (s *Server) handleEscalations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, err := queryInt(r, "limit", DefaultEscalationLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	escalations := s.advisor.ListEscalations(limit)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"escalations": escalations,
		"count":       len(escalations),
	})
}

// handleAnalytics handles GET /api/v1/analytics
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.respondJSON(w, http.StatusOK, s.advisor.Analytics())
}

// handleFarmer handles GET /api/v1/farmers/{id}
func (s *Server) handleFarmer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id := s.extractID(r.URL.Path, "/api/v1/farmers")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, "farmer id is required")
		return
	}

	profile, ok := s.advisor.Farmer(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "farmer not found")
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}
