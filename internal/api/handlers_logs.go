package api

import (
	"net/http"

	"github.com/jordanhubbard/krishi/internal/logging"
)

// handleLogs returns recent log entries
// GET /api/v1/logs?limit=100&level=warn
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.logManager == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Log buffer not available")
		return
	}

	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	level := r.URL.Query().Get("level")
	switch level {
	case "", logging.LogLevelDebug, logging.LogLevelInfo, logging.LogLevelWarn, logging.LogLevelError:
	default:
		s.respondError(w, http.StatusBadRequest, "level must be one of debug, info, warn, error")
		return
	}

	logs := s.logManager.Recent(limit, level)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}
