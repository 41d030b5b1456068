package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status       string               `json:"status"` // "healthy", "degraded"
	Timestamp    time.Time            `json:"timestamp"`
	InstanceID   string               `json:"instance_id,omitempty"`
	Uptime       int64                `json:"uptime_seconds"`
	Version      string               `json:"version,omitempty"`
	Dependencies map[string]DepHealth `json:"dependencies"`
	StreamUsers  int                  `json:"stream_clients"`
}

// DepHealth represents the health of a dependency.
type DepHealth struct {
	Status  string      `json:"status"` // "healthy", "unhealthy"
	Message string      `json:"message,omitempty"`
	Latency int64       `json:"latency_ms"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles GET /api/v1/health. Optional dependencies never make
// the service unhealthy: a failing one reports "degraded" with status 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:       "healthy",
		Timestamp:    time.Now(),
		InstanceID:   s.instanceID,
		Uptime:       int64(time.Since(s.started).Seconds()),
		Version:      s.version,
		Dependencies: s.checkDependencies(ctx),
		StreamUsers:  s.hub.Clients(),
	}
	for _, dep := range status.Dependencies {
		if dep.Status != "healthy" {
			status.Status = "degraded"
			break
		}
	}

	s.respondJSON(w, http.StatusOK, status)
}

// checkDependencies runs every registered check and attaches stats. A
// dependency with stats but no check is reported healthy.
func (s *Server) checkDependencies(ctx context.Context) map[string]DepHealth {
	seen := make(map[string]struct{}, len(s.checks)+len(s.stats))
	for name := range s.checks {
		seen[name] = struct{}{}
	}
	for name := range s.stats {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]DepHealth, len(names))
	for _, name := range names {
		dep := DepHealth{Status: "healthy"}
		if check, ok := s.checks[name]; ok {
			start := time.Now()
			err := check(ctx)
			dep.Latency = time.Since(start).Milliseconds()
			if err != nil {
				dep.Status = "unhealthy"
				dep.Message = err.Error()
			}
		}
		if stats, ok := s.stats[name]; ok {
			dep.Details = stats(ctx)
		}
		deps[name] = dep
	}
	return deps
}
