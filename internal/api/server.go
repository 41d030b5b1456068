package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/internal/logging"
	"github.com/jordanhubbard/krishi/internal/metrics"
	"github.com/jordanhubbard/krishi/pkg/models"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Advisor is the advisory core the API serves
type Advisor interface {
	ProcessQuery(ctx context.Context, req models.QueryRequest) (models.QueryResponse, error)
	SubmitFeedback(ctx context.Context, req models.FeedbackRequest) (models.FeedbackResult, error)
	ListEscalations(limit int) []models.EscalationRecord
	Analytics() models.Analytics
	Farmer(id string) (models.FarmerProfile, bool)
}

// HealthCheck reports the health of one dependency
type HealthCheck func(ctx context.Context) error

// StatsFunc reports runtime details of one dependency for the health endpoint
type StatsFunc func(ctx context.Context) interface{}

// Server represents the HTTP API server
type Server struct {
	advisor    Advisor
	logManager *logging.Manager
	hub        *EscalationHub
	metrics    *metrics.Metrics
	logger     *zap.Logger
	version    string
	instanceID string
	checks     map[string]HealthCheck
	stats      map[string]StatsFunc
	started    time.Time
}

// Options carries the optional parts of a Server
type Options struct {
	LogManager *logging.Manager
	Hub        *EscalationHub
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	Version    string
	InstanceID string
	Checks     map[string]HealthCheck
	Stats      map[string]StatsFunc
}

// NewServer creates a new API server
func NewServer(advisor Advisor, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Hub == nil {
		opts.Hub = NewEscalationHub(opts.Metrics, opts.Logger)
	}
	return &Server{
		advisor:    advisor,
		logManager: opts.LogManager,
		hub:        opts.Hub,
		metrics:    opts.Metrics,
		logger:     opts.Logger.Named("api"),
		version:    opts.Version,
		instanceID: opts.InstanceID,
		checks:     opts.Checks,
		stats:      opts.Stats,
		started:    time.Now(),
	}
}

// SetupRoutes configures HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/api/v1/health", s.handleHealth)

	// Queries and feedback
	mux.HandleFunc("/api/v1/query", s.handleQuery)
	mux.HandleFunc("/api/v1/feedback", s.handleFeedback)

	// Expert desk
	mux.HandleFunc("/api/v1/escalations", s.handleEscalations)
	mux.Handle("/api/v1/escalations/stream", s.hub)

	// Learning
	mux.HandleFunc("/api/v1/analytics", s.handleAnalytics)
	mux.HandleFunc("/api/v1/farmers/", s.handleFarmer)

	// Logs
	mux.HandleFunc("/api/v1/logs", s.handleLogs)

	// Prometheus
	mux.Handle("/metrics", promhttp.Handler())

	// Apply middleware
	handler := s.loggingMiddleware(mux)
	handler = s.corsMiddleware(handler)

	return handler
}

// Middleware

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// loggingMiddleware logs HTTP requests and records request metrics
// labelled by the matched route pattern
func (s *Server) loggingMiddleware(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		route := routeLabel(mux, r)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), elapsed.Seconds())
		}
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
		)
	})
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// unmatchedRoute labels requests no registered pattern serves
const unmatchedRoute = "unmatched"

// routeLabel returns the registered pattern serving r so the metric label
// set is bounded by the route table
func routeLabel(mux *http.ServeMux, r *http.Request) string {
	if _, pattern := mux.Handler(r); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}

// Helper functions

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// parseJSON parses a bounded JSON request body
func (s *Server) parseJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// extractID extracts ID from URL path
func (s *Server) extractID(path, prefix string) string {
	// Remove prefix and any trailing slash
	id := strings.TrimPrefix(path, prefix)
	id = strings.TrimPrefix(id, "/")
	id = strings.TrimSuffix(id, "/")

	parts := strings.Split(id, "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return id
}

// queryInt parses an integer query parameter, returning def when absent
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s parameter %q", name, raw)
	}
	return n, nil
}
