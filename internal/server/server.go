// Package server provides the HTTP REST API for the BRD pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonathan/brd-pipeline/internal/jobs"
	"github.com/jonathan/brd-pipeline/internal/pipeline"
	"github.com/jonathan/brd-pipeline/internal/server/ratelimit"
	"github.com/jonathan/brd-pipeline/internal/types"
)

// DefaultPollInterval is how often event streams check a job for changes.
const DefaultPollInterval = 250 * time.Millisecond

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	orch        *pipeline.Orchestrator
	registry    *jobs.Registry
	rateLimiter *ratelimit.Limiter

	maxDocumentBytes int64
	defaultArtifacts types.ArtifactsConfig
	pollInterval     time.Duration

	// done is closed when shutdown starts so that event streams end.
	done     chan struct{}
	doneOnce sync.Once
}

// Config holds server configuration
type Config struct {
	Port             int
	MaxDocumentBytes int64
	DefaultArtifacts types.ArtifactsConfig
	RateLimit        *ratelimit.Config // nil uses the limiter defaults
	PollInterval     time.Duration
}

// New creates a new server instance serving the given orchestrator's jobs.
func New(cfg Config, orch *pipeline.Orchestrator) *Server {
	s := &Server{
		orch:             orch,
		registry:         orch.Registry(),
		rateLimiter:      ratelimit.NewLimiter(cfg.RateLimit),
		maxDocumentBytes: cfg.MaxDocumentBytes,
		defaultArtifacts: cfg.DefaultArtifacts,
		pollInterval:     cfg.PollInterval,
		done:             make(chan struct{}),
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: event streams stay open for the life of a job.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Jobs
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("GET /jobs/{id}/results", s.handleJobResults)
	mux.HandleFunc("GET /jobs/{id}/events", s.handleJobEvents)

	// Stage transitions and side tasks
	mux.HandleFunc("POST /jobs/{id}/stages/{stage}", s.handleTransition)
	mux.HandleFunc("POST /jobs/{id}/generate-more", s.handleGenerateMore)
	mux.HandleFunc("POST /jobs/{id}/stories/{story_id}/regenerate-tests", s.handleRegenerateTests)
	mux.HandleFunc("POST /jobs/{id}/stories/{story_id}/regenerate-entities", s.handleRegenerateEntities)
	mux.HandleFunc("GET /jobs/{id}/stories/{story_id}/impact", s.handleImpact)
	mux.HandleFunc("GET /jobs/{id}/epics/{epic_id}/stories", s.handleEpicStories)

	// Edits
	mux.HandleFunc("PUT /jobs/{id}/gap-fixes/{gap_id}", s.handleUpdateGapFix)
	mux.HandleFunc("PUT /jobs/{id}/epics/{epic_id}", s.handleUpdateEpic)
	mux.HandleFunc("PUT /jobs/{id}/stories/{story_id}", s.handleUpdateStory)
	mux.HandleFunc("PUT /jobs/{id}/stories/{story_id}/acceptance-criteria", s.handleUpdateAcceptanceCriteria)

	// Deletes
	mux.HandleFunc("DELETE /jobs/{id}/epics/{epic_id}", s.handleDeleteEpic)
	mux.HandleFunc("DELETE /jobs/{id}/stories/{story_id}", s.handleDeleteStory)
	mux.HandleFunc("DELETE /jobs/{id}/functional-tests/{test_id}", s.handleDeleteFunctionalTest)
	mux.HandleFunc("DELETE /jobs/{id}/gherkin-tests/{scenario_id}", s.handleDeleteGherkinScenario)

	return s.withRateLimit(s.withLogging(s.withCORS(mux)))
}

// Start listens for requests until ctx is cancelled, then shuts down
// gracefully: the listener stops, event streams end, running stage tasks get
// until the shutdown timeout to finish.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.rateLimiter.Stop()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Println("[server] shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops the HTTP server, then waits for the orchestrator's tasks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	httpErr := s.httpServer.Shutdown(ctx)
	orchErr := s.orch.Shutdown(ctx)
	s.registry.Close()
	s.rateLimiter.Stop()

	if httpErr != nil {
		return fmt.Errorf("server shutdown failed: %w", httpErr)
	}
	if orchErr != nil {
		return fmt.Errorf("pipeline shutdown failed: %w", orchErr)
	}
	log.Println("[server] stopped")
	return nil
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(s.extractClientID(r), r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps event streams working through the logging middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[%s] %s %d in %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status": "ok",
		"jobs":   s.registry.Len(),
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[server] error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status code and writes it.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[server] internal error: %v", err)
	}
	s.errorResponse(w, status, err.Error())
}

// extractClientID extracts the client identifier (IP address) from the request.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Round(time.Second).Seconds())
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	}

	log.Printf("[rate-limit] rate limit exceeded: limit=%d remaining=%d", info.Limit, info.Remaining)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
