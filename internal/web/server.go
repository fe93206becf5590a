package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperyield/yvm/internal/config"
	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer exposes decision history and parameters over a JSON API.
type WebServer struct {
	router *mux.Router
	port   string
}

// NewWebServer creates a new web server instance
func NewWebServer(port string) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		port:   port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/decisions", ws.handleGetDecisions).Methods("GET")
	api.HandleFunc("/decisions/latest", ws.handleGetLatestDecision).Methods("GET")
	api.HandleFunc("/decisions/{id}", ws.handleGetDecision).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health plus the latest decision summary.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var decisionInfo map[string]interface{}
	hasErrors := false

	latest, err := state.GetRecentDecisions(1)
	if err == nil && len(latest) > 0 {
		run := latest[0]
		decisionInfo = map[string]interface{}{
			"last_run_id":     run.RunID,
			"last_run_time":   run.Timestamp,
			"last_action":     run.Recommendation.Action,
			"last_gain_bps":   run.Recommendation.GainBps,
			"last_profitable": run.Recommendation.Profitable,
		}
	} else {
		decisionInfo = map[string]interface{}{
			"last_run_id":   nil,
			"last_run_time": nil,
			"last_action":   "unknown",
		}
		hasErrors = err != nil
	}

	dbHealthy := true
	if state.DB == nil || state.DB.Ping() != nil {
		dbHealthy = false
		hasErrors = true
	}

	status := "healthy"
	statusCode := http.StatusOK
	if hasErrors {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"status":           status,
		"timestamp":        time.Now().UTC(),
		"database_healthy": dbHealthy,
		"memory_alloc_mb":  memStats.Alloc / 1024 / 1024,
		"goroutines":       runtime.NumGoroutine(),
		"latest_decision":  decisionInfo,
	})
}

// handleGetDecisions returns recent decision runs, newest first. The
// optional ?limit= query is capped at 200.
func (ws *WebServer) handleGetDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			ws.writeErrorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > 200 {
		limit = 200
	}

	runs, err := state.GetRecentDecisions(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to fetch decision runs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to fetch decision runs")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"count":     len(runs),
		"decisions": runs,
	})
}

// handleGetLatestDecision returns the most recent decision run.
func (ws *WebServer) handleGetLatestDecision(w http.ResponseWriter, r *http.Request) {
	runs, err := state.GetRecentDecisions(1)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to fetch latest decision")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to fetch latest decision")
		return
	}
	if len(runs) == 0 {
		ws.writeErrorResponse(w, http.StatusNotFound, "no decisions recorded yet")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, runs[0])
}

// handleGetDecision returns one decision run by UUID.
func (ws *WebServer) handleGetDecision(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	run, err := state.GetDecisionByID(vars["id"])
	if errors.Is(err, state.ErrDecisionNotFound) {
		ws.writeErrorResponse(w, http.StatusNotFound, "decision run not found")
		return
	}
	if err != nil {
		webLogger.Error().Err(err).Str("runID", vars["id"]).Msg("Failed to fetch decision run")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "failed to fetch decision run")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, run)
}

// handleGetParameters returns the active safety parameters.
func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	params := config.DefaultSafetyParameters
	params.MinGainBps = config.MinGainBps

	ws.writeJSONResponse(w, http.StatusOK, params)
}

// writeJSONResponse writes a JSON response with the given status code
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
