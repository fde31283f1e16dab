// Package server provides the HTTP server for the handmocap recorder.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/handmocap/internal/server/api"
	"github.com/ayusman/handmocap/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Store    *store.Store
	Recorder api.Recorder
	Live     *LiveHandler
}

// Server represents the HTTP server for the handmocap application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register recordings API handler if Store is configured
	if s.config.Store != nil {
		recordings := api.NewRecordingHandler(s.config.Store)
		s.mux.Handle("/api/recordings", recordings)
		s.mux.Handle("/api/recordings/", recordings)
	}

	// Register session control if a Recorder is configured
	if s.config.Recorder != nil {
		session := api.NewSessionHandler(s.config.Recorder)
		s.mux.Handle("/api/session", session)
		s.mux.Handle("/api/session/", session)
	}

	// Register live sample WebSocket endpoint
	if s.config.Live != nil {
		s.mux.Handle("/api/live", s.config.Live)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Recorder != nil {
		response["recording"] = s.config.Recorder.Status().Recording
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
