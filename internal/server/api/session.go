package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/ayusman/handmocap/internal/app"
)

// Recorder is the part of app.App the session endpoints drive.
type Recorder interface {
	Start(name string) error
	Stop() (app.Result, error)
	Status() app.Status
}

// SessionHandler starts and stops recording sessions.
type SessionHandler struct {
	recorder Recorder
}

// NewSessionHandler creates a new SessionHandler for rec.
func NewSessionHandler(rec Recorder) *SessionHandler {
	return &SessionHandler{recorder: rec}
}

// ServeHTTP routes:
//
//	/api/session        GET (status)
//	/api/session/start  POST {"name": "..."}
//	/api/session/stop   POST
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/session"), "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.recorder.Status())
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w, r)
	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stop(w, r)
	default:
		http.NotFound(w, r)
	}
}

type startSessionRequest struct {
	Name string `json:"name"`
}

type stopSessionResponse struct {
	Name        string `json:"name"`
	Samples     int    `json:"samples"`
	RecordingID string `json:"recording_id,omitempty"`
	BVHPath     string `json:"bvh_path,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	// An empty body starts an auto-named take
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.recorder.Start(req.Name); err != nil {
		if errors.Is(err, app.ErrRecording) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, h.recorder.Status())
}

func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request) {
	result, err := h.recorder.Stop()
	if errors.Is(err, app.ErrNotRecording) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	response := stopSessionResponse{
		Name:    result.Name,
		BVHPath: result.BVHPath,
	}
	if result.Data != nil {
		response.Samples = result.Data.Len()
	}
	if result.Recording != nil {
		response.RecordingID = result.Recording.ID
	}
	if err != nil {
		// the take was finalized but not every output could be written
		response.Error = err.Error()
	}

	writeJSON(w, http.StatusOK, response)
}
