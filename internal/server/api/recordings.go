package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/ayusman/handmocap/internal/bvh"
	"github.com/ayusman/handmocap/internal/store"
)

// RecordingHandler handles HTTP requests for stored recordings.
type RecordingHandler struct {
	store *store.Store
}

// NewRecordingHandler creates a new RecordingHandler with the given store.
func NewRecordingHandler(s *store.Store) *RecordingHandler {
	return &RecordingHandler{store: s}
}

// ServeHTTP routes:
//
//	/api/recordings                GET
//	/api/recordings/{id}           GET, PUT, DELETE
//	/api/recordings/{id}/bvh       GET
//	/api/recordings/{id}/channels  GET
func (h *RecordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/recordings")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
	case "bvh", "channels":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if sub == "bvh" {
			h.exportBVH(w, r, id)
		} else {
			h.channels(w, r, id)
		}
		return
	default:
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.rename(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type renameRecordingRequest struct {
	Name string `json:"name"`
}

type recordingResponse struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Root          string  `json:"root"`
	FrameRate     float64 `json:"frame_rate"`
	ChannelMode   string  `json:"channel_mode"`
	RotationOrder string  `json:"rotation_order"`
	Samples       int     `json:"samples"`
	CreatedAt     string  `json:"created_at"`
}

type listRecordingsResponse struct {
	Recordings []recordingResponse `json:"recordings"`
}

func toResponse(rec *store.Recording) recordingResponse {
	return recordingResponse{
		ID:            rec.ID,
		Name:          rec.Name,
		Root:          rec.Root,
		FrameRate:     rec.FrameRate,
		ChannelMode:   string(rec.ChannelMode),
		RotationOrder: rec.RotationOrder,
		Samples:       rec.Samples,
		CreatedAt:     rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// notFoundOr writes 404 for store.ErrNotFound and 500 otherwise.
func notFoundOr(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recording not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to "+what)
}

func (h *RecordingHandler) list(w http.ResponseWriter, r *http.Request) {
	recordings, err := h.store.Recordings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list recordings")
		return
	}

	response := listRecordingsResponse{
		Recordings: make([]recordingResponse, 0, len(recordings)),
	}
	for _, rec := range recordings {
		response.Recordings = append(response.Recordings, toResponse(rec))
	}

	writeJSON(w, http.StatusOK, response)
}

func (h *RecordingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Recordings().GetByID(id)
	if err != nil {
		notFoundOr(w, err, "get recording")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

func (h *RecordingHandler) rename(w http.ResponseWriter, r *http.Request, id string) {
	var req renameRecordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.store.Recordings().Rename(id, req.Name); err != nil {
		notFoundOr(w, err, "rename recording")
		return
	}

	h.get(w, r, id)
}

func (h *RecordingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Recordings().Delete(id); err != nil {
		notFoundOr(w, err, "delete recording")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RecordingHandler) exportBVH(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := h.store.Recordings().GetByID(id)
	if err != nil {
		notFoundOr(w, err, "get recording")
		return
	}
	data, err := h.store.Recordings().Load(id)
	if err != nil {
		notFoundOr(w, err, "load recording")
		return
	}

	var buf bytes.Buffer
	if err := bvh.Write(&buf, data); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode bvh")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": rec.Name + ".bvh"}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *RecordingHandler) channels(w http.ResponseWriter, r *http.Request, id string) {
	data, err := h.store.Recordings().Load(id)
	if err != nil {
		notFoundOr(w, err, "load recording")
		return
	}
	writeJSON(w, http.StatusOK, data.Table())
}
