package api

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/handmocap/internal/motion"
	"github.com/ayusman/handmocap/internal/skeleton"
	"github.com/ayusman/handmocap/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// seedRecording stores a two-sample take and returns its ID.
func seedRecording(t *testing.T, s *store.Store, name string) string {
	t.Helper()
	sk, err := skeleton.New(skeleton.DefaultConfig())
	if err != nil {
		t.Fatalf("skeleton.New() error = %v", err)
	}
	d := motion.New(sk)
	d.Append(0, make([]float64, len(d.Columns)))
	row := make([]float64, len(d.Columns))
	row[len(row)-1] = 12.5
	d.Append(8*time.Millisecond, row)

	rec, err := s.Recordings().Create(name, d)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return rec.ID
}

func serve(h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRecordingHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewRecordingHandler(s)

	rec := serve(handler, http.MethodGet, "/api/recordings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"recordings":[]`) {
		t.Errorf("empty list should encode as [], got %s", rec.Body.String())
	}

	id := seedRecording(t, s, "first")
	rec = serve(handler, http.MethodGet, "/api/recordings", "")

	if contentType := rec.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var response listRecordingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Recordings) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(response.Recordings))
	}
	got := response.Recordings[0]
	if got.ID != id || got.Name != "first" || got.Samples != 2 || got.RotationOrder != "ZXY" {
		t.Errorf("unexpected recording %+v", got)
	}

	rec = serve(handler, http.MethodPost, "/api/recordings", "{}")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestRecordingHandler_GetRenameDelete(t *testing.T) {
	s := newTestStore(t)
	handler := NewRecordingHandler(s)
	id := seedRecording(t, s, "take")

	rec := serve(handler, http.MethodGet, "/api/recordings/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = serve(handler, http.MethodPut, "/api/recordings/"+id, `{"name": "renamed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var updated recordingResponse
	json.NewDecoder(rec.Body).Decode(&updated)
	if updated.Name != "renamed" {
		t.Errorf("name = %q, want renamed", updated.Name)
	}

	rec = serve(handler, http.MethodPut, "/api/recordings/"+id, `{"name": "  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	rec = serve(handler, http.MethodPut, "/api/recordings/"+id, `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = serve(handler, http.MethodDelete, "/api/recordings/"+id, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = serve(handler, method, "/api/recordings/"+id, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
	rec = serve(handler, http.MethodPut, "/api/recordings/"+id, `{"name": "x"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("PUT after delete expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestRecordingHandler_BVH(t *testing.T) {
	s := newTestStore(t)
	handler := NewRecordingHandler(s)
	id := seedRecording(t, s, "export")

	rec := serve(handler, http.MethodGet, "/api/recordings/"+id+"/bvh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "export.bvh") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "HIERARCHY\nROOT Root\n") {
		t.Errorf("unexpected bvh: %.60q", body)
	}
	if !strings.Contains(body, "Frames: 2\n") {
		t.Error("bvh should have 2 frames")
	}
	if !strings.HasSuffix(body, " 12.500000\n") {
		t.Errorf("last motion value not written: %.80q", body[len(body)-80:])
	}

	rec = serve(handler, http.MethodGet, "/api/recordings/missing/bvh", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	rec = serve(handler, http.MethodPost, "/api/recordings/"+id+"/bvh", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestRecordingHandler_BVHFilenameQuoting(t *testing.T) {
	s := newTestStore(t)
	handler := NewRecordingHandler(s)
	id := seedRecording(t, s, "export")

	name := `take "one"; x=1`
	body, _ := json.Marshal(map[string]string{"name": name})
	if rec := serve(handler, http.MethodPut, "/api/recordings/"+id, string(body)); rec.Code != http.StatusOK {
		t.Fatalf("PUT expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec := serve(handler, http.MethodGet, "/api/recordings/"+id+"/bvh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	disposition, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("Content-Disposition %q does not parse: %v", rec.Header().Get("Content-Disposition"), err)
	}
	if disposition != "attachment" {
		t.Errorf("disposition = %q, want attachment", disposition)
	}
	if params["filename"] != name+".bvh" {
		t.Errorf("filename = %q, want %q", params["filename"], name+".bvh")
	}
	if _, injected := params["x"]; injected {
		t.Error("name leaked an extra header parameter")
	}
}

func TestRecordingHandler_Channels(t *testing.T) {
	s := newTestStore(t)
	handler := NewRecordingHandler(s)
	id := seedRecording(t, s, "table")

	rec := serve(handler, http.MethodGet, "/api/recordings/"+id+"/channels", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var table motion.Table
	if err := json.NewDecoder(rec.Body).Decode(&table); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if table.Root != "Root" || len(table.ElapsedUs) != 2 || table.ElapsedUs[1] != 8000 {
		t.Errorf("unexpected table header %+v", table.ElapsedUs)
	}
	if len(table.Columns) == 0 || table.Columns[0] != "Root_Xposition" {
		t.Errorf("columns = %v", table.Columns)
	}

	rec = serve(handler, http.MethodGet, "/api/recordings/"+id+"/frames", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown sub-resource expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
