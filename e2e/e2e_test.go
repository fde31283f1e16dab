package e2e

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/handmocap/internal/app"
	"github.com/ayusman/handmocap/internal/capture"
	"github.com/ayusman/handmocap/internal/recorder"
	"github.com/ayusman/handmocap/internal/server"
	"github.com/ayusman/handmocap/internal/store"
)

const fixture = "../testdata/wave.jsonl"

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	outDir := filepath.Join(tmpDir, "out")

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	recorder.SetLogger(nil)
	defer recorder.SetLogger(nil)

	application := app.New(app.Config{
		Store:     s,
		Session:   recorder.DefaultConfig(),
		OutputDir: outDir,
		SaveRaw:   true,
		AutoStop:  true,
	}, capture.NewReplaySource(fixture, false))

	finished := make(chan app.Result, 1)
	application.RegisterStopCallback(func(r app.Result) {
		finished <- r
	})

	srv := server.New(server.Config{Store: s, Recorder: application})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	t.Run("StartTake", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/session/start", "application/json",
			strings.NewReader(`{"name": "wave"}`))
		if err != nil {
			t.Fatalf("start error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	var result app.Result
	select {
	case result = <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("take did not finish at end of file")
	}

	t.Run("TakeResult", func(t *testing.T) {
		if result.Data == nil || result.Data.Len() != 3 {
			t.Fatalf("expected 3 samples (2 frames rejected)")
		}
		if result.Recording == nil {
			t.Fatal("take was not stored")
		}
		if application.IsRecording() {
			t.Error("auto-stopped take should not be recording")
		}

		want := []time.Duration{0, 16666 * time.Microsecond, 33333 * time.Microsecond}
		for i, d := range want {
			if result.Data.Index[i] != d {
				t.Errorf("Index[%d] = %v, want %v", i, result.Data.Index[i], d)
			}
		}

		for i, deg := range []float64{0, 20, 40} {
			got, err := result.Data.Value(i, "RightHand_Zrotation")
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if math.Abs(got-deg) > 1e-6 {
				t.Errorf("sample %d RightHand_Zrotation = %v, want %v", i, got, deg)
			}
			// The whole hand turns rigidly, so the fingers stay still
			got, _ = result.Data.Value(i, "RightHandIndex2_Zrotation")
			if math.Abs(got) > 1e-6 {
				t.Errorf("sample %d RightHandIndex2_Zrotation = %v, want 0", i, got)
			}
		}
	})

	t.Run("OutputFiles", func(t *testing.T) {
		raw, err := os.ReadFile(filepath.Join(outDir, "wave.jsonl"))
		if err != nil {
			t.Fatalf("read raw frames: %v", err)
		}
		if n := strings.Count(string(raw), "\n"); n != 5 {
			t.Errorf("raw frame lines = %d, want 5", n)
		}

		bvhFile, err := os.ReadFile(result.BVHPath)
		if err != nil {
			t.Fatalf("read bvh: %v", err)
		}

		resp, err := client.Get(ts.URL + "/api/recordings/" + result.Recording.ID + "/bvh")
		if err != nil {
			t.Fatalf("GET bvh error = %v", err)
		}
		defer resp.Body.Close()
		served, _ := io.ReadAll(resp.Body)

		// The stored take must export exactly what was written at stop time
		if string(served) != string(bvhFile) {
			t.Error("exported BVH differs from the file written at stop")
		}
		if !strings.Contains(string(served), "Frames: 3\n") {
			t.Error("BVH should contain 3 frames")
		}
	})

	t.Run("ListRecordings", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/recordings")
		if err != nil {
			t.Fatalf("list error = %v", err)
		}
		defer resp.Body.Close()

		var body struct {
			Recordings []struct {
				Name    string `json:"name"`
				Samples int    `json:"samples"`
			} `json:"recordings"`
		}
		json.NewDecoder(resp.Body).Decode(&body)

		if len(body.Recordings) != 1 || body.Recordings[0].Name != "wave" || body.Recordings[0].Samples != 3 {
			t.Errorf("recordings = %+v", body.Recordings)
		}
	})

	t.Run("ReplayRawTake", func(t *testing.T) {
		// The raw frames written during the take reproduce the same motion
		again := app.New(app.Config{Session: recorder.DefaultConfig()},
			capture.NewReplaySource(filepath.Join(outDir, "wave.jsonl"), false))
		if err := again.Start("again"); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		again.Wait()
		replayed, err := again.Stop()
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}

		if replayed.Data.Len() != result.Data.Len() {
			t.Fatalf("replayed %d samples, want %d", replayed.Data.Len(), result.Data.Len())
		}
		for i := range result.Data.Values {
			for j, v := range result.Data.Values[i] {
				if math.Abs(replayed.Data.Values[i][j]-v) > 1e-9 {
					t.Fatalf("value [%d][%d] = %v, want %v", i, j, replayed.Data.Values[i][j], v)
				}
			}
		}
	})
}
