package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, name, script string, events ...string) *Plugin {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	path := filepath.Join(dir, "run.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return &Plugin{
		Manifest:   Manifest{Name: name, Executable: "run.sh", Events: events},
		Path:       dir,
		Executable: path,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "ok", `cat <<'EOF'
{"success":true,"files":["/tmp/take.csv"],"data":{"rows":2}}
EOF
`)

	executor := NewExecutor(5 * time.Second)
	response, err := executor.Execute(context.Background(), plugin, &Request{
		Event: EventTakeFinished,
		Take:  Take{Name: "wave", Samples: 2},
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}
	if len(response.Files) != 1 || response.Files[0] != "/tmp/take.csv" {
		t.Errorf("files = %v", response.Files)
	}
	var data map[string]int
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["rows"] != 2 {
		t.Errorf("expected rows 2, got %d", data["rows"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	// Echo the request back inside data so the test can inspect it
	plugin := scriptPlugin(t, "echo", `req=$(cat)
printf '{"success":true,"data":%s}' "$req"
`)

	executor := NewExecutor(5 * time.Second)
	response, err := executor.Execute(context.Background(), plugin, &Request{
		Event:  EventTakeFinished,
		Take:   Take{Name: "wave", BVHPath: "/out/wave.bvh", Samples: 3, Columns: []string{"Root_Xposition"}},
		Config: json.RawMessage(`{"delimiter":";"}`),
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var echoed Request
	if err := json.Unmarshal(response.Data, &echoed); err != nil {
		t.Fatalf("failed to unmarshal echoed request: %v", err)
	}
	if echoed.Event != EventTakeFinished || echoed.Take.BVHPath != "/out/wave.bvh" || echoed.Take.Samples != 3 {
		t.Errorf("echoed request = %+v", echoed)
	}
	if string(echoed.Config) != `{"delimiter":";"}` {
		t.Errorf("config = %s", echoed.Config)
	}
}

func TestExecutor_Timeout(t *testing.T) {
	plugin := scriptPlugin(t, "slow", "exec sleep 10\n")

	executor := NewExecutor(100 * time.Millisecond)
	start := time.Now()
	_, err := executor.Execute(context.Background(), plugin, &Request{Event: EventTakeFinished})
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout error, got: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not stop the plugin")
	}
}

func TestExecutor_Execute_Failures(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"invalid json", "echo not json\n", "failed to parse plugin response"},
		{"non-zero exit", "echo boom >&2\nexit 3\n", "stderr: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plugin := scriptPlugin(t, "bad", tt.script)
			_, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Execute() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestNotify(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	marker := filepath.Join(t.TempDir(), "called")

	for _, p := range []struct {
		manifest Manifest
		script   string
	}{
		{Manifest{Name: "a-fails", Executable: "run.sh", Events: []string{EventTakeFinished}},
			`echo '{"success":false,"error":"disk full"}'`},
		{Manifest{Name: "b-works", Executable: "run.sh", Events: []string{EventTakeFinished}},
			`touch ` + marker + `; echo '{"success":true}'`},
		{Manifest{Name: "c-other", Executable: "run.sh", Events: []string{"other"}},
			`exit 1`},
	} {
		dir := writePlugin(t, tmpDir, p.manifest)
		os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\n"+p.script+"\n"), 0755)
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	err := Notify(context.Background(), manager, NewExecutor(5*time.Second), EventTakeFinished, Take{Name: "wave"})
	if err == nil || !strings.Contains(err.Error(), "a-fails: disk full") {
		t.Fatalf("Notify() error = %v, want a-fails failure", err)
	}
	if strings.Contains(err.Error(), "c-other") {
		t.Error("unsubscribed plugin should not run")
	}
	if _, statErr := os.Stat(marker); statErr != nil {
		t.Error("a failing plugin should not stop later plugins")
	}
}

func TestManifest_Handles(t *testing.T) {
	m := Manifest{Events: []string{EventTakeFinished}}
	if !m.Handles(EventTakeFinished) {
		t.Error("expected Handles(take_finished) = true")
	}
	if m.Handles("take_started") {
		t.Error("expected Handles(take_started) = false")
	}
}
