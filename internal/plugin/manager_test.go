package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writePlugin creates dir/<name>/plugin.json for manifest.
func writePlugin(t *testing.T, dir string, manifest Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(dir, manifest.Name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}
	manifestBytes, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifestBytes, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writePlugin(t, tmpDir, Manifest{
		Name:        "csv-export",
		Version:     "1.0.0",
		Description: "Writes channels as CSV",
		Executable:  "csv-export",
		Events:      []string{EventTakeFinished},
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "csv-export" {
		t.Errorf("expected plugin name 'csv-export', got %q", plugin.Manifest.Name)
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if want := filepath.Join(pluginDir, "csv-export"); plugin.Executable != want {
		t.Errorf("expected executable %q, got %q", want, plugin.Executable)
	}
}

func TestManager_Discover_MultiplePlugins(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		writePlugin(t, tmpDir, Manifest{Name: name, Executable: "run"})
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(plugins))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if plugins[i].Manifest.Name != want {
			t.Errorf("plugins[%d] = %q, want %q", i, plugins[i].Manifest.Name, want)
		}
	}
}

func TestManager_Discover_SkipsInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	// Invalid JSON
	bad := filepath.Join(tmpDir, "bad")
	os.MkdirAll(bad, 0755)
	os.WriteFile(filepath.Join(bad, "plugin.json"), []byte("{not json"), 0644)

	// No manifest at all
	os.MkdirAll(filepath.Join(tmpDir, "empty"), 0755)

	// Missing executable
	writePlugin(t, tmpDir, Manifest{Name: "noexec"})

	// Stray file
	os.WriteFile(filepath.Join(tmpDir, "README"), []byte("x"), 0644)

	writePlugin(t, tmpDir, Manifest{Name: "good", Executable: "run"})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		t.Errorf("expected only 'good', got %d plugins", len(plugins))
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager(filepath.Join(t.TempDir(), "missing"))
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() on missing dir should not fail: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Error("expected no plugins")
	}
}

func TestManager_Discover_Rescan(t *testing.T) {
	tmpDir := t.TempDir()
	dir := writePlugin(t, tmpDir, Manifest{Name: "once", Executable: "run"})

	manager := NewManager(tmpDir)
	manager.Discover()
	os.RemoveAll(dir)
	manager.Discover()

	if _, err := manager.Get("once"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("removed plugin should be forgotten, got %v", err)
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writePlugin(t, tmpDir, Manifest{Name: "csv-export", Version: "2.0.0", Executable: "run"})

	manager := NewManager(tmpDir)
	manager.Discover()

	plugin, err := manager.Get("csv-export")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if plugin.Manifest.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", plugin.Manifest.Version)
	}

	if _, err := manager.Get("nope"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManager_Subscribers(t *testing.T) {
	tmpDir := t.TempDir()
	writePlugin(t, tmpDir, Manifest{Name: "b", Executable: "run", Events: []string{EventTakeFinished}})
	writePlugin(t, tmpDir, Manifest{Name: "a", Executable: "run", Events: []string{"other", EventTakeFinished}})
	writePlugin(t, tmpDir, Manifest{Name: "c", Executable: "run", Events: []string{"other"}})

	manager := NewManager(tmpDir)
	manager.Discover()

	subs := manager.Subscribers(EventTakeFinished)
	if len(subs) != 2 || subs[0].Manifest.Name != "a" || subs[1].Manifest.Name != "b" {
		t.Errorf("unexpected subscribers: %d", len(subs))
	}
	if len(manager.Subscribers("unknown")) != 0 {
		t.Error("no plugin handles 'unknown'")
	}
}

func TestManager_PluginDir(t *testing.T) {
	manager := NewManager("/some/path")
	if manager.PluginDir() != "/some/path" {
		t.Errorf("expected '/some/path', got %q", manager.PluginDir())
	}
}
