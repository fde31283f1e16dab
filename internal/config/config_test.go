package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/handmocap/internal/kinematics"
	"github.com/ayusman/handmocap/internal/recorder"
	"github.com/ayusman/handmocap/internal/skeleton"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "rotation", cfg.ChannelMode)
	assert.Equal(t, "ZXY", cfg.RotationOrder)
	assert.Equal(t, 120.0, cfg.FrameRate)
	assert.Equal(t, "sensor", cfg.Convention)
	assert.False(t, cfg.Renormalize)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.True(t, strings.HasSuffix(cfg.DBPath, "handmocap.db"))
	assert.Equal(t, "plugins", filepath.Base(cfg.PluginDir))
	assert.Equal(t, recorder.DefaultDriftTolerance, cfg.DriftTolerance)
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "handmocap.json", `{
		"channel_mode": "position",
		"rotation_order": "xyz",
		"convention": "mirror-z",
		"renormalize": true,
		"drift_tolerance": 0.01
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "position", cfg.ChannelMode)
	assert.Equal(t, 120.0, cfg.FrameRate)
	assert.Equal(t, ":8080", cfg.Addr)

	sess, err := cfg.Session()
	require.NoError(t, err)
	assert.Equal(t, skeleton.ModePosition, sess.Skeleton.Mode)
	assert.Equal(t, skeleton.RotationOrder{skeleton.AxisX, skeleton.AxisY, skeleton.AxisZ}, sess.Skeleton.RotationOrder)
	assert.Equal(t, kinematics.ConventionMirrorZ, sess.Solver.Convention)
	assert.True(t, sess.Solver.Renormalize)
	assert.Equal(t, 0.01, sess.DriftTolerance)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "config.yaml", `{}`},
		{"bad json", "config.json", `{`},
		{"bad mode", "config.json", `{"channel_mode": "angles"}`},
		{"bad order", "config.json", `{"rotation_order": "XXY"}`},
		{"bad frame rate", "config.json", `{"frame_rate": -1}`},
		{"bad convention", "config.json", `{"convention": "upside-down"}`},
		{"empty db path", "config.json", `{"db_path": ""}`},
		{"negative drift tolerance", "config.json", `{"drift_tolerance": -0.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.OutputDir = "/tmp/takes"
	cfg.BridgeArgs = []string{"--device", "0"}

	path := filepath.Join(t.TempDir(), "nested", "handmocap.json")
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
