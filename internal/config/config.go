// Package config loads handmocap settings from a JSON file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/handmocap/internal/kinematics"
	"github.com/ayusman/handmocap/internal/recorder"
	"github.com/ayusman/handmocap/internal/skeleton"
)

// maxFileSize bounds the config file (1MB).
const maxFileSize = 1 * 1024 * 1024

// Config is the root configuration. Fields omitted from the JSON file keep
// their default values.
type Config struct {
	// Skeleton and solver
	ChannelMode   string  `json:"channel_mode"`
	RotationOrder string  `json:"rotation_order"`
	FrameRate     float64 `json:"frame_rate"`
	Convention    string  `json:"convention"`
	Renormalize   bool    `json:"renormalize"`

	// DriftTolerance is the basis orthonormality error logged as a
	// warning; 0 disables the check.
	DriftTolerance float64 `json:"drift_tolerance"`

	// Storage and outputs
	DBPath      string `json:"db_path"`
	OutputDir   string `json:"output_dir"`
	SaveRaw     bool   `json:"save_raw"`
	SaveParquet bool   `json:"save_parquet"`
	PluginDir   string `json:"plugin_dir"`

	// HTTP server
	Addr string `json:"addr"`

	// Frame source: a replay file, or the bridge command when empty
	Input         string   `json:"input"`
	Realtime      bool     `json:"realtime"`
	BridgeCommand string   `json:"bridge_command"`
	BridgeArgs    []string `json:"bridge_args"`
}

// DataDir returns ~/.handmocap, or .handmocap when the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handmocap"
	}
	return filepath.Join(home, ".handmocap")
}

// Default returns the built-in settings.
func Default() *Config {
	dir := DataDir()
	return &Config{
		ChannelMode:    string(skeleton.ModeRotation),
		RotationOrder:  skeleton.DefaultRotationOrder.String(),
		FrameRate:      skeleton.DefaultFrameRate,
		Convention:     string(kinematics.ConventionSensor),
		DriftTolerance: recorder.DefaultDriftTolerance,
		DBPath:         filepath.Join(dir, "handmocap.db"),
		OutputDir:      filepath.Join(dir, "output"),
		PluginDir:      filepath.Join(dir, "plugins"),
		Addr:           ":8080",
	}
}

// Load reads the JSON file at path on top of Default and validates the result.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if _, err := skeleton.ParseChannelMode(c.ChannelMode); err != nil {
		return err
	}
	if _, err := skeleton.ParseRotationOrder(c.RotationOrder); err != nil {
		return err
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %f", c.FrameRate)
	}
	if _, err := kinematics.ParseConvention(c.Convention); err != nil {
		return err
	}
	if c.DriftTolerance < 0 {
		return fmt.Errorf("drift_tolerance must not be negative, got %f", c.DriftTolerance)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	return nil
}

// Session converts the skeleton and solver settings into a recorder config.
func (c *Config) Session() (recorder.Config, error) {
	mode, err := skeleton.ParseChannelMode(c.ChannelMode)
	if err != nil {
		return recorder.Config{}, err
	}
	order, err := skeleton.ParseRotationOrder(c.RotationOrder)
	if err != nil {
		return recorder.Config{}, err
	}
	conv, err := kinematics.ParseConvention(c.Convention)
	if err != nil {
		return recorder.Config{}, err
	}

	cfg := recorder.DefaultConfig()
	cfg.Skeleton.Mode = mode
	cfg.Skeleton.RotationOrder = order
	cfg.Skeleton.FrameRate = c.FrameRate
	cfg.Solver = kinematics.Options{Convention: conv, Renormalize: c.Renormalize}
	cfg.DriftTolerance = c.DriftTolerance
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
