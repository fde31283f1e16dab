// Package plugin runs external export plugins when a recorded take is
// finished. A plugin is a directory holding a plugin.json manifest and an
// executable that reads one JSON Request on stdin and writes one JSON
// Response on stdout.
package plugin

import "encoding/json"

// EventTakeFinished is sent after a take has been finalized and written.
const EventTakeFinished = "take_finished"

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []string        `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Handles reports whether the plugin subscribes to event.
func (m Manifest) Handles(event string) bool {
	for _, e := range m.Events {
		if e == event {
			return true
		}
	}
	return false
}

// Take describes a finished take to plugins.
type Take struct {
	Name        string   `json:"name"`
	RecordingID string   `json:"recording_id,omitempty"`
	BVHPath     string   `json:"bvh_path,omitempty"`
	RawPath     string   `json:"raw_path,omitempty"`
	Samples     int      `json:"samples"`
	FrameRate   float64  `json:"frame_rate"`
	Columns     []string `json:"columns"`
	// ElapsedUs is each sample's time since calibration in microseconds.
	ElapsedUs []int64 `json:"elapsed_us,omitempty"`
}

// Request is sent to a plugin on stdin.
type Request struct {
	Event  string          `json:"event"`
	Take   Take            `json:"take"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Files   []string        `json:"files,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
