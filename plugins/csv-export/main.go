// Package main provides an export plugin that writes a finished take's
// motion block as CSV next to its BVH file.
package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event  string          `json:"event"`
	Take   Take            `json:"take"`
	Config json.RawMessage `json:"config"`
}

// Take is the finished take description.
type Take struct {
	Name      string   `json:"name"`
	BVHPath   string   `json:"bvh_path"`
	FrameRate float64  `json:"frame_rate"`
	Columns   []string `json:"columns"`
	ElapsedUs []int64  `json:"elapsed_us"`
}

// Config holds the plugin settings from its manifest.
type Config struct {
	Delimiter string `json:"delimiter"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool     `json:"success"`
	Error   string   `json:"error,omitempty"`
	Files   []string `json:"files,omitempty"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(Response{Error: fmt.Sprintf("failed to decode request: %v", err)})
		return
	}

	if req.Event != "take_finished" {
		writeResponse(Response{Error: fmt.Sprintf("unknown event: %s", req.Event)})
		return
	}
	if req.Take.BVHPath == "" {
		writeResponse(Response{Error: "take has no bvh file"})
		return
	}

	cfg := Config{Delimiter: ","}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeResponse(Response{Error: fmt.Sprintf("invalid config: %v", err)})
			return
		}
	}

	out := strings.TrimSuffix(req.Take.BVHPath, ".bvh") + ".csv"
	if err := export(req.Take, out, cfg); err != nil {
		writeResponse(Response{Error: err.Error()})
		return
	}
	writeResponse(Response{Success: true, Files: []string{out}})
}

// export copies the MOTION rows of the take's BVH file into a CSV file with
// a time column followed by one column per channel.
func export(take Take, out string, cfg Config) error {
	in, err := os.Open(take.BVHPath)
	if err != nil {
		return fmt.Errorf("open bvh: %w", err)
	}
	defer in.Close()

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(cfg.Delimiter) == 1 {
		w.Comma = rune(cfg.Delimiter[0])
	}
	if err := w.Write(append([]string{"time"}, take.Columns...)); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	inMotion := false
	row := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inMotion {
			inMotion = strings.HasPrefix(line, "Frame Time:")
			continue
		}
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(take.Columns) > 0 && len(fields) != len(take.Columns) {
			return fmt.Errorf("motion row %d has %d values, want %d", row, len(fields), len(take.Columns))
		}
		t := rowTime(take, row)
		if err := w.Write(append([]string{strconv.FormatFloat(t, 'f', 6, 64)}, fields...)); err != nil {
			return err
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read bvh: %w", err)
	}

	w.Flush()
	return w.Error()
}

// rowTime returns the recorded time of a motion row in seconds. Takes
// without sample times fall back to the nominal frame rate.
func rowTime(take Take, row int) float64 {
	if row < len(take.ElapsedUs) {
		return float64(take.ElapsedUs[row]) / 1e6
	}
	if take.FrameRate > 0 {
		return float64(row) / take.FrameRate
	}
	return 0
}

func writeResponse(resp Response) {
	json.NewEncoder(os.Stdout).Encode(resp)
}
