package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ayusman/handmocap/internal/sensor"
)

// BridgeScript is the default name of the tracking SDK bridge. The bridge
// writes one JSON snapshot per line to stdout for as long as it runs.
const BridgeScript = "leap_bridge.py"

// BridgeConfig describes how to launch the bridge process.
type BridgeConfig struct {
	// Command is the executable to run. If empty, the bridge script is
	// located with FindBridgeScript and run with the best available Python.
	Command string
	Args    []string
}

// BridgeSource reads frames from a tracking SDK bridge subprocess.
type BridgeSource struct {
	config BridgeConfig

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	reader  *bufio.Reader
	started bool
}

// NewBridgeSource creates a source for the given bridge. The process is
// started by Open.
func NewBridgeSource(config BridgeConfig) (*BridgeSource, error) {
	if config.Command == "" {
		script := FindBridgeScript()
		if script == "" {
			return nil, fmt.Errorf("%s not found", BridgeScript)
		}
		python := findVenvPython()
		if python == "" {
			python = "python3"
		}
		config.Command = python
		config.Args = append([]string{script}, config.Args...)
	}
	return &BridgeSource{config: config}, nil
}

// Open starts the bridge process.
func (b *BridgeSource) Open() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	cmd := exec.Command(b.config.Command, b.config.Args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Bridge diagnostics go straight to our stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	b.cmd = cmd
	b.stdout = stdout
	b.reader = bufio.NewReaderSize(stdout, 64*1024)
	b.started = true
	return nil
}

// Close stops the bridge process.
func (b *BridgeSource) Close() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	cmd := b.cmd
	b.started = false
	b.cmd = nil
	b.stdout = nil
	b.reader = nil
	b.mu.Unlock()

	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	err := cmd.Wait()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// killed on purpose
		return nil
	}
	return err
}

// ReadFrame blocks until the bridge emits the next frame. It returns
// ErrEndOfStream when the bridge exits.
func (b *BridgeSource) ReadFrame() (*sensor.Snapshot, error) {
	b.mu.Lock()
	reader := b.reader
	started := b.started
	b.mu.Unlock()

	if !started || reader == nil {
		return nil, ErrSourceClosed
	}

	for {
		line, err := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			snap, perr := sensor.ParseSnapshot([]byte(line))
			if perr != nil {
				return nil, perr
			}
			return snap, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) || !b.IsOpen() {
				return nil, ErrEndOfStream
			}
			return nil, fmt.Errorf("read bridge output: %w", err)
		}
	}
}

// IsOpen returns true while the bridge process is running.
func (b *BridgeSource) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

// FindBridgeScript looks for the bridge script next to the working
// directory, the executable and in ~/.handmocap/scripts.
func FindBridgeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", BridgeScript),
		filepath.Join("..", "scripts", BridgeScript),
		filepath.Join(execDir, "scripts", BridgeScript),
		filepath.Join(os.Getenv("HOME"), ".handmocap", "scripts", BridgeScript),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".handmocap/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
