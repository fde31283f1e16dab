// Package app runs recording sessions: it pulls frames from a source into a
// calibrated session and, when the take ends, exports and stores the result.
package app

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ayusman/handmocap/internal/bvh"
	"github.com/ayusman/handmocap/internal/capture"
	"github.com/ayusman/handmocap/internal/export"
	"github.com/ayusman/handmocap/internal/motion"
	"github.com/ayusman/handmocap/internal/recorder"
	"github.com/ayusman/handmocap/internal/store"
)

var (
	// ErrRecording is returned by Start while a take is in progress.
	ErrRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when no take is in progress.
	ErrNotRecording = errors.New("not recording")
)

// MaxReadErrors is how many consecutive source errors end a take.
const MaxReadErrors = 10

// Config holds configuration options for the application.
type Config struct {
	Store   *store.Store
	Session recorder.Config
	// OutputDir receives <name>.bvh, <name>.jsonl when SaveRaw is set and
	// <name>.parquet when SaveParquet is set. Nothing is written when empty.
	OutputDir   string
	SaveRaw     bool
	SaveParquet bool
	// AutoStop finalizes the take as soon as the source runs dry.
	AutoStop bool
}

// Result describes a finished take.
type Result struct {
	Name        string
	Data        *motion.Data
	Recording   *store.Recording
	BVHPath     string
	RawPath     string
	ParquetPath string
}

// Status is a snapshot of the recorder for display.
type Status struct {
	Recording bool   `json:"recording"`
	Name      string `json:"name,omitempty"`
	State     string `json:"state,omitempty"`
	Samples   int    `json:"samples"`
	Rejected  int    `json:"rejected"`
}

// App is the main application that orchestrates recording sessions.
type App struct {
	config Config
	source capture.Source

	mu       sync.RWMutex
	session  *recorder.Session
	name     string
	samples  int
	rejected int
	state    recorder.State
	stopCh   chan struct{}
	stopping bool
	done     chan struct{}
	raw      *capture.Writer
	rawFile  *os.File
	rawPath  string

	callbackMu      sync.RWMutex
	sampleCallbacks []func(name string, s recorder.Sample)
	stopCallbacks   []func(Result)
}

// New creates a new App reading frames from source.
func New(config Config, source capture.Source) *App {
	return &App{
		config: config,
		source: source,
	}
}

// RegisterSampleCallback adds a function called for every accepted sample.
// Callbacks run on the pipeline goroutine and must not block.
func (a *App) RegisterSampleCallback(fn func(name string, s recorder.Sample)) {
	a.callbackMu.Lock()
	defer a.callbackMu.Unlock()
	a.sampleCallbacks = append(a.sampleCallbacks, fn)
}

// RegisterStopCallback adds a function called after every finished take.
func (a *App) RegisterStopCallback(fn func(Result)) {
	a.callbackMu.Lock()
	defer a.callbackMu.Unlock()
	a.stopCallbacks = append(a.stopCallbacks, fn)
}

// Start opens the source and begins a new take. An empty name is replaced by
// a timestamped one.
func (a *App) Start(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return ErrRecording
	}
	if a.source == nil {
		return errors.New("no frame source configured")
	}

	if name == "" {
		name = "take-" + time.Now().Format("20060102-150405")
	}
	name = sanitizeName(name)

	session, err := recorder.NewSession(a.config.Session)
	if err != nil {
		return err
	}

	if err := a.source.Open(); err != nil {
		return fmt.Errorf("open source: %w", err)
	}

	if a.config.SaveRaw && a.config.OutputDir != "" {
		if err := a.openRaw(name); err != nil {
			a.source.Close()
			return err
		}
	}

	a.session = session
	a.name = name
	a.samples = 0
	a.rejected = 0
	a.state = recorder.StateUncalibrated
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(a.source, session, a.stopCh, a.done)

	log.Printf("Recording %q started", name)
	return nil
}

func (a *App) openRaw(name string) error {
	if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(a.config.OutputDir, name+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create raw frame file: %w", err)
	}
	a.rawFile = f
	a.raw = capture.NewWriter(f)
	a.rawPath = path
	return nil
}

// Wait blocks until the current take's pipeline has exited, either because
// the source ran dry or because Stop was called.
func (a *App) Wait() {
	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// Stop ends the take: the source is closed, the session finalized, the BVH
// file written and the recording stored.
func (a *App) Stop() (Result, error) {
	a.mu.Lock()
	if a.stopCh == nil || a.stopping {
		a.mu.Unlock()
		return Result{}, ErrNotRecording
	}
	a.stopping = true
	close(a.stopCh)
	src, done := a.source, a.done
	a.mu.Unlock()

	// The pipeline takes a.mu, so wait for it without holding the lock.
	if err := src.Close(); err != nil {
		log.Printf("Error closing source: %v", err)
	}
	<-done

	a.mu.Lock()
	session, name := a.session, a.name
	raw, rawFile, rawPath := a.raw, a.rawFile, a.rawPath
	a.stopCh = nil
	a.stopping = false
	a.session = nil
	a.raw, a.rawFile, a.rawPath = nil, nil, ""
	a.mu.Unlock()

	result := Result{Name: name, RawPath: rawPath}
	if raw != nil {
		if err := raw.Flush(); err != nil {
			log.Printf("Error flushing raw frames: %v", err)
		}
		rawFile.Close()
		log.Printf("%q written (%d raw frames)", rawPath, raw.Count())
	}

	if err := session.Err(); err != nil {
		log.Printf("Recording %q ended with error: %v", name, err)
	}

	result.Data = session.Finalize()
	log.Printf("Recording %q stopped with %d samples", name, result.Data.Len())

	var errs []error
	if a.config.OutputDir != "" {
		path, err := a.writeBVH(name, result.Data)
		if err != nil {
			errs = append(errs, err)
		} else {
			result.BVHPath = path
			log.Printf("%q written", path)
		}
		if a.config.SaveParquet {
			path := filepath.Join(a.config.OutputDir, name+".parquet")
			if n, err := export.WriteParquet(path, name, result.Data); err != nil {
				errs = append(errs, fmt.Errorf("write parquet: %w", err))
			} else {
				result.ParquetPath = path
				log.Printf("%q written (%d channel values)", path, n)
			}
		}
	}

	if a.config.Store != nil {
		rec, err := a.config.Store.Recordings().Create(name, result.Data)
		if err != nil {
			errs = append(errs, fmt.Errorf("store recording: %w", err))
		} else {
			result.Recording = rec
		}
	}

	a.callbackMu.RLock()
	callbacks := append([]func(Result){}, a.stopCallbacks...)
	a.callbackMu.RUnlock()
	for _, fn := range callbacks {
		fn(result)
	}

	return result, errors.Join(errs...)
}

func (a *App) writeBVH(name string, d *motion.Data) (string, error) {
	if err := os.MkdirAll(a.config.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(a.config.OutputDir, name+".bvh")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create bvh file: %w", err)
	}
	if err := bvh.Write(f, d); err != nil {
		f.Close()
		return "", fmt.Errorf("write bvh: %w", err)
	}
	return path, f.Close()
}

// IsRecording returns whether a take is in progress.
func (a *App) IsRecording() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Status returns the state of the current take.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopCh == nil {
		return Status{}
	}
	return Status{
		Recording: true,
		Name:      a.name,
		State:     a.state.String(),
		Samples:   a.samples,
		Rejected:  a.rejected,
	}
}

// sanitizeName keeps names safe to use as file names.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}
