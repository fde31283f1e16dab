package capture

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ayusman/handmocap/internal/sensor"
)

// maxLineSize bounds one JSON-encoded frame.
const maxLineSize = 1 << 20

// ReplaySource reads frames from a JSON-lines file, one snapshot per line.
type ReplaySource struct {
	path     string
	realtime bool

	mu      sync.Mutex
	file    *os.File
	scanner *bufio.Scanner
	size    int64
	offset  int64
	line    int
	lastTs  int64
	hasLast bool
	running bool
	closed  chan struct{}
}

// NewReplaySource creates a source for the file at path. When realtime is
// set, ReadFrame sleeps between frames according to their timestamps.
func NewReplaySource(path string, realtime bool) *ReplaySource {
	return &ReplaySource{path: path, realtime: realtime}
}

// Open opens the file and rewinds to the first frame.
func (r *ReplaySource) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat replay file: %w", err)
	}

	r.file = f
	r.scanner = bufio.NewScanner(f)
	r.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	r.size = info.Size()
	r.offset = 0
	r.line = 0
	r.lastTs = 0
	r.hasLast = false
	r.running = true
	r.closed = make(chan struct{})
	return nil
}

// Close closes the file.
func (r *ReplaySource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}
	close(r.closed)
	err := r.file.Close()
	r.file = nil
	r.scanner = nil
	r.running = false
	return err
}

// ReadFrame decodes the next non-blank line. It returns ErrEndOfStream after
// the last frame. In realtime mode it waits out the gap to the previous
// frame's timestamp without holding the lock, and a Close during the wait
// returns ErrSourceClosed.
func (r *ReplaySource) ReadFrame() (*sensor.Snapshot, error) {
	snap, wait, closed, err := r.next()
	if err != nil || wait <= 0 {
		return snap, err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return snap, nil
	case <-closed:
		return nil, ErrSourceClosed
	}
}

// next decodes the next frame and returns how long to wait before handing it
// out.
func (r *ReplaySource) next() (*sensor.Snapshot, time.Duration, <-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil, 0, nil, ErrSourceClosed
	}

	for r.scanner.Scan() {
		raw := r.scanner.Bytes()
		r.offset += int64(len(raw)) + 1
		r.line++
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}

		snap, err := sensor.ParseSnapshot(raw)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("%s:%d: %w", r.path, r.line, err)
		}

		var wait time.Duration
		if r.realtime && r.hasLast && snap.TimestampUs > r.lastTs {
			wait = time.Duration(snap.TimestampUs-r.lastTs) * time.Microsecond
		}
		r.lastTs = snap.TimestampUs
		r.hasLast = true
		return snap, wait, r.closed, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, 0, nil, fmt.Errorf("read replay file: %w", err)
	}
	return nil, 0, nil, ErrEndOfStream
}

// IsOpen returns true while the file is open.
func (r *ReplaySource) IsOpen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Progress reports how many bytes of the file have been consumed and the
// total file size.
func (r *ReplaySource) Progress() (read, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.offset > r.size {
		return r.size, r.size
	}
	return r.offset, r.size
}

// Writer appends snapshots to a JSON-lines stream readable by ReplaySource.
type Writer struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
	n   int
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{w: bw, enc: json.NewEncoder(bw)}
}

// Write encodes one frame as a single line.
func (w *Writer) Write(s *sensor.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(s); err != nil {
		return fmt.Errorf("encode frame %d: %w", s.FrameID, err)
	}
	w.n++
	return nil
}

// Count returns the number of frames written.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Flush writes any buffered frames to the underlying writer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Flush()
}
