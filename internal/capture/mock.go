package capture

import (
	"sync"

	"github.com/ayusman/handmocap/internal/sensor"
)

// MockSource plays back in-memory frames for testing.
type MockSource struct {
	frames  []*sensor.Snapshot
	index   int
	loop    bool
	mu      sync.Mutex
	running bool
}

func NewMockSource(frames []*sensor.Snapshot, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
	}
}

func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = true
	m.index = 0
	return nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

func (m *MockSource) ReadFrame() (*sensor.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil, ErrSourceClosed
	}

	if m.index >= len(m.frames) {
		if !m.loop || len(m.frames) == 0 {
			return nil, ErrEndOfStream
		}
		m.index = 0
	}

	// Clone so callers cannot modify the stored frame
	frame := m.frames[m.index].Clone()
	m.index++

	return frame, nil
}

func (m *MockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
