package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/handmocap/internal/recorder"
)

// liveQueueSize is how many samples may wait for slow clients before new
// ones are dropped.
const liveQueueSize = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// LiveSample is the message pushed to live clients for every accepted sample.
type LiveSample struct {
	Name      string    `json:"name"`
	FrameID   int64     `json:"frame_id"`
	ElapsedUs int64     `json:"elapsed_us"`
	Values    []float64 `json:"values"`
}

// LiveHandler streams accepted samples to WebSocket clients.
type LiveHandler struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	queue   chan []byte
	done    chan struct{}
	once    sync.Once
}

// NewLiveHandler creates a LiveHandler and starts its broadcast loop.
func NewLiveHandler() *LiveHandler {
	h := &LiveHandler{
		clients: make(map[*websocket.Conn]bool),
		queue:   make(chan []byte, liveQueueSize),
		done:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *LiveHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues one sample for all clients. It never blocks; samples are
// dropped while the queue is full.
func (h *LiveHandler) Publish(name string, s recorder.Sample) {
	if h.Clients() == 0 {
		return
	}

	msg, err := json.Marshal(LiveSample{
		Name:      name,
		FrameID:   s.FrameID,
		ElapsedUs: s.Elapsed.Microseconds(),
		Values:    s.Values,
	})
	if err != nil {
		log.Printf("encode live sample: %v", err)
		return
	}

	select {
	case h.queue <- msg:
	default:
	}
}

// Close stops the broadcast loop.
func (h *LiveHandler) Close() {
	h.once.Do(func() { close(h.done) })
}

// broadcast sends queued samples to all connected clients.
func (h *LiveHandler) broadcast() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.queue:
			h.mu.RLock()
			for conn := range h.clients {
				conn.WriteMessage(websocket.TextMessage, msg)
			}
			h.mu.RUnlock()
		}
	}
}
