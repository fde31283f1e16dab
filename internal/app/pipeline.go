package app

import (
	"errors"
	"log"

	"github.com/ayusman/handmocap/internal/capture"
	"github.com/ayusman/handmocap/internal/recorder"
)

// runPipeline feeds frames from the source into the session until the
// source runs dry, Stop is called, or the session fails.
//
// Pipeline logic:
// 1. Read the next frame (blocks on live sources)
// 2. Append it to the raw frame file when enabled
// 3. Add it to the session; the first valid frame calibrates
// 4. Hand accepted samples to the registered callbacks
func (a *App) runPipeline(src capture.Source, session *recorder.Session, stopCh, done chan struct{}) {
	stopped := false
	defer func() {
		close(done)
		if !stopped && a.config.AutoStop {
			go func() {
				if _, err := a.Stop(); err != nil && !errors.Is(err, ErrNotRecording) {
					log.Printf("Error finishing recording: %v", err)
				}
			}()
		}
	}()

	readErrors := 0
	for {
		select {
		case <-stopCh:
			stopped = true
			return
		default:
		}

		frame, err := src.ReadFrame()
		if err != nil {
			select {
			case <-stopCh:
				stopped = true
				return
			default:
			}
			if errors.Is(err, capture.ErrEndOfStream) || errors.Is(err, capture.ErrSourceClosed) {
				log.Println("Frame source finished")
				return
			}
			readErrors++
			log.Printf("Error reading frame: %v", err)
			if readErrors >= MaxReadErrors {
				log.Printf("Giving up after %d read errors", readErrors)
				return
			}
			continue
		}
		readErrors = 0

		a.mu.RLock()
		raw := a.raw
		a.mu.RUnlock()
		if raw != nil {
			if err := raw.Write(frame); err != nil {
				log.Printf("Error saving raw frame: %v", err)
			}
		}

		accepted, err := session.AddFrame(frame)
		if err != nil {
			log.Printf("Recording stopped: %v", err)
			return
		}

		a.mu.Lock()
		if accepted {
			a.samples++
		} else {
			a.rejected++
		}
		a.state = session.State()
		name := a.name
		a.mu.Unlock()

		if !accepted {
			continue
		}
		sample, _ := session.Last()

		a.callbackMu.RLock()
		callbacks := a.sampleCallbacks
		a.callbackMu.RUnlock()
		for _, fn := range callbacks {
			fn(name, sample)
		}
	}
}
