// Package tray provides a macOS system tray interface for starting and
// stopping hand motion recordings.
package tray

import (
	"fmt"
	"log"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the macOS system tray application.
type Tray struct {
	onToggle   func(recording bool) error
	onSettings func()
	onQuit     func()
	recording  bool
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle   *systray.MenuItem
	menuLastTake *systray.MenuItem
}

// New creates a new Tray instance in the stopped state.
func New() *Tray {
	return &Tray{}
}

// OnToggle sets the callback invoked when recording is toggled. A non-nil
// error leaves the displayed state unchanged.
func (t *Tray) OnToggle(fn func(recording bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Handmocap")
	systray.SetTooltip("Handmocap Motion Recorder")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.recording), "Start or stop recording")
	systray.AddSeparator()

	t.menuLastTake = systray.AddMenuItem("Last: none", "Last recorded take")
	t.menuLastTake.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Recordings...", "Open recordings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Handmocap")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(recording bool) string {
	if recording {
		return "● Recording"
	}
	return "○ Stopped"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	want := !t.recording
	callback := t.onToggle
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		if err := callback(want); err != nil {
			log.Printf("tray: toggle recording: %v", err)
			return
		}
	}

	t.SetRecording(want)
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetRecording updates the displayed recording state. It is also called
// when a take ends on its own.
func (t *Tray) SetRecording(recording bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recording = recording
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(recording))
	}
}

// SetLastTake updates the last take display in the menu.
func (t *Tray) SetLastTake(name string, samples int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastTake == nil {
		return
	}
	if name == "" {
		t.menuLastTake.SetTitle("Last: none")
	} else {
		t.menuLastTake.SetTitle(fmt.Sprintf("Last: %s (%d samples)", name, samples))
	}
}

// IsRecording returns the displayed recording state.
func (t *Tray) IsRecording() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.recording
}
