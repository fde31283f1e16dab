package tray

import (
	"errors"
	"testing"
)

func TestTray_HandleToggle(t *testing.T) {
	tr := New()
	if tr.IsRecording() {
		t.Fatal("new tray should be stopped")
	}

	var calls []bool
	tr.OnToggle(func(recording bool) error {
		calls = append(calls, recording)
		return nil
	})

	tr.handleToggle()
	if !tr.IsRecording() {
		t.Error("first toggle should start recording")
	}
	tr.handleToggle()
	if tr.IsRecording() {
		t.Error("second toggle should stop recording")
	}

	if len(calls) != 2 || !calls[0] || calls[1] {
		t.Errorf("toggle callbacks = %v, want [true false]", calls)
	}
}

func TestTray_HandleToggleError(t *testing.T) {
	tr := New()
	tr.OnToggle(func(bool) error {
		return errors.New("source unavailable")
	})

	tr.handleToggle()
	if tr.IsRecording() {
		t.Error("failed toggle should keep the stopped state")
	}
}

func TestTray_SetRecording(t *testing.T) {
	tr := New()
	tr.SetRecording(true)
	if !tr.IsRecording() {
		t.Error("SetRecording(true) not applied")
	}
	// No menu yet; must not panic
	tr.SetLastTake("take-1", 12)
}

func TestToggleTitle(t *testing.T) {
	if got := toggleTitle(true); got != "● Recording" {
		t.Errorf("toggleTitle(true) = %q", got)
	}
	if got := toggleTitle(false); got != "○ Stopped" {
		t.Errorf("toggleTitle(false) = %q", got)
	}
}
