package tray

import (
	"strings"
	"testing"
)

func TestTray_Toggle(t *testing.T) {
	tr := New()
	if !tr.IsEnabled() {
		t.Fatal("new tray should be enabled")
	}

	var got []bool
	tr.OnToggle(func(enabled bool) { got = append(got, enabled) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("callbacks = %v, want [false true]", got)
	}
	if !tr.IsEnabled() {
		t.Error("two toggles should leave the tray enabled")
	}
}

func TestTray_Callbacks(t *testing.T) {
	tr := New()
	resets, overlays := 0, 0
	tr.OnReset(func() { resets++ })
	tr.OnOverlay(func() { overlays++ })

	tr.call(func(t *Tray) func() { return t.onReset })
	tr.call(func(t *Tray) func() { return t.onOverlay })
	tr.call(func(t *Tray) func() { return t.onQuit })

	if resets != 1 || overlays != 1 {
		t.Errorf("resets = %d, overlays = %d, want 1 and 1", resets, overlays)
	}
}

func TestTray_SettersBeforeRun(t *testing.T) {
	tr := New()
	// menu items do not exist until Run
	tr.SetLastLocked("ship it")
	tr.SetCounts(2, 1)
}

func TestTitles(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"enabled", toggleTitle(true), "● Detecting"},
		{"disabled", toggleTitle(false), "○ Paused"},
		{"no note", lastTitle(""), "Last: none"},
		{"short note", lastTitle("ship it"), "Last: ship it"},
		{"counts", countsTitle(3, 2), "Locked 3 · Uploaded 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	long := lastTitle(strings.Repeat("x", 100))
	if n := len([]rune(long)); n != len("Last: ")+maxTitle {
		t.Errorf("long title has %d runes, want %d", n, len("Last: ")+maxTitle)
	}
}
