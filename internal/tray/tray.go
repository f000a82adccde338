// Package tray provides the system tray menu for Innovision.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// maxTitle is the longest note text shown in the menu.
const maxTitle = 32

// Tray represents the system tray application.
type Tray struct {
	onToggle  func(enabled bool)
	onReset   func()
	onOverlay func()
	onQuit    func()
	enabled   bool
	mu        sync.RWMutex

	menuToggle *systray.MenuItem
	menuLast   *systray.MenuItem
	menuCounts *systray.MenuItem
}

// New creates a new Tray with detection enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback for enabling or disabling detection.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnReset sets the callback for the reset menu item.
func (t *Tray) OnReset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReset = fn
}

// OnOverlay sets the callback for opening the overlay page.
func (t *Tray) OnOverlay(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOverlay = fn
}

// OnQuit sets the callback for the quit menu item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until systray.Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Innovision")
	systray.SetTooltip("Innovision post-it capture")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle post-it detection")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem(lastTitle(""), "Last locked note")
	t.menuLast.Disable()
	t.menuCounts = systray.AddMenuItem(countsTitle(0, 0), "Locked and uploaded notes")
	t.menuCounts.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuReset := systray.AddMenuItem("Reset All", "Clear tracks and locked notes")
	menuOverlay := systray.AddMenuItem("Open Overlay...", "Open the overlay in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Innovision")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuReset.ClickedCh:
				t.call(func(t *Tray) func() { return t.onReset })
			case <-menuOverlay.ClickedCh:
				t.call(func(t *Tray) func() { return t.onOverlay })
			case <-menuQuit.ClickedCh:
				t.call(func(t *Tray) func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// outside the lock, callbacks may call back into the tray
	if callback != nil {
		callback(enabled)
	}
}

// call runs the callback picked under the read lock.
func (t *Tray) call(pick func(*Tray) func()) {
	t.mu.RLock()
	fn := pick(t)
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SetLastLocked updates the last locked note shown in the menu.
func (t *Tray) SetLastLocked(text string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(text))
	}
}

// SetCounts updates the locked and uploaded counters.
func (t *Tray) SetCounts(locked, uploaded int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuCounts != nil {
		t.menuCounts.SetTitle(countsTitle(locked, uploaded))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Detecting"
	}
	return "○ Paused"
}

func lastTitle(text string) string {
	if text == "" {
		return "Last: none"
	}
	runes := []rune(text)
	if len(runes) > maxTitle {
		text = string(runes[:maxTitle-1]) + "…"
	}
	return "Last: " + text
}

func countsTitle(locked, uploaded int) string {
	return fmt.Sprintf("Locked %d · Uploaded %d", locked, uploaded)
}
