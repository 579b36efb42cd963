// Package tray provides the system tray interface for Mudra.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/lifecycle"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle    func()
	onCalibrate func()
	onDashboard func()
	onQuit      func()
	// onNotifications flips notifications and returns the new setting.
	onNotifications func() bool

	state         lifecycle.State
	lastGesture   string
	notifications bool
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuStatus      *systray.MenuItem
	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
	menuCalibrate   *systray.MenuItem
	menuNotify      *systray.MenuItem
}

// New creates a new Tray instance in the Idle state.
func New() *Tray {
	return &Tray{state: lifecycle.StateIdle}
}

// OnToggle sets the callback called when Start/Stop is clicked.
func (t *Tray) OnToggle(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnCalibrate sets the callback called when Calibrate is clicked.
func (t *Tray) OnCalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCalibrate = fn
}

// OnDashboard sets the callback called when Open Dashboard is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnNotifications sets the callback called when Notifications is clicked.
// It returns whether notifications are now enabled.
func (t *Tray) OnNotifications(fn func() bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onNotifications = fn
}

// OnQuit sets the callback called when Quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Gesture Recognition")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(statusTitle(t.state), "Recognition state")
	t.menuStatus.Disable()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.state), "Start or stop gesture recognition")
	systray.AddSeparator()

	t.menuLastGesture = systray.AddMenuItem(lastGestureTitle(t.lastGesture), "Last detected gesture")
	t.menuLastGesture.Disable()
	t.menuCalibrate = systray.AddMenuItem("Calibrate", "Calibrate the recognizer")
	if t.state != lifecycle.StateConnected {
		t.menuCalibrate.Disable()
	}
	systray.AddSeparator()

	t.menuNotify = systray.AddMenuItemCheckbox("Notifications", "Show desktop notifications", t.notifications)
	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop recognition and quit Mudra")
	toggle, calibrate, notifyItem := t.menuToggle, t.menuCalibrate, t.menuNotify
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-toggle.ClickedCh:
				t.fire(func() func() { return t.onToggle })
			case <-calibrate.ClickedCh:
				t.fire(func() func() { return t.onCalibrate })
			case <-notifyItem.ClickedCh:
				t.toggleNotifications()
			case <-menuDashboard.ClickedCh:
				t.fire(func() func() { return t.onDashboard })
			case <-menuQuit.ClickedCh:
				t.fire(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// fire calls the callback returned by get outside the lock.
func (t *Tray) fire(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// toggleNotifications calls the notifications callback and shows the
// setting it returns.
func (t *Tray) toggleNotifications() {
	t.mu.RLock()
	callback := t.onNotifications
	t.mu.RUnlock()

	if callback != nil {
		t.SetNotifications(callback())
	}
}

// SetNotifications updates the Notifications checkbox.
func (t *Tray) SetNotifications(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.notifications = enabled
	if t.menuNotify == nil {
		return
	}
	if enabled {
		t.menuNotify.Check()
	} else {
		t.menuNotify.Uncheck()
	}
}

// Notifications returns the setting last shown by the checkbox.
func (t *Tray) Notifications() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.notifications
}

// SetState updates the status line, the toggle item and the calibrate item.
func (t *Tray) SetState(state lifecycle.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = state
	if t.menuStatus == nil {
		return
	}
	t.menuStatus.SetTitle(statusTitle(state))
	t.menuToggle.SetTitle(toggleTitle(state))
	if state == lifecycle.StateStopping {
		t.menuToggle.Disable()
	} else {
		t.menuToggle.Enable()
	}
	if state == lifecycle.StateConnected {
		t.menuCalibrate.Enable()
	} else {
		t.menuCalibrate.Disable()
	}
}

// SetLastGesture updates the last gesture display in the menu.
func (t *Tray) SetLastGesture(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastGesture = name
	if t.menuLastGesture != nil {
		t.menuLastGesture.SetTitle(lastGestureTitle(name))
	}
}

// State returns the state last passed to SetState.
func (t *Tray) State() lifecycle.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// LastGesture returns the gesture last passed to SetLastGesture.
func (t *Tray) LastGesture() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastGesture
}

func statusTitle(state lifecycle.State) string {
	switch state {
	case lifecycle.StateConnected:
		return "● Connected"
	case lifecycle.StateStarting:
		return "◐ Connecting..."
	case lifecycle.StateStopping:
		return "◐ Stopping..."
	default:
		return "○ Stopped"
	}
}

func toggleTitle(state lifecycle.State) string {
	if state == lifecycle.StateIdle {
		return "Start Recognition"
	}
	return "Stop Recognition"
}

func lastGestureTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}
