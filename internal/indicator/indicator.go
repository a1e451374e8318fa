// Package indicator implements the system tray icon for the sink manager's
// assign/revoke/status surface. Grounded on the teacher's tray (menu
// construction, ClickedCh select loop, SetTooltip) but reflecting
// sinkmgr.Manager status instead of AirPods battery levels.
package indicator

import (
	"log"

	"fyne.io/systray"
)

// Indicator manages the system tray icon and menu.
type Indicator struct {
	onAssign func()
	onRevoke func()
	onQuit   func()

	statusItem *systray.MenuItem
	assignItem *systray.MenuItem
	revokeItem *systray.MenuItem
	quitItem   *systray.MenuItem
}

// New creates a tray indicator. onAssign is invoked when the user clicks
// "Assign" (the caller decides which address to assign, e.g. from
// configuration); onRevoke releases the current session; onQuit stops the
// indicator's owning process.
func New(onAssign, onRevoke, onQuit func()) *Indicator {
	return &Indicator{onAssign: onAssign, onRevoke: onRevoke, onQuit: onQuit}
}

// Start launches the tray on its own goroutine.
func (ind *Indicator) Start() {
	go systray.Run(ind.onReady, ind.onExit)
}

// Stop terminates the tray.
func (ind *Indicator) Stop() {
	systray.Quit()
}

func (ind *Indicator) onReady() {
	systray.SetTitle("A2DP Sink")
	systray.SetTooltip("A2DP audio sink: unassigned")

	ind.statusItem = systray.AddMenuItem("Status: unassigned", "Current sink status")
	ind.statusItem.Disable()
	systray.AddSeparator()

	ind.assignItem = systray.AddMenuItem("Assign", "Assign the configured device as the active sink")
	ind.revokeItem = systray.AddMenuItem("Revoke", "Release the currently assigned sink")
	systray.AddSeparator()
	ind.quitItem = systray.AddMenuItem("Quit", "Exit")

	go func() {
		for {
			select {
			case <-ind.assignItem.ClickedCh:
				if ind.onAssign != nil {
					ind.onAssign()
				}
			case <-ind.revokeItem.ClickedCh:
				if ind.onRevoke != nil {
					ind.onRevoke()
				}
			case <-ind.quitItem.ClickedCh:
				if ind.onQuit != nil {
					ind.onQuit()
				}
				return
			}
		}
	}()
}

func (ind *Indicator) onExit() {
	log.Println("indicator: tray exited")
}

// UpdateStatus refreshes the displayed status text and tooltip.
func (ind *Indicator) UpdateStatus(status string) {
	if ind.statusItem == nil {
		return
	}
	ind.statusItem.SetTitle("Status: " + status)
	systray.SetTooltip("A2DP audio sink: " + status)
}
