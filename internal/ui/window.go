// Package ui provides the GTK4/libadwaita admin window for driving the
// sink manager's assign/revoke/status surface. Grounded on the teacher's
// window layout (ToolbarView/HeaderBar, a single Control tab) but showing
// sink status and an address-entry assign/revoke form instead of battery
// levels.
package ui

import (
	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"github.com/sverkoye/a2dpaudiosink/internal/session"
	"github.com/sverkoye/a2dpaudiosink/internal/sinkmgr"
)

// Widgets holds references to UI elements updated on status transitions.
type Widgets struct {
	StatusLabel *gtk.Label
	AddressRow  *adw.EntryRow
	AssignBtn   *gtk.Button
	RevokeBtn   *gtk.Button
}

// Activate builds and presents the admin window, wiring its controls to
// manager.
func Activate(app *adw.Application, manager *sinkmgr.Manager) *adw.ApplicationWindow {
	win := adw.NewApplicationWindow(&app.Application)
	win.SetTitle("A2DP Audio Sink")
	win.SetDefaultSize(420, 260)

	widgets := setupUI(win, manager)
	win.Present()

	widgets.StatusLabel.SetText("Status: " + manager.Status().String())
	manager.AddStatusListener(func(status session.Status) {
		glib.IdleAdd(func() {
			widgets.StatusLabel.SetText("Status: " + status.String())
		})
	})

	return win
}

func setupUI(win *adw.ApplicationWindow, manager *sinkmgr.Manager) *Widgets {
	headerBar := adw.NewHeaderBar()
	headerBar.SetTitleWidget(adw.NewWindowTitle("A2DP Audio Sink", ""))

	box := gtk.NewBox(gtk.OrientationVertical, 16)
	box.SetMarginTop(20)
	box.SetMarginBottom(20)
	box.SetMarginStart(20)
	box.SetMarginEnd(20)

	statusLabel := gtk.NewLabel("Status: unassigned")
	statusLabel.AddCSSClass("title-2")
	box.Append(statusLabel)

	assignGroup := adw.NewPreferencesGroup()
	assignGroup.SetTitle("Assign Sink")

	addressRow := adw.NewEntryRow()
	addressRow.SetTitle("Device address (BD_ADDR)")
	assignGroup.Add(addressRow)

	box.Append(assignGroup)

	buttonBox := gtk.NewBox(gtk.OrientationHorizontal, 10)
	buttonBox.SetHAlign(gtk.AlignEnd)

	revokeBtn := gtk.NewButtonWithLabel("Revoke")
	assignBtn := gtk.NewButtonWithLabel("Assign")
	assignBtn.AddCSSClass("suggested-action")

	buttonBox.Append(revokeBtn)
	buttonBox.Append(assignBtn)
	box.Append(buttonBox)

	widgets := &Widgets{
		StatusLabel: statusLabel,
		AddressRow:  addressRow,
		AssignBtn:   assignBtn,
		RevokeBtn:   revokeBtn,
	}

	assignBtn.ConnectClicked(func() {
		address := addressRow.Text()
		go func() {
			if err := manager.Assign(address); err != nil {
				glib.IdleAdd(func() { statusLabel.SetText("Assign failed: " + err.Error()) })
			}
		}()
	})

	revokeBtn.ConnectClicked(func() {
		go func() {
			if err := manager.Revoke(); err != nil {
				glib.IdleAdd(func() { statusLabel.SetText("Revoke failed: " + err.Error()) })
			}
		}()
	})

	toolbarView := adw.NewToolbarView()
	toolbarView.AddTopBar(headerBar)
	toolbarView.SetContent(box)
	win.SetContent(toolbarView)

	return widgets
}
