// Command adminwindow is a GTK4/libadwaita window for driving the sink
// manager's assign/revoke/status surface, grounded on the teacher's
// internal/ui window (ToolbarView/HeaderBar layout, glib.IdleAdd to marshal
// background updates onto the GTK main loop).
package main

import (
	"log"
	"os"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"

	"github.com/sverkoye/a2dpaudiosink/internal/bluez"
	"github.com/sverkoye/a2dpaudiosink/internal/config"
	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
	"github.com/sverkoye/a2dpaudiosink/internal/sinkmgr"
	"github.com/sverkoye/a2dpaudiosink/internal/ui"
	"github.com/sverkoye/a2dpaudiosink/internal/workerpool"
)

const (
	appID          = "com.a2dpaudiosink.adminwindow"
	defaultWorkers = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		log.Printf("adminwindow: %v", err)
		return 1
	}
	log.Printf("adminwindow: binding to controller collaborator %q", cfg.Controller)

	controller, err := bluez.NewController(cfg.Controller)
	if err != nil {
		log.Printf("adminwindow: connect to BlueZ adapter: %v", err)
		return 1
	}
	defer controller.Close()

	pool := workerpool.New(defaultWorkers)
	defer pool.Close()

	manager := sinkmgr.New(controller, l2cap.LinuxDialer{}, pool)

	app := adw.NewApplication(appID, 0)
	app.ConnectActivate(func() {
		ui.Activate(app, manager)
	})

	return app.Run(os.Args)
}

// loadConfig reads the config path from an environment variable rather
// than os.Args, since os.Args is handed to GApplication.Run and GTK parses
// its own command-line options from it.
func loadConfig() (config.Config, error) {
	path := os.Getenv("A2DPAUDIOSINK_CONFIG")
	if path == "" {
		return config.Config{Controller: config.DefaultController}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return config.Config{}, err
	}
	defer f.Close()
	return config.Load(f)
}
