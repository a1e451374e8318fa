// Command statustray is a system tray indicator reflecting the sink
// manager's assign/revoke status, built on internal/indicator.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sverkoye/a2dpaudiosink/internal/bluez"
	"github.com/sverkoye/a2dpaudiosink/internal/config"
	"github.com/sverkoye/a2dpaudiosink/internal/indicator"
	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
	"github.com/sverkoye/a2dpaudiosink/internal/session"
	"github.com/sverkoye/a2dpaudiosink/internal/sinkmgr"
	"github.com/sverkoye/a2dpaudiosink/internal/workerpool"
)

const defaultWorkers = 4

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		cfg = config.Config{Controller: config.DefaultController}
	}
	log.Printf("statustray: binding to controller collaborator %q", cfg.Controller)

	controller, err := bluez.NewController(cfg.Controller)
	if err != nil {
		log.Printf("statustray: connect to BlueZ adapter: %v", err)
		return 1
	}
	defer controller.Close()

	pool := workerpool.New(defaultWorkers)
	defer pool.Close()

	manager := sinkmgr.New(controller, l2cap.LinuxDialer{}, pool)

	// The preconfigured device address is what the tray's one-click
	// "Assign" item targets, since a tray menu has no text entry of its
	// own (spec.md §6's assign/revoke surface otherwise takes an
	// arbitrary address, as cmd/sinkctl and cmd/adminwindow do).
	presetAddress := os.Getenv("A2DPAUDIOSINK_DEVICE")

	tray := indicator.New(
		func() {
			if presetAddress == "" {
				log.Println("statustray: no A2DPAUDIOSINK_DEVICE configured, ignoring Assign click")
				return
			}
			if err := manager.Assign(presetAddress); err != nil {
				log.Printf("statustray: assign %s: %v", presetAddress, err)
			}
		},
		func() {
			if err := manager.Revoke(); err != nil {
				log.Printf("statustray: revoke: %v", err)
			}
		},
		func() { os.Exit(0) },
	)
	tray.Start()
	defer tray.Stop()

	tray.UpdateStatus(manager.Status().String())
	manager.AddStatusListener(func(status session.Status) {
		tray.UpdateStatus(status.String())
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return 0
}

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
