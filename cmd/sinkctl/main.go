// Command sinkctl is a headless driver for the A2DP sink engine: it wires
// the BlueZ controller, the sink manager, and the plugin control surface
// together, and drives one assign/revoke/status call from the command
// line (spec.md §6).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sverkoye/a2dpaudiosink/internal/bluez"
	"github.com/sverkoye/a2dpaudiosink/internal/config"
	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
	"github.com/sverkoye/a2dpaudiosink/internal/pluginrpc"
	"github.com/sverkoye/a2dpaudiosink/internal/sinkmgr"
	"github.com/sverkoye/a2dpaudiosink/internal/workerpool"
)

const defaultWorkers = 4

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to a JSON config file (default: built-in controller name)")
		assign     = flag.String("assign", "", "BD_ADDR of the device to assign as the active sink")
		revoke     = flag.Bool("revoke", false, "revoke the currently assigned sink, if any")
		status     = flag.Bool("status", false, "print the current sink status")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("sinkctl: %v", err)
		return 1
	}

	// cfg.Controller names the Bluetooth controller collaborator's
	// callsign (spec.md §6); bluez.NewController treats it as the target
	// adapter's hci interface name, falling back to the first adapter
	// found via GetManagedObjects if it doesn't match one.
	log.Printf("sinkctl: binding to controller collaborator %q", cfg.Controller)
	controller, err := bluez.NewController(cfg.Controller)
	if err != nil {
		log.Printf("sinkctl: connect to BlueZ adapter: %v", err)
		return 1
	}
	defer controller.Close()

	pool := workerpool.New(defaultWorkers)
	defer pool.Close()

	manager := sinkmgr.New(controller, l2cap.LinuxDialer{}, pool)
	dispatcher := pluginrpc.NewDispatcher(manager)

	switch {
	case *assign != "":
		return runAssign(dispatcher, *assign)
	case *revoke:
		return runRevoke(dispatcher)
	case *status:
		return runStatus(dispatcher)
	default:
		flag.Usage()
		return 2
	}
}

func runAssign(d *pluginrpc.Dispatcher, address string) int {
	body, _ := json.Marshal(pluginrpc.AssignRequest{Device: address})
	resp, err := d.Assign(body)
	if err != nil {
		log.Printf("sinkctl: assign: %v", err)
		return 1
	}
	fmt.Println(resp.Result)
	return exitCodeFor(resp.Result)
}

func runRevoke(d *pluginrpc.Dispatcher) int {
	resp, err := d.Revoke(nil)
	if err != nil {
		log.Printf("sinkctl: revoke: %v", err)
		return 1
	}
	fmt.Println(resp.Result)
	return exitCodeFor(resp.Result)
}

func runStatus(d *pluginrpc.Dispatcher) int {
	fmt.Println(d.Status())
	return 0
}

func exitCodeFor(result string) int {
	if result == "ok" {
		return 0
	}
	return 1
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{Controller: config.DefaultController}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	return config.Load(f)
}
