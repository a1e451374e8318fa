// Package config loads the plugin's configuration.
package config

import (
	"encoding/json"
	"fmt"
	"io"
)

// DefaultController is the callsign used when Config.Controller is empty.
const DefaultController = "BluetoothControl"

// Config is the engine's sole configuration option (spec.md §6): the
// callsign of the Bluetooth controller collaborator it should bind to.
type Config struct {
	Controller string `json:"controller"`
}

// Load decodes a Config from JSON, applying DefaultController if the
// "controller" field was omitted or empty.
func Load(r io.Reader) (Config, error) {
	var c Config
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if c.Controller == "" {
		c.Controller = DefaultController
	}
	return c, nil
}
