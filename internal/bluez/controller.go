// Package bluez provides a concrete bluetooth.Controller/Device
// implementation against BlueZ's D-Bus API.
//
// # D-Bus Connection Architecture
//
// This package talks to BlueZ's org.bluez.Adapter1/org.bluez.Device1
// objects over the system bus. The implementation requires careful
// adherence to the D-Bus ObjectManager pattern and PropertiesChanged
// signal handling.
//
// # Critical Requirements
//
//  1. Single Connection Per Controller:
//     The Controller maintains one persistent D-Bus system bus connection
//     throughout its lifetime. ALL operations (device resolution, property
//     reads, signal monitoring) MUST use this same connection.
//
//  2. PropertiesChanged Signal:
//     Device connection/bonding state changes arrive as PropertiesChanged
//     signals on org.bluez.Device1. The Controller translates these into
//     Device.Callback invocations for whichever Device currently has a
//     callback registered.
package bluez

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/sverkoye/a2dpaudiosink/internal/bluetooth"
)

const (
	bluezService    = "org.bluez"
	adapter1Iface   = "org.bluez.Adapter1"
	device1Iface    = "org.bluez.Device1"
	propertiesIface = "org.freedesktop.DBus.Properties"
)

// Controller is a bluetooth.Controller backed by one BlueZ adapter over
// D-Bus.
type Controller struct {
	conn        *dbus.Conn
	adapterPath dbus.ObjectPath
	localID     string

	mu      sync.Mutex
	devices map[dbus.ObjectPath]*device
}

// NewController connects to the system bus and resolves the BlueZ adapter
// identified by callsign (its hci interface name, e.g. "hci0"). callsign may
// instead be a higher-level collaborator name that has no corresponding
// adapter object (e.g. config.Config.Controller's Thunder-plugin-style
// callsign); in that case, as when callsign is empty, the first adapter
// found via GetManagedObjects is used.
func NewController(callsign string) (*Controller, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}

	c := &Controller{conn: conn, devices: make(map[dbus.ObjectPath]*device)}

	adapterPath, localID, err := c.resolveAdapter(callsign)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.adapterPath = adapterPath
	c.localID = localID

	if err := c.watchPropertiesChanged(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bluez: watch properties: %w", err)
	}

	return c, nil
}

func (c *Controller) resolveAdapter(callsign string) (dbus.ObjectPath, string, error) {
	objects, err := c.getManagedObjects()
	if err != nil {
		return "", "", err
	}

	var firstPath dbus.ObjectPath
	var firstAddr string
	haveFirst := false

	for path, ifaces := range objects {
		props, ok := ifaces[adapter1Iface]
		if !ok {
			continue
		}
		addr, _ := props["Address"].Value().(string)
		if callsign != "" && string(path) == "/org/bluez/"+callsign {
			return path, addr, nil
		}
		if !haveFirst {
			firstPath, firstAddr, haveFirst = path, addr, true
		}
	}
	if haveFirst {
		return firstPath, firstAddr, nil
	}
	return "", "", fmt.Errorf("bluez: no BlueZ adapter found")
}

func (c *Controller) getManagedObjects() (map[dbus.ObjectPath]map[string]map[string]dbus.Variant, error) {
	obj := c.conn.Object(bluezService, dbus.ObjectPath("/"))
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&objects); err != nil {
		return nil, fmt.Errorf("bluez: get managed objects: %w", err)
	}
	return objects, nil
}

// Device resolves address (a BD_ADDR string) to a Device handle, scanning
// the adapter's managed objects for a matching org.bluez.Device1. Returns
// nil, nil if the controller does not know the address (spec.md §4.5:
// unknown_key).
func (c *Controller) Device(address string) (bluetooth.Device, error) {
	objects, err := c.getManagedObjects()
	if err != nil {
		return nil, err
	}

	want := strings.ToUpper(address)
	for path, ifaces := range objects {
		props, ok := ifaces[device1Iface]
		if !ok {
			continue
		}
		addr, _ := props["Address"].Value().(string)
		if strings.ToUpper(addr) != want {
			continue
		}
		return c.deviceFor(path, addr, props), nil
	}
	return nil, nil
}

// deviceFor returns the cached *device for path, creating and caching one
// from props if this is the first resolution.
func (c *Controller) deviceFor(path dbus.ObjectPath, address string, props map[string]dbus.Variant) *device {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.devices[path]; ok {
		return d
	}

	connected, _ := props["Connected"].Value().(bool)
	bonded, _ := props["Bonded"].Value().(bool)
	addrType, _ := props["AddressType"].Value().(string)

	d := &device{
		controller: c,
		path:       path,
		remote:     address,
		addrType:   addrType,
		connected:  connected,
		bonded:     bonded,
	}
	c.devices[path] = d
	return d
}

// watchPropertiesChanged subscribes to PropertiesChanged signals on
// org.bluez.Device1 objects and dispatches them to the matching cached
// device's registered callback.
func (c *Controller) watchPropertiesChanged() error {
	rule := "type='signal',interface='" + propertiesIface + "',member='PropertiesChanged',path_namespace='/org/bluez'"
	if err := c.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule).Err; err != nil {
		return err
	}

	signalChan := make(chan *dbus.Signal, 16)
	c.conn.Signal(signalChan)

	go func() {
		for sig := range signalChan {
			c.handlePropertiesChanged(sig)
		}
	}()
	return nil
}

func (c *Controller) handlePropertiesChanged(sig *dbus.Signal) {
	if sig.Name != propertiesIface+".PropertiesChanged" || len(sig.Body) < 2 {
		return
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != device1Iface {
		return
	}
	changes, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	c.mu.Lock()
	d, known := c.devices[sig.Path]
	c.mu.Unlock()
	if !known {
		return
	}

	d.applyPropertyChanges(changes)
}

// Close closes the underlying D-Bus connection.
func (c *Controller) Close() error {
	return c.conn.Close()
}

// device is a bluetooth.Device backed by one org.bluez.Device1 object.
type device struct {
	controller *Controller
	path       dbus.ObjectPath
	remote     string
	addrType   string

	mu        sync.Mutex
	connected bool
	bonded    bool
	cb        bluetooth.Callback
	refs      int
}

func (d *device) LocalID() string  { return d.controller.localID }
func (d *device) RemoteID() string { return d.remote }

func (d *device) Type() string {
	if strings.EqualFold(d.addrType, "random") {
		return "le-random"
	}
	if strings.EqualFold(d.addrType, "public") && d.addrType != "" {
		return "le-public"
	}
	return "classic"
}

func (d *device) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *device) IsBonded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bonded
}

func (d *device) SetCallback(cb bluetooth.Callback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cb != nil {
		return bluetooth.ErrCallbackAlreadyRegistered
	}
	d.cb = cb
	return nil
}

func (d *device) ClearCallback() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cb = nil
}

func (d *device) AddRef() {
	d.mu.Lock()
	d.refs++
	d.mu.Unlock()
}

func (d *device) Release() {
	d.mu.Lock()
	d.refs--
	d.mu.Unlock()
}

// applyPropertyChanges updates cached Connected/Bonded state and, if a
// callback is registered, invokes it on the signal-reading goroutine
// (spec.md §5: "Controller-callback threads ... deliver device_updated
// notifications").
func (d *device) applyPropertyChanges(changes map[string]dbus.Variant) {
	d.mu.Lock()
	changed := false
	if v, ok := changes["Connected"]; ok {
		if b, ok := v.Value().(bool); ok && b != d.connected {
			d.connected = b
			changed = true
		}
	}
	if v, ok := changes["Bonded"]; ok {
		if b, ok := v.Value().(bool); ok && b != d.bonded {
			d.bonded = b
			changed = true
		}
	}
	cb := d.cb
	d.mu.Unlock()

	if changed && cb != nil {
		cb()
	}
}
