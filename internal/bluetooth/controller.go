// Package bluetooth declares the abstract collaborator interfaces this
// engine consumes but does not implement: the generic Bluetooth controller
// plugin (device enumeration, bonding, L2CAP socket creation) and the
// devices it hands out. A concrete implementation against BlueZ lives in
// internal/bluez; the core session/sinkmgr packages depend only on these
// interfaces.
package bluetooth

import "errors"

// ErrCallbackAlreadyRegistered is returned by Device.SetCallback when the
// single callback slot is already occupied. The spec treats this as a
// programming error: Session construction must fail rather than silently
// overwrite or queue a second callback.
var ErrCallbackAlreadyRegistered = errors.New("bluetooth: device callback already registered")

// Controller resolves a BD_ADDR string to a Device handle. It is the single
// entry point the Sink manager uses to turn an assign(address) request into
// a live device.
type Controller interface {
	// Device looks up the device with the given address. It returns nil,
	// nil if the controller does not know the address (spec: unknown_key).
	Device(address string) (Device, error)
}

// Callback is invoked by a Device when its connection/bonding state
// changes. Implementations must not block for long: the spec budgets
// roughly 100ms for a callback lease before it must hand off to a worker.
type Callback func()

// Device is the opaque handle a Controller hands out for one remote
// Bluetooth peer. The core treats it as a foreign resource: it AddRefs on
// Session creation and Releases exactly once on Session destruction.
type Device interface {
	// LocalID is the local adapter's address as a string (e.g. "hci0"'s
	// BD_ADDR).
	LocalID() string
	// RemoteID is the remote peer's BD_ADDR as a string.
	RemoteID() string
	// Type reports whether this is a classic or LE device handle.
	Type() string

	IsConnected() bool
	IsBonded() bool

	// SetCallback registers the single "device updated" callback slot.
	// Returns ErrCallbackAlreadyRegistered if a callback is already
	// registered; the caller must call ClearCallback before registering a
	// different one.
	SetCallback(cb Callback) error
	// ClearCallback unregisters the previously registered callback, if
	// any. It is always safe to call, including when no callback is
	// registered.
	ClearCallback()

	// AddRef/Release implement the shared-ownership protocol between the
	// controller and any Session holding this Device: AddRef is called
	// once when a Session acquires the device, Release exactly once when
	// the Session is destroyed.
	AddRef()
	Release()
}
