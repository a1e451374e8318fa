// Package pluginrpc defines the JSON-shaped control-surface types and
// dispatcher consumed by the plugin host named in spec.md §6: the
// assign/revoke methods, the status property, and the statechange event.
// The host itself is out of scope; this package only gives the wire types
// and a small dispatcher a concrete home, for cmd/sinkctl and any future
// host integration to build on.
package pluginrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sverkoye/a2dpaudiosink/internal/sinkmgr"
)

// AssignRequest is the body of the "assign" method (spec.md §6).
type AssignRequest struct {
	Device string `json:"device"`
}

// RevokeRequest is the body of the "revoke" method.
type RevokeRequest struct {
	Device string `json:"device"`
}

// StatusChangeEvent is the body of the "statechange" event. This package
// defines the shape only; the Dispatcher does not build or send it.
type StatusChangeEvent struct {
	State string `json:"state"`
}

// Response is the uniform reply shape for assign/revoke: "ok" or one of
// the error codes from spec.md §4.5/§7.
type Response struct {
	Result string `json:"result"`
}

const (
	resultOK               = "ok"
	resultAlreadyConnected = "already_connected"
	resultUnknownKey       = "unknown_key"
	resultUnavailable      = "unavailable"
	resultBadArgument      = "bad_argument"
	resultGeneral          = "general"
)

// Dispatcher routes JSON-RPC-shaped method calls to a sinkmgr.Manager.
type Dispatcher struct {
	manager *sinkmgr.Manager
}

// NewDispatcher creates a Dispatcher bound to the given sink manager.
func NewDispatcher(manager *sinkmgr.Manager) *Dispatcher {
	return &Dispatcher{manager: manager}
}

// Assign handles the "assign" method.
func (d *Dispatcher) Assign(body json.RawMessage) (Response, error) {
	var req AssignRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return Response{Result: resultBadArgument}, fmt.Errorf("pluginrpc: decode assign request: %w", err)
	}

	err := d.manager.Assign(req.Device)
	return Response{Result: resultFor(err)}, nil
}

// Revoke handles the "revoke" method. revoke is unconditionally
// idempotent, per spec.md §4.5.
func (d *Dispatcher) Revoke(body json.RawMessage) (Response, error) {
	if err := d.manager.Revoke(); err != nil {
		return Response{Result: resultGeneral}, nil
	}
	return Response{Result: resultOK}, nil
}

// Status handles the "status" property read.
func (d *Dispatcher) Status() string {
	return d.manager.Status().String()
}

// resultFor maps a sinkmgr error to the control surface's result code.
func resultFor(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, sinkmgr.ErrAlreadyConnected):
		return resultAlreadyConnected
	case errors.Is(err, sinkmgr.ErrUnknownKey):
		return resultUnknownKey
	case errors.Is(err, sinkmgr.ErrUnavailable):
		return resultUnavailable
	case errors.Is(err, sinkmgr.ErrBadArgument):
		return resultBadArgument
	default:
		return resultGeneral
	}
}
