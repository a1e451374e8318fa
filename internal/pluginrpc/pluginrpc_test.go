package pluginrpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sverkoye/a2dpaudiosink/internal/bluetooth"
	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
	"github.com/sverkoye/a2dpaudiosink/internal/sinkmgr"
	"github.com/sverkoye/a2dpaudiosink/internal/workerpool"
)

type fakeDevice struct{ remote string }

func (d *fakeDevice) LocalID() string           { return "00:00:00:00:00:00" }
func (d *fakeDevice) RemoteID() string          { return d.remote }
func (d *fakeDevice) Type() string              { return "classic" }
func (d *fakeDevice) IsConnected() bool         { return false }
func (d *fakeDevice) IsBonded() bool            { return false }
func (d *fakeDevice) SetCallback(bluetooth.Callback) error { return nil }
func (d *fakeDevice) ClearCallback()            {}
func (d *fakeDevice) AddRef()                   {}
func (d *fakeDevice) Release()                  {}

type fakeController struct{ known map[string]bool }

func (c *fakeController) Device(address string) (bluetooth.Device, error) {
	if !c.known[address] {
		return nil, nil
	}
	return &fakeDevice{remote: address}, nil
}

type noopDialer struct{}

func (noopDialer) Dial(ctx context.Context, remote string, psm uint16) (l2cap.Socket, error) {
	return nil, errors.New("noop")
}

func TestDispatcherAssignAndStatus(t *testing.T) {
	mgr := sinkmgr.New(&fakeController{known: map[string]bool{"AA:BB:CC:DD:EE:FF": true}}, noopDialer{}, workerpool.New(1))
	d := NewDispatcher(mgr)

	body, _ := json.Marshal(AssignRequest{Device: "AA:BB:CC:DD:EE:FF"})
	resp, err := d.Assign(body)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if resp.Result != "ok" {
		t.Errorf("expected ok, got %s", resp.Result)
	}

	resp, err = d.Assign(body)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if resp.Result != "already_connected" {
		t.Errorf("expected already_connected, got %s", resp.Result)
	}

	if d.Status() == "" {
		t.Error("expected non-empty status")
	}

	if _, err := d.Revoke(nil); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
}

func TestDispatcherAssignUnknownKey(t *testing.T) {
	mgr := sinkmgr.New(&fakeController{known: map[string]bool{}}, noopDialer{}, workerpool.New(1))
	d := NewDispatcher(mgr)

	body, _ := json.Marshal(AssignRequest{Device: "11:22:33:44:55:66"})
	resp, err := d.Assign(body)
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if resp.Result != "unknown_key" {
		t.Errorf("expected unknown_key, got %s", resp.Result)
	}
}

func TestDispatcherAssignMalformedBody(t *testing.T) {
	mgr := sinkmgr.New(&fakeController{known: map[string]bool{}}, noopDialer{}, workerpool.New(1))
	d := NewDispatcher(mgr)

	if _, err := d.Assign([]byte("{not json")); err == nil {
		t.Error("expected error for malformed request body")
	}
}
