package sinkmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sverkoye/a2dpaudiosink/internal/bluetooth"
	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
	"github.com/sverkoye/a2dpaudiosink/internal/session"
	"github.com/sverkoye/a2dpaudiosink/internal/workerpool"
)

type fakeDevice struct {
	mu     sync.Mutex
	remote string
	cb     bluetooth.Callback
}

func (d *fakeDevice) LocalID() string  { return "00:00:00:00:00:00" }
func (d *fakeDevice) RemoteID() string { return d.remote }
func (d *fakeDevice) Type() string     { return "classic" }
func (d *fakeDevice) IsConnected() bool { return false }
func (d *fakeDevice) IsBonded() bool    { return false }

func (d *fakeDevice) SetCallback(cb bluetooth.Callback) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cb != nil {
		return bluetooth.ErrCallbackAlreadyRegistered
	}
	d.cb = cb
	return nil
}
func (d *fakeDevice) ClearCallback() { d.mu.Lock(); d.cb = nil; d.mu.Unlock() }
func (d *fakeDevice) AddRef()        {}
func (d *fakeDevice) Release()       {}

type fakeController struct {
	known map[string]bool
}

func (c *fakeController) Device(address string) (bluetooth.Device, error) {
	if !c.known[address] {
		return nil, nil
	}
	return &fakeDevice{remote: address}, nil
}

type noopDialer struct{}

func (noopDialer) Dial(ctx context.Context, remote string, psm uint16) (l2cap.Socket, error) {
	return nil, errors.New("noop dialer never connects")
}

func newTestManager(known ...string) *Manager {
	k := make(map[string]bool)
	for _, a := range known {
		k[a] = true
	}
	pool := workerpool.New(1)
	return New(&fakeController{known: k}, noopDialer{}, pool)
}

func TestAssignThenAlreadyConnected(t *testing.T) {
	m := newTestManager("AA:BB:CC:DD:EE:FF")

	if err := m.Assign("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if err := m.Assign("11:22:33:44:55:66"); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("expected ErrAlreadyConnected, got %v", err)
	}
}

func TestAssignUnknownKey(t *testing.T) {
	m := newTestManager()
	if err := m.Assign("AA:BB:CC:DD:EE:FF"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
}

func TestAssignUnavailableWithNilController(t *testing.T) {
	pool := workerpool.New(1)
	m := New(nil, noopDialer{}, pool)
	if err := m.Assign("AA:BB:CC:DD:EE:FF"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAssignBadArgument(t *testing.T) {
	m := newTestManager()
	if err := m.Assign(""); !errors.Is(err, ErrBadArgument) {
		t.Fatalf("expected ErrBadArgument, got %v", err)
	}
}

func TestRevokeThenReassign(t *testing.T) {
	m := newTestManager("AA:BB:CC:DD:EE:FF")

	if err := m.Assign("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := m.Revoke(); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// Revoke is idempotent.
	if err := m.Revoke(); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if err := m.Assign("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("reassign after revoke: %v", err)
	}
}

func TestStatusUnassignedWithNoSession(t *testing.T) {
	m := newTestManager()
	if m.Status().String() != "unassigned" {
		t.Errorf("expected unassigned, got %s", m.Status())
	}
}

func TestAddStatusListenerReceivesTransitionsAcrossAssign(t *testing.T) {
	m := newTestManager("AA:BB:CC:DD:EE:FF")

	seen := make(chan session.Status, 4)
	m.AddStatusListener(func(s session.Status) { seen <- s })

	if err := m.Assign("AA:BB:CC:DD:EE:FF"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := m.Revoke(); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	select {
	case s := <-seen:
		if s != session.StatusUnassigned {
			t.Errorf("expected StatusUnassigned, got %v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for status listener notification")
	}
}
