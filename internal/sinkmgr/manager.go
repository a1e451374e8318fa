// Package sinkmgr implements the sink manager: the single-session slot
// that turns assign/revoke/status control-surface calls into Session
// lifecycle operations.
package sinkmgr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sverkoye/a2dpaudiosink/internal/bluetooth"
	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
	"github.com/sverkoye/a2dpaudiosink/internal/session"
	"github.com/sverkoye/a2dpaudiosink/internal/workerpool"
)

// Error taxonomy for assign/revoke (spec.md §4.5/§7). These are plain
// sentinel values compared with errors.Is, matching the teacher's error
// handling style throughout.
var (
	ErrAlreadyConnected = errors.New("sinkmgr: a session is already assigned")
	ErrUnknownKey       = errors.New("sinkmgr: controller does not know this address")
	ErrUnavailable      = errors.New("sinkmgr: controller collaborator is unavailable")
	ErrBadArgument      = errors.New("sinkmgr: bad argument")
)

// Manager owns at most one Session at a time. The top-level lock is held
// only while mutating the single-session slot (spec.md §5), never across a
// Session method call that might block on a socket.
type Manager struct {
	controller bluetooth.Controller
	dialer     l2cap.Dialer
	pool       *workerpool.Pool

	mu      sync.Mutex
	current *session.Session

	listenersMu sync.Mutex
	listeners   []session.StatusListener
}

// New creates a sink manager bound to the given controller collaborator
// and L2CAP dialer, with the given worker pool handed to every Session it
// creates. controller may be nil if the collaborator is not yet available;
// Assign then fails with ErrUnavailable.
func New(controller bluetooth.Controller, dialer l2cap.Dialer, pool *workerpool.Pool) *Manager {
	return &Manager{controller: controller, dialer: dialer, pool: pool}
}

// Assign creates a Session for the given BD_ADDR if none currently exists.
func (m *Manager) Assign(address string) error {
	if address == "" {
		return fmt.Errorf("%w: empty address", ErrBadArgument)
	}

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	controller := m.controller
	m.mu.Unlock()

	if controller == nil {
		return ErrUnavailable
	}

	device, err := controller.Device(address)
	if err != nil {
		return fmt.Errorf("sinkmgr: resolve device: %w", err)
	}
	if device == nil {
		return ErrUnknownKey
	}

	sess, err := session.New(m.dialer, device, m.pool)
	if err != nil {
		return fmt.Errorf("sinkmgr: create session: %w", err)
	}

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		_ = sess.Close()
		return ErrAlreadyConnected
	}
	m.current = sess
	m.mu.Unlock()

	m.listenersMu.Lock()
	for _, l := range m.listeners {
		sess.AddStatusListener(l)
	}
	m.listenersMu.Unlock()

	return nil
}

// AddStatusListener registers a listener invoked on every status
// transition of whichever Session the manager currently owns, and of
// every Session it creates afterward (spec.md §6's "statechange" event).
func (m *Manager) AddStatusListener(l session.StatusListener) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, l)
	m.listenersMu.Unlock()

	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()
	if sess != nil {
		sess.AddStatusListener(l)
	}
}

// Revoke destroys the current Session, if any. Idempotent.
func (m *Manager) Revoke() error {
	m.mu.Lock()
	sess := m.current
	m.current = nil
	m.mu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.Close()
}

// Status forwards the owning Session's status, or StatusUnassigned if no
// session exists.
func (m *Manager) Status() session.Status {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()

	if sess == nil {
		return session.StatusUnassigned
	}
	return sess.Status()
}
