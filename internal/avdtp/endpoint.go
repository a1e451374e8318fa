package avdtp

import (
	"fmt"
	"sync"
)

// SEID is a Stream Endpoint ID, 1..62 on the wire (6 bits, 0 and 63
// reserved).
type SEID uint8

// EndpointState is one state of the per-SEID AVDTP signalling state machine
// (spec.md §4.3).
type EndpointState int

const (
	StateIdle EndpointState = iota
	StateConfigured
	StateOpen
	StateStreaming
	StateClosing
	StateAborting
	StateDisconnected
)

func (s EndpointState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateAborting:
		return "aborting"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MediaType/role info discovered for one remote stream endpoint.
type DiscoveredEndpoint struct {
	SEID       SEID
	InUse      bool
	MediaType  MediaType
	IsSource   bool
}

// Endpoint tracks the signalling state machine for one negotiated remote
// SEID across Configure/Open/Start/Suspend/Close/Abort transitions.
type Endpoint struct {
	mu    sync.Mutex
	seid  SEID
	state EndpointState
	cfg   SBCConfiguration
}

// NewEndpoint creates an endpoint tracker in the Idle state.
func NewEndpoint(seid SEID) *Endpoint {
	return &Endpoint{seid: seid, state: StateIdle}
}

// SEID returns the endpoint's stream endpoint id.
func (e *Endpoint) SEID() SEID {
	return e.seid
}

// State returns the endpoint's current state.
func (e *Endpoint) State() EndpointState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Configuration returns the negotiated SBC configuration, valid once the
// endpoint has reached Configured or later.
func (e *Endpoint) Configuration() SBCConfiguration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// transitionError reports an attempted transition that the current state
// does not allow.
type transitionError struct {
	from  EndpointState
	event string
}

func (t *transitionError) Error() string {
	return fmt.Sprintf("avdtp: cannot %s endpoint in state %s", t.event, t.from)
}

// Configure moves Idle -> Configured once SetConfiguration has been
// accepted by the peer, recording the negotiated SBC configuration.
func (e *Endpoint) Configure(cfg SBCConfiguration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateIdle {
		return &transitionError{e.state, "configure"}
	}
	e.cfg = cfg
	e.state = StateConfigured
	return nil
}

// Open moves Configured -> Open once the transport (media) channel has been
// established via the Open signalling transaction.
func (e *Endpoint) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateConfigured {
		return &transitionError{e.state, "open"}
	}
	e.state = StateOpen
	return nil
}

// Start moves Open -> Streaming.
func (e *Endpoint) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateOpen {
		return &transitionError{e.state, "start"}
	}
	e.state = StateStreaming
	return nil
}

// Suspend moves Streaming -> Open, returning the endpoint to the
// not-yet-streaming transport state without tearing down the media channel.
func (e *Endpoint) Suspend() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateStreaming {
		return &transitionError{e.state, "suspend"}
	}
	e.state = StateOpen
	return nil
}

// Close moves Open or Streaming back to Idle, tearing down the media
// transport. It is also valid directly from Configured (no transport was
// ever opened).
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateOpen, StateStreaming, StateConfigured:
		e.state = StateIdle
		return nil
	default:
		return &transitionError{e.state, "close"}
	}
}

// Abort forces the endpoint back to Idle from any state except
// Disconnected, per spec.md §4.3's "Abort always succeeds" rule.
func (e *Endpoint) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateDisconnected {
		return
	}
	e.state = StateIdle
}

// Disconnect marks the endpoint permanently unusable after an underlying
// transport failure; no further transitions are possible.
func (e *Endpoint) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateDisconnected
}
