// Package session implements the A2DP session aggregate: one Bluetooth
// device, its SDP client, its AVDTP client, and the reaction table that
// drives them in response to device connectivity updates.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sverkoye/a2dpaudiosink/internal/avdtp"
	"github.com/sverkoye/a2dpaudiosink/internal/bluetooth"
	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
	"github.com/sverkoye/a2dpaudiosink/internal/sdp"
	"github.com/sverkoye/a2dpaudiosink/internal/workerpool"
)

// abortTimeout bounds the AVDTP Abort transaction issued on teardown. Per
// spec.md §4.3, Abort failures are not actionable, so Close proceeds
// regardless of the outcome.
const abortTimeout = 2 * time.Second

// Status is the externally observable sink status (spec.md §3/§6).
type Status int

const (
	StatusUnassigned Status = iota
	StatusDisconnected
	StatusIdle
	StatusConfigured
	StatusOpen
	StatusStreaming
)

func (s Status) String() string {
	switch s {
	case StatusUnassigned:
		return "unassigned"
	case StatusDisconnected:
		return "disconnected"
	case StatusIdle:
		return "idle"
	case StatusConfigured:
		return "configured"
	case StatusOpen:
		return "open"
	case StatusStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// role is the session's private view of the peer's A2DP role, derived from
// SDP discovery.
type role int

const (
	roleUnknown role = iota
	roleSink
	roleNeither
)

// StatusListener is invoked on every status transition (spec.md §6's
// "statechange" event).
type StatusListener func(Status)

// Session owns one bluetooth.Device, one sdp.Client, one avdtp.Client, the
// last-derived sdp.AudioService, and the ordered list of every endpoint the
// most recent successful AVDTP negotiation's Discover returned. Guarded by mu exactly as spec.md §5's
// "Shared-resource policy" lists: {audioService, discoveredEPs, status}.
type Session struct {
	dialer l2cap.Dialer
	device bluetooth.Device
	pool   *workerpool.Pool

	mu           sync.Mutex
	role         role
	audioService sdp.AudioService
	discoveredEPs []avdtp.DiscoveredEndpoint
	status       Status
	closed       bool

	sdpClient   *sdp.Client
	avdtpClient *avdtp.Client
	endpoint    *avdtp.Endpoint

	listenersMu sync.Mutex
	listeners   []StatusListener
}

// New creates a Session bound to the given device, registering a callback
// that drives the reaction table on every device_updated notification.
// Registration failure (the device's callback slot is already occupied) is
// a fatal internal error per spec.md §7 and fails construction, never
// panics.
func New(dialer l2cap.Dialer, device bluetooth.Device, pool *workerpool.Pool) (*Session, error) {
	s := &Session{
		dialer: dialer,
		device: device,
		pool:   pool,
		status: StatusDisconnected,
	}

	if err := device.SetCallback(s.onDeviceUpdated); err != nil {
		if errors.Is(err, bluetooth.ErrCallbackAlreadyRegistered) {
			logf("fatal: device %s callback slot already occupied", device.RemoteID())
		}
		return nil, fmt.Errorf("session: register device callback: %w", err)
	}

	device.AddRef()
	return s, nil
}

// AddStatusListener registers a callback invoked on every status
// transition.
func (s *Session) AddStatusListener(l StatusListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Status returns the session's current externally observable status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Close tears down the session: issues AVDTP Abort on the negotiated
// endpoint (if any), unregisters the device callback, closes any open
// SDP/AVDTP sockets, and releases the device (spec.md §5 S4: "AVDTP Abort
// issued, sockets closed"). Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.device.ClearCallback()

	s.mu.Lock()
	sdpClient, avdtpClient, endpoint := s.sdpClient, s.avdtpClient, s.endpoint
	s.sdpClient, s.avdtpClient, s.endpoint = nil, nil, nil
	s.setStatusLocked(StatusUnassigned)
	s.mu.Unlock()

	if avdtpClient != nil && endpoint != nil {
		ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
		_ = avdtpClient.Abort(ctx, endpoint.SEID())
		cancel()
		endpoint.Abort()
	}

	if sdpClient != nil {
		_ = sdpClient.Close()
	}
	if avdtpClient != nil {
		_ = avdtpClient.Close()
	}

	s.device.Release()
	return nil
}

// setStatusLocked updates status and notifies listeners. Must be called
// with mu held; listeners run on a new goroutine per transition, so a
// listener that calls back into the Session waits for mu instead of
// deadlocking. Listeners of successive transitions are not ordered.
func (s *Session) setStatusLocked(next Status) {
	if s.status == next {
		return
	}
	s.status = next
	status := next

	s.listenersMu.Lock()
	listeners := append([]StatusListener(nil), s.listeners...)
	s.listenersMu.Unlock()

	go func() {
		for _, l := range listeners {
			l(status)
		}
	}()
}

// onDeviceUpdated is the bluetooth.Callback registered on the Device. It
// must be reentrant-safe against the controller thread and must not block
// longer than the controller's short callback lease (spec.md §5), so SDP
// discovery work is deferred to the worker pool.
func (s *Session) onDeviceUpdated() {
	connected := s.device.IsConnected()

	s.mu.Lock()
	currentRole := s.role
	s.mu.Unlock()

	if !connected {
		s.handleDisconnect()
		return
	}

	switch currentRole {
	case roleUnknown:
		if err := s.pool.Submit(s.runDiscoverySDP); err != nil {
			logf("failed to submit SDP discovery job: %v", err)
		}
	case roleSink:
		if err := s.pool.Submit(s.runAVDTPNegotiation); err != nil {
			logf("failed to submit AVDTP negotiation job: %v", err)
		}
	case roleNeither:
		logf("device %s has no audio sink service", s.device.RemoteID())
	}
}

// handleDisconnect implements the reaction table's "disconnected" row:
// close SDP and AVDTP, reset role to unknown, status -> disconnected.
func (s *Session) handleDisconnect() {
	s.mu.Lock()
	sdpClient, avdtpClient, endpoint := s.sdpClient, s.avdtpClient, s.endpoint
	s.sdpClient, s.avdtpClient, s.endpoint = nil, nil, nil
	s.role = roleUnknown
	s.audioService = sdp.AudioService{}
	s.discoveredEPs = nil
	s.setStatusLocked(StatusDisconnected)
	s.mu.Unlock()

	// The link is already gone, so there is no peer left to send Abort to;
	// just mark the endpoint tracker unusable (spec.md §4.3's Disconnect
	// transition).
	if endpoint != nil {
		endpoint.Disconnect()
	}
	if sdpClient != nil {
		_ = sdpClient.Close()
	}
	if avdtpClient != nil {
		_ = avdtpClient.Close()
	}
}

// runDiscoverySDP implements the reaction table's "connected, unknown role"
// row. It runs on a worker-pool goroutine, off the controller callback's
// own thread.
func (s *Session) runDiscoverySDP() {
	if !s.device.IsConnected() {
		return
	}

	client := sdp.NewClient(s.dialer, s.device.RemoteID())
	services, err := client.Discover(context.Background(), sdp.ServiceClassAudioSink)
	if err != nil {
		logf("sdp discover failed for %s: %v", s.device.RemoteID(), err)
		return
	}

	var audioService sdp.AudioService
	found := false
	for _, svc := range services {
		as, err := svc.DeriveAudioService()
		if err != nil {
			continue
		}
		if as.Role == sdp.RoleSink {
			audioService = as
			found = true
			break
		}
	}

	s.mu.Lock()
	if !s.device.IsConnected() {
		s.mu.Unlock()
		return
	}
	s.sdpClient = client
	if found {
		s.role = roleSink
		s.audioService = audioService
		s.setStatusLocked(StatusIdle)
	} else {
		s.role = roleNeither
		logf("no audio sink service on %s", s.device.RemoteID())
	}
	s.mu.Unlock()

	if found {
		if err := s.pool.Submit(s.runAVDTPNegotiation); err != nil {
			logf("failed to submit AVDTP negotiation job: %v", err)
		}
	}
}

// runAVDTPNegotiation implements the reaction table's "connected, sink
// role" row: open AVDTP, Discover, pick an SBC SEP, SetConfiguration ->
// GetConfiguration -> Open.
func (s *Session) runAVDTPNegotiation() {
	s.mu.Lock()
	audioService := s.audioService
	s.mu.Unlock()

	if !s.device.IsConnected() {
		return
	}

	client := avdtp.NewClient(s.dialer, s.device.RemoteID(), audioService.PSM)

	ctx := context.Background()
	eps, err := client.Discover(ctx)
	if err != nil {
		logf("avdtp discover failed for %s: %v", s.device.RemoteID(), err)
		return
	}

	var chosen *avdtp.DiscoveredEndpoint
	for i := range eps {
		if !eps[i].InUse && !eps[i].IsSource && eps[i].MediaType == avdtp.MediaTypeAudio {
			chosen = &eps[i]
			break
		}
	}
	if chosen == nil {
		logf("no usable SBC sink endpoint on %s", s.device.RemoteID())
		_ = client.Close()
		return
	}

	caps, err := client.GetCapabilities(ctx, chosen.SEID)
	if err != nil {
		logf("get_capabilities failed for %s: %v", s.device.RemoteID(), err)
		_ = client.Close()
		return
	}
	sbcInfo, ok := caps[avdtp.CategoryMediaCodec]
	if !ok {
		logf("peer %s advertised no media codec capability", s.device.RemoteID())
		_ = client.Close()
		return
	}
	if _, err := avdtp.DecodeSBCCapability(sbcInfo); err != nil {
		logf("malformed sbc capability from %s: %v", s.device.RemoteID(), err)
		_ = client.Close()
		return
	}
	cfg := avdtp.DefaultSBCConfiguration()

	localSEID := chosen.SEID
	endpoint := avdtp.NewEndpoint(chosen.SEID)
	if err := client.SetConfiguration(ctx, chosen.SEID, localSEID, cfg, caps[avdtp.CategoryContentProtection]); err != nil {
		logf("set_configuration failed for %s: %v", s.device.RemoteID(), err)
		_ = client.Close()
		return
	}
	if _, err := client.GetConfiguration(ctx, localSEID); err != nil {
		logf("get_configuration failed for %s: %v", s.device.RemoteID(), err)
		_ = client.Close()
		return
	}
	if err := endpoint.Configure(cfg); err != nil {
		logf("endpoint configure failed for %s: %v", s.device.RemoteID(), err)
		_ = client.Close()
		return
	}

	s.mu.Lock()
	if !s.device.IsConnected() {
		s.mu.Unlock()
		_ = client.Close()
		return
	}
	s.setStatusLocked(StatusConfigured)
	s.mu.Unlock()

	if err := client.Open(ctx, chosen.SEID); err != nil {
		logf("open failed for %s: %v", s.device.RemoteID(), err)
		_ = client.Close()
		return
	}
	if err := endpoint.Open(); err != nil {
		logf("endpoint open failed for %s: %v", s.device.RemoteID(), err)
		_ = client.Close()
		return
	}

	s.mu.Lock()
	if !s.device.IsConnected() {
		s.mu.Unlock()
		_ = client.Close()
		return
	}
	oldSDPClient := s.sdpClient
	s.sdpClient = nil
	s.avdtpClient = client
	s.endpoint = endpoint
	s.discoveredEPs = eps
	s.setStatusLocked(StatusOpen)
	s.mu.Unlock()

	// Once AVDTP is connected the SDP channel has served its purpose and is
	// disconnected (spec.md §4.2: "once AVDTP is connected, SDP is
	// disconnected").
	if oldSDPClient != nil {
		_ = oldSDPClient.Close()
	}
}

// logf writes a protocol-trace line under the [a2dp] prefix, keeping
// high-volume signalling chatter visually distinct from lifecycle logs
// (the original Thunder implementation's dedicated A2DPFlow trace
// category).
func logf(format string, args ...interface{}) {
	log.Printf("[a2dp] "+format, args...)
}
