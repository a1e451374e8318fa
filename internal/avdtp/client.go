package avdtp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
)

// DefaultPSM is the typical L2CAP PSM for AVDTP signalling, used when a
// caller has no peer-advertised PSM (e.g. from the SDP L2CAP protocol
// descriptor) to pass instead.
const DefaultPSM uint16 = 0x0019

const (
	roundTripTimeout = 2 * time.Second
	openTimeout      = 1 * time.Second
	closeTimeout     = 5 * time.Second
)

// Client drives AVDTP signalling transactions against one remote stream
// endpoint over a single L2CAP signalling channel.
type Client struct {
	dialer l2cap.Dialer
	remote string
	psm    uint16

	mu    sync.Mutex
	sock  l2cap.Socket
	label uint8
}

// NewClient creates an AVDTP signalling client bound to one remote device
// and the L2CAP PSM the peer advertised for AVDTP in its SDP record (spec.md
// §4.3: "open AVDTP to peer PSM"). psm of 0 falls back to DefaultPSM. The
// transport is opened lazily on first use.
func NewClient(dialer l2cap.Dialer, remote string, psm uint16) *Client {
	if psm == 0 {
		psm = DefaultPSM
	}
	return &Client{dialer: dialer, remote: remote, psm: psm}
}

// IsOpen reports whether the underlying signalling channel is open.
func (c *Client) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sock != nil && c.sock.IsOpen()
}

// Close tears down the signalling channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	_ = ctx // close itself is not context-aware at the socket layer
	err := c.sock.Close()
	c.sock = nil
	return err
}

func (c *Client) ensureOpen(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sock != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()
	sock, err := c.dialer.Dial(ctx, c.remote, c.psm)
	if err != nil {
		return fmt.Errorf("avdtp: open: %w", err)
	}
	c.sock = sock
	return nil
}

// nextLabel allocates the next transaction label, reusing a slot mod 16.
// Since this client issues one transaction at a time and waits for its
// response (or a 2s timeout) before the next, a label is never reused while
// still outstanding.
func (c *Client) nextLabel() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	l := c.label
	c.label = (c.label + 1) % 16
	return l
}

// transact sends one signalling command and waits for its matching response,
// accumulating fragments if the peer responds with Start/Continue/End
// packets. It fails closed if the peer sends GeneralReject or
// ResponseReject.
func (c *Client) transact(ctx context.Context, signal SignalID, payload []byte) ([]byte, error) {
	if err := c.ensureOpen(ctx); err != nil {
		return nil, err
	}

	label := c.nextLabel()
	req := EncodeSingle(label, MessageCommand, signal, payload)

	c.mu.Lock()
	sock := c.sock
	c.mu.Unlock()
	if sock == nil {
		return nil, fmt.Errorf("avdtp: not connected")
	}

	if err := sock.Send(req); err != nil {
		return nil, fmt.Errorf("avdtp: send: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, roundTripTimeout)
	defer cancel()

	var reasm Reassembler
	for {
		resp, err := sock.Recv(ctx)
		if err != nil {
			return nil, fmt.Errorf("avdtp: recv: %w", err)
		}
		body, _, mtype, ok, err := reasm.Feed(resp)
		if err != nil {
			return nil, fmt.Errorf("avdtp: reassembly: %w", err)
		}
		if !ok {
			continue
		}
		switch mtype {
		case MessageResponseAccept:
			return body, nil
		case MessageResponseReject, MessageGeneralReject:
			return nil, fmt.Errorf("avdtp: signal %d rejected by peer", signal)
		default:
			return nil, fmt.Errorf("avdtp: unexpected message type %d in response", mtype)
		}
	}
}

// Discover issues AVDTP_DISCOVER and returns the peer's advertised stream
// endpoints.
func (c *Client) Discover(ctx context.Context) ([]DiscoveredEndpoint, error) {
	body, err := c.transact(ctx, SignalDiscover, nil)
	if err != nil {
		return nil, err
	}
	var eps []DiscoveredEndpoint
	for i := 0; i+1 < len(body); i += 2 {
		b0, b1 := body[i], body[i+1]
		eps = append(eps, DiscoveredEndpoint{
			SEID:      SEID(b0 >> 2),
			InUse:     b0&0x02 != 0,
			MediaType: MediaType(b1 >> 4),
			IsSource:  b1&0x08 != 0,
		})
	}
	return eps, nil
}

// GetCapabilities issues AVDTP_GET_CAPABILITIES for the given remote SEID.
func (c *Client) GetCapabilities(ctx context.Context, seid SEID) (Capabilities, error) {
	body, err := c.transact(ctx, SignalGetCapabilities, []byte{byte(seid) << 2})
	if err != nil {
		return nil, err
	}
	return DecodeCapabilities(body)
}

// SetConfiguration issues AVDTP_SET_CONFIGURATION, proposing the given SBC
// configuration (and, if non-empty, an echoed content protection blob) for
// (acpSEID, intSEID).
func (c *Client) SetConfiguration(ctx context.Context, acpSEID, intSEID SEID, cfg SBCConfiguration, contentProtection []byte) error {
	caps := Capabilities{
		CategoryMediaTransport: {},
		CategoryMediaCodec:     EncodeSBCConfiguration(cfg),
	}
	if len(contentProtection) > 0 {
		caps[CategoryContentProtection] = EchoContentProtection(contentProtection)
	}

	payload := make([]byte, 0, 2+32)
	payload = append(payload, byte(acpSEID)<<2, byte(intSEID)<<2)
	payload = append(payload, EncodeCapabilities(caps)...)

	_, err := c.transact(ctx, SignalSetConfiguration, payload)
	return err
}

// GetConfiguration issues AVDTP_GET_CONFIGURATION for the given local SEID.
func (c *Client) GetConfiguration(ctx context.Context, seid SEID) (SBCConfiguration, error) {
	body, err := c.transact(ctx, SignalGetConfiguration, []byte{byte(seid) << 2})
	if err != nil {
		return SBCConfiguration{}, err
	}
	caps, err := DecodeCapabilities(body)
	if err != nil {
		return SBCConfiguration{}, err
	}
	info, ok := caps[CategoryMediaCodec]
	if !ok {
		return SBCConfiguration{}, fmt.Errorf("avdtp: get_configuration response missing media codec capability")
	}
	return DecodeSBCConfiguration(info)
}

// Open issues AVDTP_OPEN for the given SEID, establishing the media
// transport channel.
func (c *Client) Open(ctx context.Context, seid SEID) error {
	_, err := c.transact(ctx, SignalOpen, []byte{byte(seid) << 2})
	return err
}

// Start issues AVDTP_START for the given SEIDs.
func (c *Client) Start(ctx context.Context, seids ...SEID) error {
	payload := make([]byte, 0, len(seids))
	for _, s := range seids {
		payload = append(payload, byte(s)<<2)
	}
	_, err := c.transact(ctx, SignalStart, payload)
	return err
}

// Suspend issues AVDTP_SUSPEND for the given SEIDs.
func (c *Client) Suspend(ctx context.Context, seids ...SEID) error {
	payload := make([]byte, 0, len(seids))
	for _, s := range seids {
		payload = append(payload, byte(s)<<2)
	}
	_, err := c.transact(ctx, SignalSuspend, payload)
	return err
}

// CloseStream issues AVDTP_CLOSE for the given SEID. (Named CloseStream,
// not Close, since Close is reserved for tearing down the signalling
// channel itself.)
func (c *Client) CloseStream(ctx context.Context, seid SEID) error {
	_, err := c.transact(ctx, SignalClose, []byte{byte(seid) << 2})
	return err
}

// Abort issues AVDTP_ABORT for the given SEID. Per spec.md §4.3, abort
// failures are not actionable: the caller should treat the endpoint as
// idle regardless of the transaction's outcome.
func (c *Client) Abort(ctx context.Context, seid SEID) error {
	_, err := c.transact(ctx, SignalAbort, []byte{byte(seid) << 2})
	return err
}
