package sdp

import (
	"context"
	"fmt"
	"time"

	"github.com/sverkoye/a2dpaudiosink/internal/l2cap"
)

// PSM is the well-known L2CAP PSM for SDP.
const PSM uint16 = 0x0001

const (
	pduServiceSearchAttributeRequest  = 0x06
	pduServiceSearchAttributeResponse = 0x07
	pduErrorResponse                  = 0x01
)

// maxContinuationLen is the boundary-behavior limit from spec.md §8: a
// continuation state blob longer than this is rejected as malformed.
const maxContinuationLen = 16

// baseTimeout is the per-read communication timeout the extended Discover
// budget is a multiple of (spec.md §4.2: "20x the base communication
// timeout").
const baseTimeout = 1 * time.Second

// DiscoverTimeout is the default per-transaction timeout for a full
// discover() call, covering every fragment of a continued response.
const DiscoverTimeout = 20 * baseTimeout

// Client drives ServiceSearchAttribute transactions against a remote SDP
// server over PSM 0x0001.
type Client struct {
	dialer l2cap.Dialer
	remote string

	sock l2cap.Socket
	txID uint16
}

// NewClient creates an SDP client bound to one remote device. The
// transport is not opened until Discover is called.
func NewClient(dialer l2cap.Dialer, remote string) *Client {
	return &Client{dialer: dialer, remote: remote}
}

// IsOpen reports whether the underlying L2CAP socket is currently open.
func (c *Client) IsOpen() bool {
	return c.sock != nil && c.sock.IsOpen()
}

// Close closes the underlying socket, if open. Safe to call repeatedly.
func (c *Client) Close() error {
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	return err
}

// Discover runs a ServiceSearchAttribute transaction for the given
// profile/class UUID (service search pattern) over the full 0x0000-0xFFFF
// attribute range, reassembling continuation-state fragments, and returns
// the decoded service records.
//
// The socket is opened on first use and closed once the full (possibly
// fragmented) response has been reassembled and parsed, per spec.md §3's
// SDP client lifecycle.
func (c *Client) Discover(ctx context.Context, want UUID) ([]Service, error) {
	ctx, cancel := context.WithTimeout(ctx, DiscoverTimeout)
	defer cancel()

	if c.sock == nil {
		sock, err := c.dialer.Dial(ctx, c.remote, PSM)
		if err != nil {
			return nil, fmt.Errorf("sdp: open: %w", err)
		}
		c.sock = sock
	}
	defer c.Close()

	var reassembled []byte
	var continuation []byte

	for {
		req := buildServiceSearchAttributeRequest(c.nextTxID(), want, continuation)
		if err := c.sock.Send(req); err != nil {
			return nil, fmt.Errorf("sdp: send: %w", err)
		}

		resp, err := c.sock.Recv(ctx)
		if err != nil {
			return nil, fmt.Errorf("sdp: recv: %w", err)
		}

		chunk, nextCont, err := parseServiceSearchAttributeResponse(resp)
		if err != nil {
			return nil, fmt.Errorf("sdp: protocol error: %w", err)
		}

		reassembled = append(reassembled, chunk...)

		if len(nextCont) == 0 {
			break
		}
		if len(nextCont) > maxContinuationLen {
			return nil, fmt.Errorf("sdp: protocol error: continuation state too long (%d bytes)", len(nextCont))
		}
		continuation = nextCont
	}

	return parseAttributeLists(reassembled)
}

func (c *Client) nextTxID() uint16 {
	c.txID++
	return c.txID
}

func buildServiceSearchAttributeRequest(txID uint16, want UUID, continuation []byte) []byte {
	pattern := Seq(UUIDElement(want))
	patternBytes := EncodeElement(pattern)

	// AttributeIDList: one range element covering 0x0000-0xFFFF, encoded as
	// a 4-byte unsigned int (high 16 bits = low ID, low 16 bits = high ID).
	attrRange := Element{Type: TypeUint, UintVal: 0x0000FFFF, Raw: []byte{0x00, 0x00, 0xFF, 0xFF}}
	attrList := Seq(attrRange)
	attrListBytes := EncodeElement(attrList)

	params := make([]byte, 0, len(patternBytes)+2+len(attrListBytes)+1+len(continuation))
	params = append(params, patternBytes...)
	params = append(params, 0xFF, 0xFF) // MaximumAttributeByteCount
	params = append(params, attrListBytes...)
	params = append(params, byte(len(continuation)))
	params = append(params, continuation...)

	buf := make([]byte, 0, 5+len(params))
	buf = append(buf, pduServiceSearchAttributeRequest)
	buf = append(buf, byte(txID>>8), byte(txID))
	buf = append(buf, byte(len(params)>>8), byte(len(params)))
	buf = append(buf, params...)
	return buf
}

func parseServiceSearchAttributeResponse(resp []byte) (chunk, continuation []byte, err error) {
	if len(resp) < 5 {
		return nil, nil, fmt.Errorf("response too short")
	}
	if resp[0] == pduErrorResponse {
		return nil, nil, fmt.Errorf("server returned ErrorResponse")
	}
	if resp[0] != pduServiceSearchAttributeResponse {
		return nil, nil, fmt.Errorf("unexpected PDU id 0x%02x", resp[0])
	}

	paramLen := int(resp[3])<<8 | int(resp[4])
	params := resp[5:]
	if len(params) < paramLen {
		return nil, nil, fmt.Errorf("truncated response")
	}
	params = params[:paramLen]

	if len(params) < 2 {
		return nil, nil, fmt.Errorf("response missing attribute byte count")
	}
	attrByteCount := int(params[0])<<8 | int(params[1])
	rest := params[2:]
	if len(rest) < attrByteCount {
		return nil, nil, fmt.Errorf("truncated attribute list chunk")
	}
	chunk = rest[:attrByteCount]
	rest = rest[attrByteCount:]

	if len(rest) < 1 {
		return nil, nil, fmt.Errorf("response missing continuation state")
	}
	contLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < contLen {
		return nil, nil, fmt.Errorf("truncated continuation state")
	}
	continuation = rest[:contLen]

	return chunk, continuation, nil
}

// parseAttributeLists parses a reassembled ServiceSearchAttribute response
// body: a data-element Sequence whose children are each one service
// record's attribute list (itself a Sequence of (id, value) pairs).
func parseAttributeLists(buf []byte) ([]Service, error) {
	if len(buf) == 0 {
		return nil, nil
	}

	elem, n, err := DecodeElement(buf)
	if err != nil {
		return nil, fmt.Errorf("malformed element: %w", err)
	}
	if n != len(buf) {
		return nil, fmt.Errorf("trailing bytes after attribute lists (%d of %d consumed)", n, len(buf))
	}
	if elem.Type != TypeSequence {
		return nil, fmt.Errorf("attribute lists root is not a sequence")
	}

	services := make([]Service, 0, len(elem.Children))
	for _, child := range elem.Children {
		svc, err := parseServiceAttributeList(child)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, nil
}
