// Package l2cap declares the L2CAP socket abstraction the SDP and AVDTP
// clients are built on, plus the one concrete implementation this module
// ships: a Linux AF_BLUETOOTH/BTPROTO_L2CAP raw socket (socket_linux.go).
package l2cap

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by Send/Recv once the socket has been closed, so
// pending readers unblock with a recognizable error instead of a raw
// syscall errno.
var ErrClosed = errors.New("l2cap: socket closed")

const (
	// DefaultOpenTimeout is the suspension budget for opening a socket
	// (spec.md §5).
	DefaultOpenTimeout = 1 * time.Second
	// DefaultCloseTimeout is the suspension budget for closing a socket.
	DefaultCloseTimeout = 5 * time.Second
)

// Socket is an open, connected L2CAP channel to one PSM on one remote
// device. Both the SDP client (PSM 0x0001) and the AVDTP client (a
// peer-advertised PSM) are built against this interface so they never
// depend on the platform socket API directly.
type Socket interface {
	// Send writes one L2CAP packet. L2CAP is packet-oriented (SOCK_SEQPACKET
	// under Linux), so implementations must not coalesce or split writes.
	Send(p []byte) error
	// Recv reads one L2CAP packet, blocking until data arrives, the
	// context is cancelled, or the socket is closed.
	Recv(ctx context.Context) ([]byte, error)
	// IsOpen reports whether the socket is still usable.
	IsOpen() bool
	// Close releases the underlying transport. Safe to call more than
	// once.
	Close() error
}

// Dialer opens a Socket to a remote address on a given PSM. It is the seam
// the SDP/AVDTP clients use, so tests can substitute an in-memory pipe
// instead of a real Linux socket.
type Dialer interface {
	Dial(ctx context.Context, remote string, psm uint16) (Socket, error)
}
