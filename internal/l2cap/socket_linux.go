//go:build linux

package l2cap

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/sverkoye/a2dpaudiosink/internal/btaddr"
)

// Protocol family / socket constants for Bluetooth L2CAP on Linux, written
// as the kernel's numeric values. Mirrors the teacher's internal/aap/client.go;
// the socket is created with unix.Socket, while connect is still issued as a
// raw unix.Syscall(SYS_CONNECT) over the hand-built sockaddr from rawL2.
const (
	afBluetooth  = 31
	btProtoL2CAP = 0
)

// rawL2 builds the raw sockaddr bytes for AF_BLUETOOTH/L2CAP: family(2) +
// psm(2) + bdaddr(6) + cid(2) + bdaddr_type(1), little-endian, matching the
// kernel ABI the teacher's sockaddr_l2 struct models.
func rawL2(psm uint16, addr btaddr.Address) [14]byte {
	var buf [14]byte
	buf[0] = byte(afBluetooth)
	buf[1] = byte(afBluetooth >> 8)
	buf[2] = byte(psm)
	buf[3] = byte(psm >> 8)
	rev := addr.Reversed()
	copy(buf[4:10], rev[:])
	// cid left zero: let the kernel pick based on psm.
	buf[12] = byte(addr.Type)
	return buf
}

// LinuxDialer opens real AF_BLUETOOTH/BTPROTO_L2CAP sockets. This is the
// engine's one concrete l2cap.Dialer, generalized from the teacher's
// internal/aap/client.go (which dialed a single hardcoded PSM for Apple's
// proprietary protocol) to accept an arbitrary PSM so it serves both the
// SDP PSM 0x0001 and AVDTP's peer-advertised PSM.
type LinuxDialer struct{}

func (LinuxDialer) Dial(ctx context.Context, remote string, psm uint16) (Socket, error) {
	addr, err := btaddr.Parse(remote, btaddr.Classic)
	if err != nil {
		return nil, fmt.Errorf("l2cap: %w", err)
	}

	fd, err := unix.Socket(afBluetooth, unix.SOCK_SEQPACKET, btProtoL2CAP)
	if err != nil {
		return nil, fmt.Errorf("l2cap: socket: %w", err)
	}

	sa := rawL2(psm, addr)

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd),
			uintptr(unsafe.Pointer(&sa)), uintptr(len(sa)))
		if errno != 0 {
			done <- result{err: errno}
			return
		}
		done <- result{}
	}()

	select {
	case <-ctx.Done():
		unix.Close(fd)
		return nil, fmt.Errorf("l2cap: connect to %s psm 0x%04x: %w", remote, psm, ctx.Err())
	case r := <-done:
		if r.err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("l2cap: connect to %s psm 0x%04x: %w", remote, psm, r.err)
		}
	}

	s := &linuxSocket{fd: fd, remote: remote, psm: psm}
	s.startReadPump()
	return s, nil
}

// linuxSocket is a connected L2CAP socket. Reads run on a dedicated pump
// goroutine (the spec's "one socket I/O thread per open socket") feeding a
// channel so Recv can select on context cancellation; Close unblocks the
// pump by closing the fd, matching the spec's cancellation model (closing
// the fd is what unblocks a pending blocking read).
type linuxSocket struct {
	fd     int
	remote string
	psm    uint16

	mu     sync.Mutex
	open   bool
	closed chan struct{}
	inbox  chan []byte
}

func (s *linuxSocket) startReadPump() {
	s.mu.Lock()
	s.open = true
	s.closed = make(chan struct{})
	s.inbox = make(chan []byte, 8)
	s.mu.Unlock()

	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := unix.Read(s.fd, buf)
			if err != nil || n == 0 {
				close(s.inbox)
				return
			}
			pkt := make([]byte, n)
			copy(pkt, buf[:n])
			select {
			case s.inbox <- pkt:
			case <-s.closed:
				return
			}
		}
	}()
}

func (s *linuxSocket) Send(p []byte) error {
	if !s.IsOpen() {
		return ErrClosed
	}
	n, err := unix.Write(s.fd, p)
	if err != nil {
		return fmt.Errorf("l2cap: write to %s psm 0x%04x: %w", s.remote, s.psm, err)
	}
	if n != len(p) {
		return fmt.Errorf("l2cap: short write to %s psm 0x%04x: %d/%d bytes", s.remote, s.psm, n, len(p))
	}
	return nil
}

func (s *linuxSocket) Recv(ctx context.Context) ([]byte, error) {
	if !s.IsOpen() {
		return nil, ErrClosed
	}
	select {
	case pkt, ok := <-s.inbox:
		if !ok {
			return nil, ErrClosed
		}
		return pkt, nil
	case <-s.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("l2cap: recv from %s psm 0x%04x: %w", s.remote, s.psm, ctx.Err())
	}
}

func (s *linuxSocket) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *linuxSocket) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	closed := s.closed
	s.mu.Unlock()

	close(closed)
	return unix.Close(s.fd)
}
