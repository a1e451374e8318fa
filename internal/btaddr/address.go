// Package btaddr provides the Bluetooth device address type shared by the
// SDP, AVDTP, and session layers.
package btaddr

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Type discriminates between classic BR/EDR addresses and the two LE
// address flavors.
type Type uint8

const (
	Classic Type = iota
	LEPublic
	LERandom
)

func (t Type) String() string {
	switch t {
	case Classic:
		return "classic"
	case LEPublic:
		return "le_public"
	case LERandom:
		return "le_random"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Address is a 6-byte Bluetooth device address plus its address-type
// discriminator.
type Address struct {
	Bytes [6]byte
	Type  Type
}

// Parse converts a colon-separated BD_ADDR string ("AA:BB:CC:DD:EE:FF") into
// an Address. The resulting byte order is the printed order
// (most-significant octet first), not the reversed order the Linux
// sockaddr_l2 structure expects — see Reversed, which l2cap's rawL2 uses for
// that conversion.
func Parse(s string, typ Type) (Address, error) {
	var a Address
	a.Type = typ

	cleaned := strings.ReplaceAll(s, ":", "")
	if len(cleaned) != 12 {
		return a, fmt.Errorf("btaddr: invalid address %q: expected 12 hex digits", s)
	}

	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return a, fmt.Errorf("btaddr: invalid address %q: %w", s, err)
	}

	copy(a.Bytes[:], raw)
	return a, nil
}

// String renders the address in canonical "AA:BB:CC:DD:EE:FF" form.
func (a Address) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X",
		a.Bytes[0], a.Bytes[1], a.Bytes[2], a.Bytes[3], a.Bytes[4], a.Bytes[5])
}

// Reversed returns the address with its octets reversed, the byte order the
// Linux L2CAP sockaddr_l2 structure expects for bdaddr_t.
func (a Address) Reversed() [6]byte {
	var r [6]byte
	for i := 0; i < 6; i++ {
		r[i] = a.Bytes[5-i]
	}
	return r
}

// Equal reports whether two addresses carry the same bytes and type.
func (a Address) Equal(b Address) bool {
	return a.Bytes == b.Bytes && a.Type == b.Type
}

// IsZero reports whether the address is the all-zero address.
func (a Address) IsZero() bool {
	return a.Bytes == [6]byte{}
}
