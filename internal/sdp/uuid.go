package sdp

import (
	"encoding/binary"
	"fmt"

	googleuuid "github.com/google/uuid"
)

// BaseUUID is the Bluetooth base UUID that 16-/32-bit short-form UUIDs are
// expanded against: 00000000-0000-1000-8000-00805F9B34FB.
var BaseUUID = googleuuid.MustParse("00000000-0000-1000-8000-00805F9B34FB")

// UUID wraps google/uuid's 128-bit type, remembering the short form (if any)
// it was parsed from so re-encoding reproduces the original wire width —
// the round-trip property spec.md §8 invariant 4 requires.
type UUID struct {
	Full  googleuuid.UUID
	Short int // 0 = no short form (always emit 128-bit), 16 or 32
}

// UUID16 builds a UUID from its 16-bit short form, expanded against
// BaseUUID.
func UUID16(v uint16) UUID {
	return UUID{Full: expand32(uint32(v)), Short: 16}
}

// UUID32 builds a UUID from its 32-bit short form, expanded against
// BaseUUID.
func UUID32(v uint32) UUID {
	return UUID{Full: expand32(v), Short: 32}
}

// UUID128 builds a UUID that is always encoded in full 128-bit form.
func UUID128(u googleuuid.UUID) UUID {
	return UUID{Full: u, Short: 0}
}

func expand32(v uint32) googleuuid.UUID {
	u := BaseUUID
	binary.BigEndian.PutUint32(u[0:4], v)
	return u
}

// ShortForm reports whether Full is representable as a 16- or 32-bit short
// form against BaseUUID (i.e. everything but bytes 0..3 matches BaseUUID),
// independent of how the UUID was originally parsed.
func (u UUID) ShortForm() (v uint32, width int, ok bool) {
	var candidate googleuuid.UUID = BaseUUID
	binary.BigEndian.PutUint32(candidate[0:4], binary.BigEndian.Uint32(u.Full[0:4]))
	if candidate != u.Full {
		return 0, 0, false
	}
	full := binary.BigEndian.Uint32(u.Full[0:4])
	if full <= 0xFFFF {
		return full, 16, true
	}
	return full, 32, true
}

// bytes returns the wire content for this UUID: 2, 4, or 16 bytes depending
// on the form it was parsed/constructed with.
func (u UUID) bytes() []byte {
	switch u.Short {
	case 16:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(binary.BigEndian.Uint32(u.Full[0:4])))
		return b
	case 32:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, binary.BigEndian.Uint32(u.Full[0:4]))
		return b
	default:
		return u.Full[:]
	}
}

// uuidFromBytes parses a UUID data-element's content (2, 4, or 16 bytes).
func uuidFromBytes(b []byte) (UUID, error) {
	switch len(b) {
	case 2:
		return UUID16(binary.BigEndian.Uint16(b)), nil
	case 4:
		return UUID32(binary.BigEndian.Uint32(b)), nil
	case 16:
		var full googleuuid.UUID
		copy(full[:], b)
		return UUID128(full), nil
	default:
		return UUID{}, fmt.Errorf("invalid UUID length %d", len(b))
	}
}

// String renders the UUID's canonical 128-bit form, regardless of the
// short form it may have been parsed from.
func (u UUID) String() string {
	return u.Full.String()
}

// Equal compares UUIDs by their canonical 128-bit value, so a 16-bit short
// form and its 128-bit expansion compare equal.
func (u UUID) Equal(o UUID) bool {
	return u.Full == o.Full
}

// Well-known Bluetooth SDP UUIDs used by this engine.
var (
	ServiceClassAudioSource      = UUID16(0x110A)
	ServiceClassAudioSink        = UUID16(0x110B)
	ServiceClassAVRemoteControl  = UUID16(0x110E)
	ProfileAdvancedAudioDistrib  = UUID16(0x110D)
	ProtocolL2CAP                = UUID16(0x0100)
	ProtocolAVDTP                = UUID16(0x0019)
	ProtocolSDP                  = UUID16(0x0001)
	AttrServiceRecordHandle      = uint16(0x0000)
	AttrServiceClassIDList       = uint16(0x0001)
	AttrProtocolDescriptorList   = uint16(0x0004)
	AttrBluetoothProfileDescList = uint16(0x0009)
	AttrSupportedFeatures        = uint16(0x0311)
)
