package avdtp

import "fmt"

// ServiceCategory is an AVDTP capability category id, as carried in a
// GetCapabilities response or SetConfiguration request service capability
// TLV.
type ServiceCategory uint8

const (
	CategoryMediaTransport    ServiceCategory = 1
	CategoryReporting         ServiceCategory = 2
	CategoryRecovery          ServiceCategory = 3
	CategoryContentProtection ServiceCategory = 4
	CategoryHeaderCompression ServiceCategory = 5
	CategoryMultiplexing      ServiceCategory = 6
	CategoryMediaCodec        ServiceCategory = 7
	CategoryDelayReporting    ServiceCategory = 8
)

// MediaType is the upper nibble of a media codec capability's first info
// byte.
type MediaType uint8

const (
	MediaTypeAudio MediaType = 0
)

// MediaCodecType is the second info byte of a media codec capability.
type MediaCodecType uint8

const (
	CodecSBC MediaCodecType = 0
)

// Capabilities is the set of service capability TLV entries exchanged
// during GetCapabilities/SetConfiguration. Keyed by category since AVDTP
// never repeats a category within one capability list; being a map, it
// keeps no order of its own.
type Capabilities map[ServiceCategory][]byte

// EncodeCapabilities serializes a capability set as a sequence of
// (category, LOSC, info...) entries. MediaTransport's info is always empty.
// MediaTransport, if present, is emitted first; the remaining categories
// follow in map iteration order, which is not fixed.
func EncodeCapabilities(caps Capabilities) []byte {
	var buf []byte
	// MediaTransport, if present, conventionally comes first.
	if info, ok := caps[CategoryMediaTransport]; ok {
		buf = appendCapabilityEntry(buf, CategoryMediaTransport, info)
	}
	for cat, info := range caps {
		if cat == CategoryMediaTransport {
			continue
		}
		buf = appendCapabilityEntry(buf, cat, info)
	}
	return buf
}

func appendCapabilityEntry(buf []byte, cat ServiceCategory, info []byte) []byte {
	buf = append(buf, byte(cat), byte(len(info)))
	buf = append(buf, info...)
	return buf
}

// DecodeCapabilities parses a sequence of capability TLV entries.
func DecodeCapabilities(buf []byte) (Capabilities, error) {
	caps := make(Capabilities)
	for len(buf) > 0 {
		if len(buf) < 2 {
			return nil, fmt.Errorf("avdtp: truncated capability entry header")
		}
		cat := ServiceCategory(buf[0])
		losc := int(buf[1])
		buf = buf[2:]
		if len(buf) < losc {
			return nil, fmt.Errorf("avdtp: truncated capability entry info (category %d)", cat)
		}
		caps[cat] = append([]byte(nil), buf[:losc]...)
		buf = buf[losc:]
	}
	return caps, nil
}

// EchoContentProtection builds the sink's ContentProtection capability
// response: the type field of a requested ContentProtection capability is
// echoed back verbatim, since this engine does not itself negotiate content
// protection schemes (spec.md §4.3, "content protection is echoed, not
// negotiated").
func EchoContentProtection(requested []byte) []byte {
	return append([]byte(nil), requested...)
}
