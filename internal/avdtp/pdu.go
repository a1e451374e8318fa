// Package avdtp implements the Audio/Video Distribution Transport Protocol
// signalling layer: the PDU header and fragment reassembly (this file),
// capability maps and the SBC codec blob (capability.go, sbc.go), the
// per-SEID endpoint state machine (endpoint.go), and the client that drives
// the nine signalling transactions (client.go).
package avdtp

import "fmt"

// PacketType is the signalling header's byte-0 bits 3..2.
type PacketType uint8

const (
	PacketSingle   PacketType = 0
	PacketStart    PacketType = 1
	PacketContinue PacketType = 2
	PacketEnd      PacketType = 3
)

// MessageType is the signalling header's byte-0 bits 1..0.
type MessageType uint8

const (
	MessageCommand         MessageType = 0
	MessageGeneralReject   MessageType = 1
	MessageResponseAccept  MessageType = 2
	MessageResponseReject  MessageType = 3
)

// SignalID is the signalling header's byte 1.
type SignalID uint8

const (
	SignalDiscover          SignalID = 1
	SignalGetCapabilities   SignalID = 2
	SignalSetConfiguration  SignalID = 3
	SignalGetConfiguration  SignalID = 4
	SignalReconfigure       SignalID = 5
	SignalOpen              SignalID = 6
	SignalStart             SignalID = 7
	SignalClose             SignalID = 8
	SignalSuspend           SignalID = 9
	SignalAbort             SignalID = 10
	SignalSecurityControl   SignalID = 11
)

// maxReassembledLen is the boundary behavior from spec.md §8: a fragmented
// message whose reassembled length exceeds this is rejected.
const maxReassembledLen = 512

// header is one parsed signalling packet header (byte 0 and, for a single
// or start packet, byte 1/2).
type header struct {
	Label       uint8 // transaction label, 0..15
	PacketType  PacketType
	MessageType MessageType
	Signal      SignalID // only valid for Single/Start packets
	NumPackets  uint8    // only valid for Start packets (byte 1)
}

// decodeHeader parses the fixed header fields out of one physical
// signalling packet. Single/Start packets carry the signal id (or packet
// count, for Start) in byte 1; Continue/End packets do not.
func decodeHeader(buf []byte) (header, int, error) {
	if len(buf) < 1 {
		return header{}, 0, fmt.Errorf("avdtp: empty packet")
	}
	b0 := buf[0]
	h := header{
		Label:       b0 >> 4,
		PacketType:  PacketType((b0 >> 2) & 0x03),
		MessageType: MessageType(b0 & 0x03),
	}

	switch h.PacketType {
	case PacketSingle:
		if len(buf) < 2 {
			return header{}, 0, fmt.Errorf("avdtp: truncated single-packet header")
		}
		h.Signal = SignalID(buf[1])
		return h, 2, nil
	case PacketStart:
		if len(buf) < 3 {
			return header{}, 0, fmt.Errorf("avdtp: truncated start-packet header")
		}
		h.NumPackets = buf[1]
		h.Signal = SignalID(buf[2])
		return h, 3, nil
	case PacketContinue, PacketEnd:
		return h, 1, nil
	default:
		return header{}, 0, fmt.Errorf("avdtp: invalid packet type")
	}
}

// EncodeSingle builds a non-fragmented signalling packet.
func EncodeSingle(label uint8, mt MessageType, signal SignalID, payload []byte) []byte {
	b0 := (label&0x0F)<<4 | byte(PacketSingle)<<2 | byte(mt)
	buf := make([]byte, 0, 2+len(payload))
	buf = append(buf, b0, byte(signal))
	buf = append(buf, payload...)
	return buf
}

// Reassembler accumulates Start/Continue/End fragments for one outstanding
// transaction label and rejects mismatched labels or oversized results.
type Reassembler struct {
	label    uint8
	signal   SignalID
	mtype    MessageType
	buf      []byte
	active   bool
}

// Feed processes one physical packet. It returns (payload, signal, mtype,
// true, nil) once a complete message (single packet, or the End of a
// fragmented one) has been assembled; otherwise it returns ok=false while
// more fragments are expected.
func (r *Reassembler) Feed(pkt []byte) (payload []byte, signal SignalID, mtype MessageType, ok bool, err error) {
	h, n, err := decodeHeader(pkt)
	if err != nil {
		return nil, 0, 0, false, err
	}
	content := pkt[n:]

	switch h.PacketType {
	case PacketSingle:
		return content, h.Signal, h.MessageType, true, nil

	case PacketStart:
		if r.active {
			return nil, 0, 0, false, fmt.Errorf("avdtp: start packet while a reassembly is already active")
		}
		r.active = true
		r.label = h.Label
		r.signal = h.Signal
		r.mtype = h.MessageType
		r.buf = append([]byte(nil), content...)
		if len(r.buf) > maxReassembledLen {
			r.reset()
			return nil, 0, 0, false, fmt.Errorf("avdtp: reassembled message exceeds %d bytes", maxReassembledLen)
		}
		return nil, 0, 0, false, nil

	case PacketContinue, PacketEnd:
		if !r.active {
			return nil, 0, 0, false, fmt.Errorf("avdtp: continuation packet with no active reassembly")
		}
		if h.Label != r.label {
			r.reset()
			return nil, 0, 0, false, fmt.Errorf("avdtp: mismatched transaction label in continuation (got %d, want %d)", h.Label, r.label)
		}
		r.buf = append(r.buf, content...)
		if len(r.buf) > maxReassembledLen {
			r.reset()
			return nil, 0, 0, false, fmt.Errorf("avdtp: reassembled message exceeds %d bytes", maxReassembledLen)
		}
		if h.PacketType == PacketEnd {
			out := r.buf
			signal, mtype = r.signal, r.mtype
			r.reset()
			return out, signal, mtype, true, nil
		}
		return nil, 0, 0, false, nil

	default:
		return nil, 0, 0, false, fmt.Errorf("avdtp: invalid packet type")
	}
}

func (r *Reassembler) reset() {
	r.active = false
	r.buf = nil
}
