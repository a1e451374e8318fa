package avdtp

import "fmt"

// SBC sampling frequency bits (capability bitmask / configuration single bit).
const (
	SBCFreq48000 uint8 = 1 << 0
	SBCFreq44100 uint8 = 1 << 1
	SBCFreq32000 uint8 = 1 << 2
	SBCFreq16000 uint8 = 1 << 3
)

// SBC channel mode bits.
const (
	SBCChannelJointStereo uint8 = 1 << 0
	SBCChannelStereo      uint8 = 1 << 1
	SBCChannelDual        uint8 = 1 << 2
	SBCChannelMono        uint8 = 1 << 3
)

// SBC block length bits.
const (
	SBCBlocks16 uint8 = 1 << 0
	SBCBlocks12 uint8 = 1 << 1
	SBCBlocks8  uint8 = 1 << 2
	SBCBlocks4  uint8 = 1 << 3
)

// SBC subbands bits.
const (
	SBCSubbands8 uint8 = 1 << 0
	SBCSubbands4 uint8 = 1 << 1
)

// SBC allocation method bits.
const (
	SBCAllocLoudness uint8 = 1 << 0
	SBCAllocSNR      uint8 = 1 << 1
)

const (
	minBitpool = 2
	maxBitpool = 250
)

// SBCCapability is the endpoint's advertised SBC support: each field is a
// bitmask of the values it accepts (spec.md §4.1, SBC media codec
// capability).
type SBCCapability struct {
	SamplingFrequencies uint8
	ChannelModes        uint8
	BlockLengths        uint8
	Subbands            uint8
	AllocationMethods   uint8
	MinBitpool          uint8
	MaxBitpool          uint8
}

// SBCConfiguration is one concrete, negotiated SBC configuration: exactly
// one bit set in each of the first five fields.
type SBCConfiguration struct {
	SamplingFrequency uint8
	ChannelMode       uint8
	BlockLength       uint8
	Subbands          uint8
	AllocationMethod  uint8
	MinBitpool        uint8
	MaxBitpool        uint8
}

// encodeSBCInfo serializes an SBCCapability (or, equivalently, an
// SBCConfiguration whose fields each have exactly one bit set) into the
// 4-byte SBC-specific info block.
func encodeSBCInfo(freq, chmode, blocks, subbands, alloc, minBP, maxBP uint8) []byte {
	return []byte{
		freq<<4 | chmode,
		blocks<<4 | subbands<<2 | alloc,
		minBP,
		maxBP,
	}
}

// EncodeSBCCapability builds the full 6-byte media codec capability info
// (media_type, codec_type, then the 4-byte SBC-specific block) for a
// MediaCodec capability entry.
func EncodeSBCCapability(c SBCCapability) []byte {
	buf := make([]byte, 0, 6)
	buf = append(buf, byte(MediaTypeAudio)<<4, byte(CodecSBC))
	buf = append(buf, encodeSBCInfo(c.SamplingFrequencies, c.ChannelModes, c.BlockLengths, c.Subbands, c.AllocationMethods, c.MinBitpool, c.MaxBitpool)...)
	return buf
}

// EncodeSBCConfiguration builds the full 6-byte media codec configuration
// info for a SetConfiguration request.
func EncodeSBCConfiguration(c SBCConfiguration) []byte {
	buf := make([]byte, 0, 6)
	buf = append(buf, byte(MediaTypeAudio)<<4, byte(CodecSBC))
	buf = append(buf, encodeSBCInfo(c.SamplingFrequency, c.ChannelMode, c.BlockLength, c.Subbands, c.AllocationMethod, c.MinBitpool, c.MaxBitpool)...)
	return buf
}

// decodeSBCInfo parses a 6-byte media codec info block (media_type,
// codec_type, then the 4-byte SBC block) shared by capability and
// configuration encodings.
func decodeSBCInfo(info []byte) (freq, chmode, blocks, subbands, alloc, minBP, maxBP uint8, err error) {
	if len(info) != 6 {
		return 0, 0, 0, 0, 0, 0, 0, fmt.Errorf("avdtp: sbc info must be 6 bytes, got %d", len(info))
	}
	if MediaCodecType(info[1]) != CodecSBC {
		return 0, 0, 0, 0, 0, 0, 0, fmt.Errorf("avdtp: not an SBC codec info block (codec type %d)", info[1])
	}
	freq = info[2] >> 4
	chmode = info[2] & 0x0F
	blocks = info[3] >> 4
	subbands = (info[3] >> 2) & 0x03
	alloc = info[3] & 0x03
	minBP = info[4]
	maxBP = info[5]
	return freq, chmode, blocks, subbands, alloc, minBP, maxBP, nil
}

// DecodeSBCCapability parses a media codec capability info block as SBC.
func DecodeSBCCapability(info []byte) (SBCCapability, error) {
	freq, chmode, blocks, subbands, alloc, minBP, maxBP, err := decodeSBCInfo(info)
	if err != nil {
		return SBCCapability{}, err
	}
	c := SBCCapability{
		SamplingFrequencies: freq,
		ChannelModes:        chmode,
		BlockLengths:        blocks,
		Subbands:            subbands,
		AllocationMethods:   alloc,
		MinBitpool:          minBP,
		MaxBitpool:          maxBP,
	}
	if err := validateBitpoolRange(c.MinBitpool, c.MaxBitpool); err != nil {
		return SBCCapability{}, err
	}
	return c, nil
}

// DecodeSBCConfiguration parses a media codec configuration info block as
// SBC, requiring that each of the selection fields has exactly one bit set.
func DecodeSBCConfiguration(info []byte) (SBCConfiguration, error) {
	freq, chmode, blocks, subbands, alloc, minBP, maxBP, err := decodeSBCInfo(info)
	if err != nil {
		return SBCConfiguration{}, err
	}
	c := SBCConfiguration{
		SamplingFrequency: freq,
		ChannelMode:       chmode,
		BlockLength:       blocks,
		Subbands:          subbands,
		AllocationMethod:  alloc,
		MinBitpool:        minBP,
		MaxBitpool:        maxBP,
	}
	for _, pair := range []struct {
		name string
		v    uint8
	}{
		{"sampling frequency", c.SamplingFrequency},
		{"channel mode", c.ChannelMode},
		{"block length", c.BlockLength},
		{"subbands", c.Subbands},
		{"allocation method", c.AllocationMethod},
	} {
		if !isSingleBit(pair.v) {
			return SBCConfiguration{}, fmt.Errorf("avdtp: sbc configuration field %q is not a single value (0x%02x)", pair.name, pair.v)
		}
	}
	if err := validateBitpoolRange(c.MinBitpool, c.MaxBitpool); err != nil {
		return SBCConfiguration{}, err
	}
	return c, nil
}

func isSingleBit(v uint8) bool {
	return v != 0 && v&(v-1) == 0
}

// validateBitpoolRange enforces spec.md §4.1's SBC bitpool invariant: both
// bounds must fall within [2, 250] and min must not exceed max.
func validateBitpoolRange(min, max uint8) error {
	if min < minBitpool || min > maxBitpool {
		return fmt.Errorf("avdtp: sbc min_bitpool %d out of range [%d, %d]", min, minBitpool, maxBitpool)
	}
	if max < minBitpool || max > maxBitpool {
		return fmt.Errorf("avdtp: sbc max_bitpool %d out of range [%d, %d]", max, minBitpool, maxBitpool)
	}
	if min > max {
		return fmt.Errorf("avdtp: sbc min_bitpool %d exceeds max_bitpool %d", min, max)
	}
	return nil
}

// DefaultSBCConfiguration is the fixed SBC configuration this engine always
// offers in SetConfiguration (spec.md §4.3): 44100 Hz, joint stereo, block
// length 16, 4 subbands, loudness allocation, bitpool [2, 0x35]. This is a
// literal policy, not a negotiation against the peer's advertised
// capabilities.
func DefaultSBCConfiguration() SBCConfiguration {
	return SBCConfiguration{
		SamplingFrequency: SBCFreq44100,
		ChannelMode:       SBCChannelJointStereo,
		BlockLength:       SBCBlocks16,
		Subbands:          SBCSubbands4,
		AllocationMethod:  SBCAllocLoudness,
		MinBitpool:        2,
		MaxBitpool:        0x35,
	}
}
