package sdp

import (
	"reflect"
	"testing"
)

func TestElementRoundTrip(t *testing.T) {
	cases := []Element{
		{Type: TypeNil},
		UintElement(0x05),
		UintElement(0x1234),
		UintElement(0x12345678),
		{Type: TypeInt, IntVal: -5},
		{Type: TypeBool, Bool: true},
		{Type: TypeBool, Bool: false},
		TextElement("hello world"),
		UUIDElement(UUID16(0x110B)),
		UUIDElement(UUID32(0xDEADBEEF)),
		Seq(UintElement(1), UintElement(2), TextElement("x")),
		{Type: TypeAlternative, Children: []Element{UintElement(1), UintElement(2)}},
	}

	for _, e := range cases {
		encoded := EncodeElement(e)
		decoded, n, err := DecodeElement(encoded)
		if err != nil {
			t.Fatalf("DecodeElement(%v) error: %v", e, err)
		}
		if n != len(encoded) {
			t.Fatalf("DecodeElement consumed %d of %d bytes for %v", n, len(encoded), e)
		}

		reencoded := EncodeElement(decoded)
		if !reflect.DeepEqual(encoded, reencoded) {
			t.Errorf("round trip mismatch for %v:\n  first:  % x\n  second: % x", e, encoded, reencoded)
		}
	}
}

func TestUUIDShortFormRoundTrip(t *testing.T) {
	u16 := UUID16(0x110B)
	encoded := EncodeElement(UUIDElement(u16))
	if len(encoded) != 3 { // tag + 2 bytes
		t.Fatalf("expected 16-bit UUID to encode to 3 bytes, got %d", len(encoded))
	}

	decoded, _, err := DecodeElement(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !decoded.UUID.Equal(u16) {
		t.Errorf("decoded UUID %v != original %v", decoded.UUID, u16)
	}
	v, width, ok := decoded.UUID.ShortForm()
	if !ok || width != 16 || v != 0x110B {
		t.Errorf("ShortForm() = (%x, %d, %v), want (0x110b, 16, true)", v, width, ok)
	}
}

func TestSequenceNesting(t *testing.T) {
	tree := Seq(
		UUIDElement(UUID16(0x0100)),
		Seq(UintElement(0x19)),
		TextElement("abc"),
	)
	encoded := EncodeElement(tree)
	decoded, n, err := DecodeElement(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(encoded) {
		t.Fatalf("consumed %d of %d bytes", n, len(encoded))
	}
	if len(decoded.Children) != 3 {
		t.Fatalf("expected 3 children, got %d", len(decoded.Children))
	}
	if decoded.Children[1].Type != TypeSequence || len(decoded.Children[1].Children) != 1 {
		t.Errorf("nested sequence not preserved: %+v", decoded.Children[1])
	}
}

func TestDecodeElementTruncated(t *testing.T) {
	// A uint32 descriptor (tag for type=1, size=size4) with only one byte
	// of content.
	buf := []byte{tag(TypeUint, size4), 0x01}
	if _, _, err := DecodeElement(buf); err == nil {
		t.Error("expected error decoding truncated element")
	}
}

func TestDecodeElementEmpty(t *testing.T) {
	if _, _, err := DecodeElement(nil); err == nil {
		t.Error("expected error decoding empty buffer")
	}
}
