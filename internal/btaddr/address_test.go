package btaddr

import "testing"

func TestParseAndString(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AA:BB:CC:DD:EE:FF", "AA:BB:CC:DD:EE:FF"},
		{"aa:bb:cc:dd:ee:ff", "AA:BB:CC:DD:EE:FF"},
	}

	for _, c := range cases {
		a, err := Parse(c.in, Classic)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", c.in, err)
		}
		if got := a.String(); got != c.want {
			t.Errorf("Parse(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "AA:BB:CC", "AA:BB:CC:DD:EE:GG", "AABBCCDDEEFFAA"} {
		if _, err := Parse(in, Classic); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", in)
		}
	}
}

func TestReversed(t *testing.T) {
	a, err := Parse("AA:BB:CC:DD:EE:FF", Classic)
	if err != nil {
		t.Fatal(err)
	}
	want := [6]byte{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA}
	if got := a.Reversed(); got != want {
		t.Errorf("Reversed() = %v, want %v", got, want)
	}
}

func TestEqual(t *testing.T) {
	a, _ := Parse("AA:BB:CC:DD:EE:FF", Classic)
	b, _ := Parse("AA:BB:CC:DD:EE:FF", Classic)
	c, _ := Parse("AA:BB:CC:DD:EE:FF", LEPublic)

	if !a.Equal(b) {
		t.Error("expected equal addresses to compare equal")
	}
	if a.Equal(c) {
		t.Error("expected addresses with different types to differ")
	}
}
