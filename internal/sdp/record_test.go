package sdp

import "testing"

func TestDeriveAudioServiceFeaturesNibbleShift(t *testing.T) {
	cases := []struct {
		name    string
		classes []UUID
		raw     uint16
		want    uint16
	}{
		{"sink record keeps features unshifted", []UUID{ServiceClassAudioSink}, 0x02, 0x02},
		{"source record shifts features left by one nibble", []UUID{ServiceClassAudioSource}, 0x02, 0x20},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := Service{
				ServiceClasses: tc.classes,
				Attributes: map[uint16]Attribute{
					AttrSupportedFeatures: {ID: AttrSupportedFeatures, Value: Element{Type: TypeUint, UintVal: uint64(tc.raw)}},
				},
			}
			as, err := svc.DeriveAudioService()
			if err != nil {
				t.Fatalf("DeriveAudioService error: %v", err)
			}
			if as.Features != tc.want {
				t.Errorf("Features = 0x%02x, want 0x%02x", as.Features, tc.want)
			}
		})
	}
}
