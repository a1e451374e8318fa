package sdp

import "fmt"

// ProfileVersion is a (profile UUID, version) pair from a Bluetooth Profile
// Descriptor List attribute. Version is packed major.minor (high byte
// major, low byte minor), matching the wire encoding.
type ProfileVersion struct {
	Profile UUID
	Version uint16
}

// Major returns the profile version's major component.
func (v ProfileVersion) Major() uint8 { return uint8(v.Version >> 8) }

// Minor returns the profile version's minor component.
func (v ProfileVersion) Minor() uint8 { return uint8(v.Version) }

// ProtocolDescriptor is one entry of a Protocol Descriptor List: a protocol
// UUID plus its parameter sequence (e.g. [PSM] for L2CAP, [version] for
// AVDTP).
type ProtocolDescriptor struct {
	Protocol   UUID
	Parameters []Element
}

// Attribute is one raw (attribute ID, value) pair from a service record,
// plus the human-readable name this engine recognizes it by (empty if
// unrecognized).
type Attribute struct {
	ID    uint16
	Name  string
	Value Element
}

// Service is one SDP service record, distilled from the attributes
// returned by ServiceSearchAttribute.
type Service struct {
	Handle              uint32
	ServiceClasses      []UUID
	Profiles            []ProfileVersion
	Protocols           []ProtocolDescriptor
	Attributes          map[uint16]Attribute
}

// Feature is a bit in the A2DP SupportedFeatures (0x0311) attribute.
type Feature uint16

const (
	FeatureHeadphone Feature = 1 << 0
	FeatureRecorder  Feature = 1 << 1
	FeatureSpeaker   Feature = 1 << 2
	FeatureAmplifier Feature = 1 << 3
	FeaturePlayer    Feature = 1 << 4
	FeatureMicrophone Feature = 1 << 5
	FeatureTuner     Feature = 1 << 6
	FeatureMixer     Feature = 1 << 7
)

// Role is the A2DP role implied by a service record's class ID list.
type Role int

const (
	RoleUnknown Role = iota
	RoleSink
	RoleSource
	RoleNeither
)

func (r Role) String() string {
	switch r {
	case RoleSink:
		return "sink"
	case RoleSource:
		return "source"
	case RoleNeither:
		return "neither"
	default:
		return "unknown"
	}
}

// AudioService is the A2DP-specific view of a Service record: the profile
// version, AVDTP transport version, L2CAP PSM for AVDTP, the feature
// bitmask, and the derived role.
type AudioService struct {
	A2DPVersion   uint16
	AVDTPVersion  uint16
	PSM           uint16
	Features      uint16
	Role          Role
}

// HasFeature reports whether the given feature bit is set.
func (a AudioService) HasFeature(f Feature) bool {
	return a.Features&uint16(f) != 0
}

// roleFromClasses derives Role from a service record's class ID list.
func roleFromClasses(classes []UUID) Role {
	sawSink, sawSource := false, false
	for _, c := range classes {
		switch {
		case c.Equal(ServiceClassAudioSink):
			sawSink = true
		case c.Equal(ServiceClassAudioSource):
			sawSource = true
		}
	}
	switch {
	case sawSink:
		return RoleSink
	case sawSource:
		return RoleSource
	default:
		return RoleNeither
	}
}

// DeriveAudioService extracts the AudioService view from a Service record.
// Returns an error if the record claims the sink role but is missing a
// mandatory field (spec.md §3 invariant: role==sink implies psm!=0 and both
// versions non-zero).
func (s Service) DeriveAudioService() (AudioService, error) {
	a := AudioService{Role: roleFromClasses(s.ServiceClasses)}

	for _, p := range s.Profiles {
		if p.Profile.Equal(ProfileAdvancedAudioDistrib) {
			a.A2DPVersion = p.Version
		}
	}

	for _, p := range s.Protocols {
		if p.Protocol.Equal(ProtocolL2CAP) && len(p.Parameters) > 0 {
			a.PSM = uint16(p.Parameters[0].UintVal)
		}
		if p.Protocol.Equal(ProtocolAVDTP) && len(p.Parameters) > 0 {
			a.AVDTPVersion = uint16(p.Parameters[0].UintVal)
		}
	}

	if attr, ok := s.Attributes[AttrSupportedFeatures]; ok {
		features := uint16(attr.Value.UintVal)
		if a.Role == RoleSource {
			features <<= 4
		}
		a.Features = features
	}

	if a.Role == RoleSink {
		if a.PSM == 0 || a.A2DPVersion == 0 || a.AVDTPVersion == 0 {
			return a, fmt.Errorf("sdp: audio sink record missing mandatory field (psm=0x%04x a2dp=0x%04x avdtp=0x%04x)",
				a.PSM, a.A2DPVersion, a.AVDTPVersion)
		}
	}

	return a, nil
}

// parseServiceAttributeList parses one attribute-list element (a Sequence
// of (attribute_id, value) pairs) into a Service.
func parseServiceAttributeList(list Element) (Service, error) {
	if list.Type != TypeSequence {
		return Service{}, fmt.Errorf("sdp: attribute list is not a sequence")
	}
	if len(list.Children)%2 != 0 {
		return Service{}, fmt.Errorf("sdp: attribute list has odd element count")
	}

	svc := Service{Attributes: make(map[uint16]Attribute)}

	for i := 0; i+1 < len(list.Children); i += 2 {
		idElem := list.Children[i]
		valElem := list.Children[i+1]
		if idElem.Type != TypeUint {
			return Service{}, fmt.Errorf("sdp: attribute id is not an unsigned int")
		}
		id := uint16(idElem.UintVal)

		name := ""
		switch id {
		case AttrServiceRecordHandle:
			name = "ServiceRecordHandle"
			svc.Handle = uint32(valElem.UintVal)
		case AttrServiceClassIDList:
			name = "ServiceClassIDList"
			for _, c := range valElem.Children {
				if c.Type == TypeUUID {
					svc.ServiceClasses = append(svc.ServiceClasses, c.UUID)
				}
			}
		case AttrBluetoothProfileDescList:
			name = "BluetoothProfileDescriptorList"
			for _, entry := range valElem.Children {
				if entry.Type != TypeSequence || len(entry.Children) < 2 {
					continue
				}
				if entry.Children[0].Type != TypeUUID {
					continue
				}
				svc.Profiles = append(svc.Profiles, ProfileVersion{
					Profile: entry.Children[0].UUID,
					Version: uint16(entry.Children[1].UintVal),
				})
			}
		case AttrProtocolDescriptorList:
			name = "ProtocolDescriptorList"
			for _, entry := range valElem.Children {
				if entry.Type != TypeSequence || len(entry.Children) < 1 {
					continue
				}
				if entry.Children[0].Type != TypeUUID {
					continue
				}
				svc.Protocols = append(svc.Protocols, ProtocolDescriptor{
					Protocol:   entry.Children[0].UUID,
					Parameters: entry.Children[1:],
				})
			}
		case AttrSupportedFeatures:
			name = "SupportedFeatures"
		}

		svc.Attributes[id] = Attribute{ID: id, Name: name, Value: valElem}
	}

	return svc, nil
}
