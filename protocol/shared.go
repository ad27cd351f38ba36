package protocol

// Kind is a media track kind.
type Kind int32

const (
	KindAudio Kind = 0
	KindVideo Kind = 1
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "audio"
}

// BitrateControl selects how the gateway paces an outbound track.
type BitrateControl int32

const (
	// BitrateDynamicConsumers lets the gateway derive bitrate from the
	// consumers currently subscribed to the track.
	BitrateDynamicConsumers BitrateControl = 0
	// BitrateFixed pins the track to its configured bitrate.
	BitrateFixed BitrateControl = 1
)

// SenderStatus is the gateway-confirmed state of an outbound track.
type SenderStatus int32

const (
	SenderStarting SenderStatus = 0
	SenderActive   SenderStatus = 1
	SenderInactive SenderStatus = 2
)

// ReceiverStatus is the gateway-confirmed state of an inbound track.
type ReceiverStatus int32

const (
	ReceiverWaiting  ReceiverStatus = 0
	ReceiverActive   ReceiverStatus = 1
	ReceiverInactive ReceiverStatus = 2
)

// MixerMode selects the slot assignment strategy of the audio mixer feature.
type MixerMode int32

const (
	MixerModeAuto   MixerMode = 0
	MixerModeManual MixerMode = 1
)

type SenderConfig struct {
	Priority uint32
	Bitrate  BitrateControl
}

func (m *SenderConfig) encode(b []byte) []byte {
	b = appendUint32(b, 1, m.Priority)
	b = appendEnum(b, 2, int32(m.Bitrate))
	return b
}

func (m *SenderConfig) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Priority = f.uint32()
		case 2:
			m.Bitrate = BitrateControl(f.int32())
		}
		return nil
	})
}

type SenderSource struct {
	ID       string
	Screen   bool
	Metadata string
}

func (m *SenderSource) encode(b []byte) []byte {
	b = appendString(b, 1, m.ID)
	b = appendBool(b, 2, m.Screen)
	b = appendString(b, 3, m.Metadata)
	return b
}

func (m *SenderSource) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.ID = f.str()
		case 2:
			m.Screen = f.bool()
		case 3:
			m.Metadata = f.str()
		}
		return nil
	})
}

// SenderState is the declared intent of one outbound track: how it should be
// paced and which local source feeds it. Source is nil while detached.
type SenderState struct {
	Config *SenderConfig
	Source *SenderSource
}

func (m *SenderState) encode(b []byte) []byte {
	if m.Config != nil {
		b = appendMessage(b, 1, m.Config)
	}
	if m.Source != nil {
		b = appendMessage(b, 2, m.Source)
	}
	return b
}

func (m *SenderState) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Config = new(SenderConfig)
			return m.Config.decode(f.bytes)
		case 2:
			m.Source = new(SenderSource)
			return m.Source.decode(f.bytes)
		}
		return nil
	})
}

type SenderInfo struct {
	Name  string
	Kind  Kind
	State SenderState
}

func (m *SenderInfo) encode(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	b = appendEnum(b, 2, int32(m.Kind))
	b = appendMessage(b, 3, &m.State)
	return b
}

func (m *SenderInfo) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.str()
		case 2:
			m.Kind = Kind(f.int32())
		case 3:
			return m.State.decode(f.bytes)
		}
		return nil
	})
}

type ReceiverConfig struct {
	Priority    uint32
	MaxSpatial  uint32
	MaxTemporal uint32
}

func (m *ReceiverConfig) encode(b []byte) []byte {
	b = appendUint32(b, 1, m.Priority)
	b = appendUint32(b, 2, m.MaxSpatial)
	b = appendUint32(b, 3, m.MaxTemporal)
	return b
}

func (m *ReceiverConfig) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Priority = f.uint32()
		case 2:
			m.MaxSpatial = f.uint32()
		case 3:
			m.MaxTemporal = f.uint32()
		}
		return nil
	})
}

// ReceiverSource identifies the remote track a receiver is bound to.
type ReceiverSource struct {
	Peer  string
	Track string
}

func (m *ReceiverSource) encode(b []byte) []byte {
	b = appendString(b, 1, m.Peer)
	b = appendString(b, 2, m.Track)
	return b
}

func (m *ReceiverSource) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Peer = f.str()
		case 2:
			m.Track = f.str()
		}
		return nil
	})
}

type ReceiverState struct {
	Config *ReceiverConfig
	Source *ReceiverSource
}

func (m *ReceiverState) encode(b []byte) []byte {
	if m.Config != nil {
		b = appendMessage(b, 1, m.Config)
	}
	if m.Source != nil {
		b = appendMessage(b, 2, m.Source)
	}
	return b
}

func (m *ReceiverState) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Config = new(ReceiverConfig)
			return m.Config.decode(f.bytes)
		case 2:
			m.Source = new(ReceiverSource)
			return m.Source.decode(f.bytes)
		}
		return nil
	})
}

type ReceiverInfo struct {
	Name  string
	Kind  Kind
	State ReceiverState
}

func (m *ReceiverInfo) encode(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	b = appendEnum(b, 2, int32(m.Kind))
	b = appendMessage(b, 3, &m.State)
	return b
}

func (m *ReceiverInfo) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.str()
		case 2:
			m.Kind = Kind(f.int32())
		case 3:
			return m.State.decode(f.bytes)
		}
		return nil
	})
}

// MixerConfig is sent inside the join descriptor when the room requests the
// audio mixer feature. Outputs lists the receiver names backing each slot.
type MixerConfig struct {
	Mode    MixerMode
	Outputs []string
	Sources []ReceiverSource
}

func (m *MixerConfig) encode(b []byte) []byte {
	b = appendEnum(b, 1, int32(m.Mode))
	for _, o := range m.Outputs {
		b = appendString(b, 2, o)
	}
	for i := range m.Sources {
		b = appendMessage(b, 3, &m.Sources[i])
	}
	return b
}

func (m *MixerConfig) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Mode = MixerMode(f.int32())
		case 2:
			m.Outputs = append(m.Outputs, f.str())
		case 3:
			var s ReceiverSource
			if err := s.decode(f.bytes); err != nil {
				return err
			}
			m.Sources = append(m.Sources, s)
		}
		return nil
	})
}
