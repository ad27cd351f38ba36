package protocol

// Messages for the one-shot HTTP bootstrap exchange with the gateway:
// connect, ICE restart and trickle candidates. Bodies are binary protobuf.

type Caps struct {
	Peer   bool
	Tracks bool
}

func (m *Caps) encode(b []byte) []byte {
	b = appendBool(b, 1, m.Peer)
	b = appendBool(b, 2, m.Tracks)
	return b
}

func (m *Caps) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Peer = f.bool()
		case 2:
			m.Tracks = f.bool()
		}
		return nil
	})
}

type JoinFeatures struct {
	Mixer *MixerConfig
}

func (m *JoinFeatures) encode(b []byte) []byte {
	if m.Mixer != nil {
		b = appendMessage(b, 1, m.Mixer)
	}
	return b
}

func (m *JoinFeatures) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Mixer = new(MixerConfig)
			return m.Mixer.decode(f.bytes)
		}
		return nil
	})
}

// JoinInfo describes one room membership: where to join, as whom, and which
// capabilities and optional features the client wants.
type JoinInfo struct {
	Room      string
	Peer      string
	Metadata  string
	Publish   Caps
	Subscribe Caps
	Features  JoinFeatures
}

func (m *JoinInfo) encode(b []byte) []byte {
	b = appendString(b, 1, m.Room)
	b = appendString(b, 2, m.Peer)
	b = appendString(b, 3, m.Metadata)
	b = appendMessage(b, 4, &m.Publish)
	b = appendMessage(b, 5, &m.Subscribe)
	b = appendMessage(b, 6, &m.Features)
	return b
}

func (m *JoinInfo) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Room = f.str()
		case 2:
			m.Peer = f.str()
		case 3:
			m.Metadata = f.str()
		case 4:
			return m.Publish.decode(f.bytes)
		case 5:
			return m.Subscribe.decode(f.bytes)
		case 6:
			return m.Features.decode(f.bytes)
		}
		return nil
	})
}

// TrackSnapshot carries the full declared state of every local track, so the
// gateway can reconcile in one shot during connect/restart/renegotiation.
type TrackSnapshot struct {
	Receivers []ReceiverInfo
	Senders   []SenderInfo
}

func (m *TrackSnapshot) encode(b []byte) []byte {
	for i := range m.Receivers {
		b = appendMessage(b, 1, &m.Receivers[i])
	}
	for i := range m.Senders {
		b = appendMessage(b, 2, &m.Senders[i])
	}
	return b
}

func (m *TrackSnapshot) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			var r ReceiverInfo
			if err := r.decode(f.bytes); err != nil {
				return err
			}
			m.Receivers = append(m.Receivers, r)
		case 2:
			var s SenderInfo
			if err := s.decode(f.bytes); err != nil {
				return err
			}
			m.Senders = append(m.Senders, s)
		}
		return nil
	})
}

type ConnectRequest struct {
	Version string
	Join    *JoinInfo
	Tracks  TrackSnapshot
	SDP     string
}

func (m *ConnectRequest) encode(b []byte) []byte {
	b = appendString(b, 1, m.Version)
	if m.Join != nil {
		b = appendMessage(b, 2, m.Join)
	}
	b = appendMessage(b, 3, &m.Tracks)
	b = appendString(b, 4, m.SDP)
	return b
}

func (m *ConnectRequest) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Version = f.str()
		case 2:
			m.Join = new(JoinInfo)
			return m.Join.decode(f.bytes)
		case 3:
			return m.Tracks.decode(f.bytes)
		case 4:
			m.SDP = f.str()
		}
		return nil
	})
}

func (m *ConnectRequest) MarshalBinary() ([]byte, error) { return m.encode(nil), nil }

func (m *ConnectRequest) UnmarshalBinary(b []byte) error { return m.decode(b) }

type ConnectResponse struct {
	ConnID  string
	SDP     string
	ICELite bool
}

func (m *ConnectResponse) encode(b []byte) []byte {
	b = appendString(b, 1, m.ConnID)
	b = appendString(b, 2, m.SDP)
	b = appendBool(b, 3, m.ICELite)
	return b
}

func (m *ConnectResponse) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.ConnID = f.str()
		case 2:
			m.SDP = f.str()
		case 3:
			m.ICELite = f.bool()
		}
		return nil
	})
}

func (m *ConnectResponse) MarshalBinary() ([]byte, error) { return m.encode(nil), nil }

func (m *ConnectResponse) UnmarshalBinary(b []byte) error { return m.decode(b) }

type RemoteIceRequest struct {
	Candidates []string
}

func (m *RemoteIceRequest) encode(b []byte) []byte {
	for _, c := range m.Candidates {
		b = appendString(b, 1, c)
	}
	return b
}

func (m *RemoteIceRequest) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Candidates = append(m.Candidates, f.str())
		}
		return nil
	})
}

func (m *RemoteIceRequest) MarshalBinary() ([]byte, error) { return m.encode(nil), nil }

func (m *RemoteIceRequest) UnmarshalBinary(b []byte) error { return m.decode(b) }

type RemoteIceResponse struct{}

func (m *RemoteIceResponse) encode(b []byte) []byte { return b }

func (m *RemoteIceResponse) decode([]byte) error { return nil }

func (m *RemoteIceResponse) MarshalBinary() ([]byte, error) { return nil, nil }

func (m *RemoteIceResponse) UnmarshalBinary([]byte) error { return nil }
