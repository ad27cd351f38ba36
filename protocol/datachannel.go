package protocol

// Envelopes carried on the datachannel side channel. Outbound is always a
// ClientEvent, inbound a ServerEvent; exactly one union field of each nested
// oneof is populated.

type SessionJoin struct {
	Info  *JoinInfo
	Token string
}

func (m *SessionJoin) encode(b []byte) []byte {
	if m.Info != nil {
		b = appendMessage(b, 1, m.Info)
	}
	b = appendString(b, 2, m.Token)
	return b
}

func (m *SessionJoin) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Info = new(JoinInfo)
			return m.Info.decode(f.bytes)
		case 2:
			m.Token = f.str()
		}
		return nil
	})
}

type SessionLeave struct{}

func (m *SessionLeave) encode(b []byte) []byte { return b }

func (m *SessionLeave) decode([]byte) error { return nil }

type SessionUpdateSDP struct {
	Tracks TrackSnapshot
	SDP    string
}

func (m *SessionUpdateSDP) encode(b []byte) []byte {
	b = appendMessage(b, 1, &m.Tracks)
	b = appendString(b, 2, m.SDP)
	return b
}

func (m *SessionUpdateSDP) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			return m.Tracks.decode(f.bytes)
		case 2:
			m.SDP = f.str()
		}
		return nil
	})
}

type SessionRequest struct {
	Join  *SessionJoin
	Leave *SessionLeave
	SDP   *SessionUpdateSDP
}

func (m *SessionRequest) encode(b []byte) []byte {
	if m.Join != nil {
		b = appendMessage(b, 1, m.Join)
	}
	if m.Leave != nil {
		b = appendMessage(b, 2, m.Leave)
	}
	if m.SDP != nil {
		b = appendMessage(b, 3, m.SDP)
	}
	return b
}

func (m *SessionRequest) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Join = new(SessionJoin)
			return m.Join.decode(f.bytes)
		case 2:
			m.Leave = new(SessionLeave)
		case 3:
			m.SDP = new(SessionUpdateSDP)
			return m.SDP.decode(f.bytes)
		}
		return nil
	})
}

type SenderAttach struct {
	Config *SenderConfig
	Source *SenderSource
}

func (m *SenderAttach) encode(b []byte) []byte {
	if m.Config != nil {
		b = appendMessage(b, 1, m.Config)
	}
	if m.Source != nil {
		b = appendMessage(b, 2, m.Source)
	}
	return b
}

func (m *SenderAttach) decode(b []byte) error {
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

type SenderDetach struct{}

func (m *SenderDetach) encode(b []byte) []byte { return b }

func (m *SenderDetach) decode([]byte) error { return nil }

type SenderRequest struct {
	Name   string
	Attach *SenderAttach
	Detach *SenderDetach
	Config *SenderConfig
}

func (m *SenderRequest) encode(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	if m.Attach != nil {
		b = appendMessage(b, 2, m.Attach)
	}
	if m.Detach != nil {
		b = appendMessage(b, 3, m.Detach)
	}
	if m.Config != nil {
		b = appendMessage(b, 4, m.Config)
	}
	return b
}

func (m *SenderRequest) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.str()
		case 2:
			m.Attach = new(SenderAttach)
			return m.Attach.decode(f.bytes)
		case 3:
			m.Detach = new(SenderDetach)
		case 4:
			m.Config = new(SenderConfig)
			return m.Config.decode(f.bytes)
		}
		return nil
	})
}

type ReceiverAttach struct {
	Source *ReceiverSource
	Config *ReceiverConfig
}

func (m *ReceiverAttach) encode(b []byte) []byte {
	if m.Source != nil {
		b = appendMessage(b, 1, m.Source)
	}
	if m.Config != nil {
		b = appendMessage(b, 2, m.Config)
	}
	return b
}

func (m *ReceiverAttach) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Source = new(ReceiverSource)
			return m.Source.decode(f.bytes)
		case 2:
			m.Config = new(ReceiverConfig)
			return m.Config.decode(f.bytes)
		}
		return nil
	})
}

type ReceiverDetach struct{}

func (m *ReceiverDetach) encode(b []byte) []byte { return b }

func (m *ReceiverDetach) decode([]byte) error { return nil }

type ReceiverRequest struct {
	Name   string
	Attach *ReceiverAttach
	Detach *ReceiverDetach
	Config *ReceiverConfig
}

func (m *ReceiverRequest) encode(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	if m.Attach != nil {
		b = appendMessage(b, 2, m.Attach)
	}
	if m.Detach != nil {
		b = appendMessage(b, 3, m.Detach)
	}
	if m.Config != nil {
		b = appendMessage(b, 4, m.Config)
	}
	return b
}

func (m *ReceiverRequest) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.str()
		case 2:
			m.Attach = new(ReceiverAttach)
			return m.Attach.decode(f.bytes)
		case 3:
			m.Detach = new(ReceiverDetach)
		case 4:
			m.Config = new(ReceiverConfig)
			return m.Config.decode(f.bytes)
		}
		return nil
	})
}

type MixerSources struct {
	Sources []ReceiverSource
}

func (m *MixerSources) encode(b []byte) []byte {
	for i := range m.Sources {
		b = appendMessage(b, 1, &m.Sources[i])
	}
	return b
}

func (m *MixerSources) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			var s ReceiverSource
			if err := s.decode(f.bytes); err != nil {
				return err
			}
			m.Sources = append(m.Sources, s)
		}
		return nil
	})
}

type MixerRequest struct {
	Attach *MixerSources
	Detach *MixerSources
}

func (m *MixerRequest) encode(b []byte) []byte {
	if m.Attach != nil {
		b = appendMessage(b, 1, m.Attach)
	}
	if m.Detach != nil {
		b = appendMessage(b, 2, m.Detach)
	}
	return b
}

func (m *MixerRequest) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Attach = new(MixerSources)
			return m.Attach.decode(f.bytes)
		case 2:
			m.Detach = new(MixerSources)
			return m.Detach.decode(f.bytes)
		}
		return nil
	})
}

type FeaturesRequest struct {
	Mixer *MixerRequest
}

func (m *FeaturesRequest) encode(b []byte) []byte {
	if m.Mixer != nil {
		b = appendMessage(b, 1, m.Mixer)
	}
	return b
}

func (m *FeaturesRequest) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Mixer = new(MixerRequest)
			return m.Mixer.decode(f.bytes)
		}
		return nil
	})
}

// Request is one correlated RPC. ReqID is unique for the channel lifetime
// and maps to exactly one Response.
type Request struct {
	ReqID    uint64
	Session  *SessionRequest
	Sender   *SenderRequest
	Receiver *ReceiverRequest
	Features *FeaturesRequest
}

func (m *Request) encode(b []byte) []byte {
	b = appendUint64(b, 1, m.ReqID)
	if m.Session != nil {
		b = appendMessage(b, 2, m.Session)
	}
	if m.Sender != nil {
		b = appendMessage(b, 3, m.Sender)
	}
	if m.Receiver != nil {
		b = appendMessage(b, 4, m.Receiver)
	}
	if m.Features != nil {
		b = appendMessage(b, 5, m.Features)
	}
	return b
}

func (m *Request) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.ReqID = f.varint
		case 2:
			m.Session = new(SessionRequest)
			return m.Session.decode(f.bytes)
		case 3:
			m.Sender = new(SenderRequest)
			return m.Sender.decode(f.bytes)
		case 4:
			m.Receiver = new(ReceiverRequest)
			return m.Receiver.decode(f.bytes)
		case 5:
			m.Features = new(FeaturesRequest)
			return m.Features.decode(f.bytes)
		}
		return nil
	})
}

// ClientEvent is the outbound envelope. Seq increases per message sent and is
// never reused.
type ClientEvent struct {
	Seq     uint64
	Request *Request
}

func (m *ClientEvent) encode(b []byte) []byte {
	b = appendUint64(b, 1, m.Seq)
	if m.Request != nil {
		b = appendMessage(b, 2, m.Request)
	}
	return b
}

func (m *ClientEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Seq = f.varint
		case 2:
			m.Request = new(Request)
			return m.Request.decode(f.bytes)
		}
		return nil
	})
}

func (m *ClientEvent) MarshalBinary() ([]byte, error) { return m.encode(nil), nil }

func (m *ClientEvent) UnmarshalBinary(b []byte) error { return m.decode(b) }

type ResponseError struct {
	Code    uint32
	Message string
}

func (m *ResponseError) encode(b []byte) []byte {
	b = appendUint32(b, 1, m.Code)
	b = appendString(b, 2, m.Message)
	return b
}

func (m *ResponseError) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Code = f.uint32()
		case 2:
			m.Message = f.str()
		}
		return nil
	})
}

type SessionUpdateSDPResponse struct {
	SDP string
}

func (m *SessionUpdateSDPResponse) encode(b []byte) []byte {
	return appendString(b, 1, m.SDP)
}

func (m *SessionUpdateSDPResponse) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.SDP = f.str()
		}
		return nil
	})
}

type SessionResponse struct {
	SDP *SessionUpdateSDPResponse
}

func (m *SessionResponse) encode(b []byte) []byte {
	if m.SDP != nil {
		b = appendMessage(b, 1, m.SDP)
	}
	return b
}

func (m *SessionResponse) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.SDP = new(SessionUpdateSDPResponse)
			return m.SDP.decode(f.bytes)
		}
		return nil
	})
}

type SenderResponse struct{}

func (m *SenderResponse) encode(b []byte) []byte { return b }

func (m *SenderResponse) decode([]byte) error { return nil }

type ReceiverResponse struct{}

func (m *ReceiverResponse) encode(b []byte) []byte { return b }

func (m *ReceiverResponse) decode([]byte) error { return nil }

type MixerResponse struct{}

func (m *MixerResponse) encode(b []byte) []byte { return b }

func (m *MixerResponse) decode([]byte) error { return nil }

type FeaturesResponse struct {
	Mixer *MixerResponse
}

func (m *FeaturesResponse) encode(b []byte) []byte {
	if m.Mixer != nil {
		b = appendMessage(b, 1, m.Mixer)
	}
	return b
}

func (m *FeaturesResponse) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Mixer = new(MixerResponse)
		}
		return nil
	})
}

type Response struct {
	ReqID    uint64
	Error    *ResponseError
	Session  *SessionResponse
	Sender   *SenderResponse
	Receiver *ReceiverResponse
	Features *FeaturesResponse
}

func (m *Response) encode(b []byte) []byte {
	b = appendUint64(b, 1, m.ReqID)
	if m.Error != nil {
		b = appendMessage(b, 2, m.Error)
	}
	if m.Session != nil {
		b = appendMessage(b, 3, m.Session)
	}
	if m.Sender != nil {
		b = appendMessage(b, 4, m.Sender)
	}
	if m.Receiver != nil {
		b = appendMessage(b, 5, m.Receiver)
	}
	if m.Features != nil {
		b = appendMessage(b, 6, m.Features)
	}
	return b
}

func (m *Response) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.ReqID = f.varint
		case 2:
			m.Error = new(ResponseError)
			return m.Error.decode(f.bytes)
		case 3:
			m.Session = new(SessionResponse)
			return m.Session.decode(f.bytes)
		case 4:
			m.Sender = new(SenderResponse)
		case 5:
			m.Receiver = new(ReceiverResponse)
		case 6:
			m.Features = new(FeaturesResponse)
			return m.Features.decode(f.bytes)
		}
		return nil
	})
}

type PeerJoined struct {
	Peer     string
	Metadata string
}

func (m *PeerJoined) encode(b []byte) []byte {
	b = appendString(b, 1, m.Peer)
	b = appendString(b, 2, m.Metadata)
	return b
}

func (m *PeerJoined) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Peer = f.str()
		case 2:
			m.Metadata = f.str()
		}
		return nil
	})
}

type PeerUpdated struct {
	Peer     string
	Metadata string
}

func (m *PeerUpdated) encode(b []byte) []byte {
	b = appendString(b, 1, m.Peer)
	b = appendString(b, 2, m.Metadata)
	return b
}

func (m *PeerUpdated) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Peer = f.str()
		case 2:
			m.Metadata = f.str()
		}
		return nil
	})
}

type PeerLeaved struct {
	Peer string
}

func (m *PeerLeaved) encode(b []byte) []byte { return appendString(b, 1, m.Peer) }

func (m *PeerLeaved) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Peer = f.str()
		}
		return nil
	})
}

type TrackStarted struct {
	Peer     string
	Track    string
	Kind     Kind
	Metadata string
}

func (m *TrackStarted) encode(b []byte) []byte {
	b = appendString(b, 1, m.Peer)
	b = appendString(b, 2, m.Track)
	b = appendEnum(b, 3, int32(m.Kind))
	b = appendString(b, 4, m.Metadata)
	return b
}

func (m *TrackStarted) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Peer = f.str()
		case 2:
			m.Track = f.str()
		case 3:
			m.Kind = Kind(f.int32())
		case 4:
			m.Metadata = f.str()
		}
		return nil
	})
}

type TrackUpdated struct {
	Peer     string
	Track    string
	Kind     Kind
	Metadata string
}

func (m *TrackUpdated) encode(b []byte) []byte {
	b = appendString(b, 1, m.Peer)
	b = appendString(b, 2, m.Track)
	b = appendEnum(b, 3, int32(m.Kind))
	b = appendString(b, 4, m.Metadata)
	return b
}

func (m *TrackUpdated) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Peer = f.str()
		case 2:
			m.Track = f.str()
		case 3:
			m.Kind = Kind(f.int32())
		case 4:
			m.Metadata = f.str()
		}
		return nil
	})
}

type TrackStopped struct {
	Peer  string
	Track string
}

func (m *TrackStopped) encode(b []byte) []byte {
	b = appendString(b, 1, m.Peer)
	b = appendString(b, 2, m.Track)
	return b
}

func (m *TrackStopped) decode(b []byte) error {
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

type RoomEvent struct {
	PeerJoined   *PeerJoined
	PeerUpdated  *PeerUpdated
	PeerLeaved   *PeerLeaved
	TrackStarted *TrackStarted
	TrackUpdated *TrackUpdated
	TrackStopped *TrackStopped
}

func (m *RoomEvent) encode(b []byte) []byte {
	if m.PeerJoined != nil {
		b = appendMessage(b, 1, m.PeerJoined)
	}
	if m.PeerUpdated != nil {
		b = appendMessage(b, 2, m.PeerUpdated)
	}
	if m.PeerLeaved != nil {
		b = appendMessage(b, 3, m.PeerLeaved)
	}
	if m.TrackStarted != nil {
		b = appendMessage(b, 4, m.TrackStarted)
	}
	if m.TrackUpdated != nil {
		b = appendMessage(b, 5, m.TrackUpdated)
	}
	if m.TrackStopped != nil {
		b = appendMessage(b, 6, m.TrackStopped)
	}
	return b
}

func (m *RoomEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.PeerJoined = new(PeerJoined)
			return m.PeerJoined.decode(f.bytes)
		case 2:
			m.PeerUpdated = new(PeerUpdated)
			return m.PeerUpdated.decode(f.bytes)
		case 3:
			m.PeerLeaved = new(PeerLeaved)
			return m.PeerLeaved.decode(f.bytes)
		case 4:
			m.TrackStarted = new(TrackStarted)
			return m.TrackStarted.decode(f.bytes)
		case 5:
			m.TrackUpdated = new(TrackUpdated)
			return m.TrackUpdated.decode(f.bytes)
		case 6:
			m.TrackStopped = new(TrackStopped)
			return m.TrackStopped.decode(f.bytes)
		}
		return nil
	})
}

// SessionEvent carries room-membership level pushes. The gateway currently
// defines no fields here; the variant exists so the envelope slot is stable.
type SessionEvent struct{}

func (m *SessionEvent) encode(b []byte) []byte { return b }

func (m *SessionEvent) decode([]byte) error { return nil }

type SenderStateEvent struct {
	Status SenderStatus
}

func (m *SenderStateEvent) encode(b []byte) []byte {
	return appendEnum(b, 1, int32(m.Status))
}

func (m *SenderStateEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Status = SenderStatus(f.int32())
		}
		return nil
	})
}

type SenderEvent struct {
	Name  string
	State *SenderStateEvent
}

func (m *SenderEvent) encode(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	if m.State != nil {
		b = appendMessage(b, 2, m.State)
	}
	return b
}

func (m *SenderEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.str()
		case 2:
			m.State = new(SenderStateEvent)
			return m.State.decode(f.bytes)
		}
		return nil
	})
}

type ReceiverStateEvent struct {
	Status ReceiverStatus
}

func (m *ReceiverStateEvent) encode(b []byte) []byte {
	return appendEnum(b, 1, int32(m.Status))
}

func (m *ReceiverStateEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Status = ReceiverStatus(f.int32())
		}
		return nil
	})
}

// VoiceActivity reports the measured audio level of an inbound track,
// in dBFS (negative, 0 is full scale).
type VoiceActivity struct {
	AudioLevel int32
}

func (m *VoiceActivity) encode(b []byte) []byte {
	return appendEnum(b, 1, m.AudioLevel)
}

func (m *VoiceActivity) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.AudioLevel = f.int32()
		}
		return nil
	})
}

type ReceiverEvent struct {
	Name          string
	State         *ReceiverStateEvent
	VoiceActivity *VoiceActivity
}

func (m *ReceiverEvent) encode(b []byte) []byte {
	b = appendString(b, 1, m.Name)
	if m.State != nil {
		b = appendMessage(b, 2, m.State)
	}
	if m.VoiceActivity != nil {
		b = appendMessage(b, 3, m.VoiceActivity)
	}
	return b
}

func (m *ReceiverEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Name = f.str()
		case 2:
			m.State = new(ReceiverStateEvent)
			return m.State.decode(f.bytes)
		case 3:
			m.VoiceActivity = new(VoiceActivity)
			return m.VoiceActivity.decode(f.bytes)
		}
		return nil
	})
}

type MixerSlotSet struct {
	Slot   uint32
	Source *ReceiverSource
}

func (m *MixerSlotSet) encode(b []byte) []byte {
	b = appendUint32(b, 1, m.Slot)
	if m.Source != nil {
		b = appendMessage(b, 2, m.Source)
	}
	return b
}

func (m *MixerSlotSet) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Slot = f.uint32()
		case 2:
			m.Source = new(ReceiverSource)
			return m.Source.decode(f.bytes)
		}
		return nil
	})
}

type MixerSlotUnset struct {
	Slot uint32
}

func (m *MixerSlotUnset) encode(b []byte) []byte { return appendUint32(b, 1, m.Slot) }

func (m *MixerSlotUnset) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Slot = f.uint32()
		}
		return nil
	})
}

type MixerEvent struct {
	SlotSet   *MixerSlotSet
	SlotUnset *MixerSlotUnset
}

func (m *MixerEvent) encode(b []byte) []byte {
	if m.SlotSet != nil {
		b = appendMessage(b, 1, m.SlotSet)
	}
	if m.SlotUnset != nil {
		b = appendMessage(b, 2, m.SlotUnset)
	}
	return b
}

func (m *MixerEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.SlotSet = new(MixerSlotSet)
			return m.SlotSet.decode(f.bytes)
		case 2:
			m.SlotUnset = new(MixerSlotUnset)
			return m.SlotUnset.decode(f.bytes)
		}
		return nil
	})
}

type FeaturesEvent struct {
	Mixer *MixerEvent
}

func (m *FeaturesEvent) encode(b []byte) []byte {
	if m.Mixer != nil {
		b = appendMessage(b, 1, m.Mixer)
	}
	return b
}

func (m *FeaturesEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		if f.num == 1 {
			m.Mixer = new(MixerEvent)
			return m.Mixer.decode(f.bytes)
		}
		return nil
	})
}

// ServerEvent is the inbound envelope: either an unsolicited push (room,
// session, sender, receiver, features) or the response to one Request.
type ServerEvent struct {
	Room     *RoomEvent
	Session  *SessionEvent
	Sender   *SenderEvent
	Receiver *ReceiverEvent
	Features *FeaturesEvent
	Response *Response
}

func (m *ServerEvent) encode(b []byte) []byte {
	if m.Room != nil {
		b = appendMessage(b, 1, m.Room)
	}
	if m.Session != nil {
		b = appendMessage(b, 2, m.Session)
	}
	if m.Sender != nil {
		b = appendMessage(b, 3, m.Sender)
	}
	if m.Receiver != nil {
		b = appendMessage(b, 4, m.Receiver)
	}
	if m.Features != nil {
		b = appendMessage(b, 5, m.Features)
	}
	if m.Response != nil {
		b = appendMessage(b, 6, m.Response)
	}
	return b
}

func (m *ServerEvent) decode(b []byte) error {
	return walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			m.Room = new(RoomEvent)
			return m.Room.decode(f.bytes)
		case 2:
			m.Session = new(SessionEvent)
		case 3:
			m.Sender = new(SenderEvent)
			return m.Sender.decode(f.bytes)
		case 4:
			m.Receiver = new(ReceiverEvent)
			return m.Receiver.decode(f.bytes)
		case 5:
			m.Features = new(FeaturesEvent)
			return m.Features.decode(f.bytes)
		case 6:
			m.Response = new(Response)
			return m.Response.decode(f.bytes)
		}
		return nil
	})
}

func (m *ServerEvent) MarshalBinary() ([]byte, error) { return m.encode(nil), nil }

func (m *ServerEvent) UnmarshalBinary(b []byte) error { return m.decode(b) }
