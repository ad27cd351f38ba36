package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/mediabridge/roomkit/channel"
	"github.com/mediabridge/roomkit/protocol"
)

// sideChannelID is negotiated out of band with the gateway.
const sideChannelID = 1000

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// WebRTCPeer implements Peer on a pion PeerConnection.
type WebRTCPeer struct {
	pc   *webrtc.PeerConnection
	line *dataLine

	mu        sync.Mutex
	recvLines []*WebRTCRecvLine

	onTrack     func(trackID string)
	onNegotiate func()
	onCandidate func(candidate string)
}

func NewWebRTCPeer(cfg webrtc.Configuration) (*WebRTCPeer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	negotiated := true
	id := uint16(sideChannelID)
	dc, err := pc.CreateDataChannel("data", &webrtc.DataChannelInit{
		Negotiated: &negotiated,
		ID:         &id,
	})
	if err != nil {
		_ = pc.Close()
		return nil, err
	}

	p := &WebRTCPeer{pc: pc, line: newDataLine(dc)}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "webrtc").Str("peer_connection_state", s.String()).Msg("peer state")
	})
	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "webrtc").Str("ice_state", s.String()).Msg("ICE state")
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		p.mu.Lock()
		fn := p.onCandidate
		p.mu.Unlock()
		if fn != nil {
			fn(c.ToJSON().Candidate)
		}
	})
	pc.OnNegotiationNeeded(func() {
		p.mu.Lock()
		fn := p.onNegotiate
		p.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "webrtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("inbound track")
		p.mu.Lock()
		var line *WebRTCRecvLine
		for _, l := range p.recvLines {
			if l.tr.Receiver() == receiver {
				line = l
				break
			}
		}
		fn := p.onTrack
		p.mu.Unlock()
		if line == nil {
			log.Warn().Str("module", "webrtc").Str("track_id", track.ID()).Msg("no recv line for inbound track")
			return
		}
		line.setTrack(track)
		go line.pump(track)
		if fn != nil {
			fn(track.ID())
		}
	})

	return p, nil
}

func (p *WebRTCPeer) Line() channel.Line { return p.line }

func (p *WebRTCPeer) OnTrack(fn func(trackID string)) {
	p.mu.Lock()
	p.onTrack = fn
	p.mu.Unlock()
}

func (p *WebRTCPeer) OnNegotiationNeeded(fn func()) {
	p.mu.Lock()
	p.onNegotiate = fn
	p.mu.Unlock()
}

func (p *WebRTCPeer) OnCandidate(fn func(candidate string)) {
	p.mu.Lock()
	p.onCandidate = fn
	p.mu.Unlock()
}

func (p *WebRTCPeer) CreateOffer(_ context.Context, iceRestart bool) (Description, error) {
	var opts *webrtc.OfferOptions
	if iceRestart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	offer, err := p.pc.CreateOffer(opts)
	if err != nil {
		return Description{}, err
	}
	return Description{Type: "offer", SDP: offer.SDP}, nil
}

func (p *WebRTCPeer) SetLocalDescription(_ context.Context, desc Description) error {
	return p.pc.SetLocalDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

func (p *WebRTCPeer) SetRemoteDescription(_ context.Context, desc Description) error {
	return p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.NewSDPType(desc.Type),
		SDP:  desc.SDP,
	})
}

// simulcastRIDs are the layer identifiers offered to the gateway.
var simulcastRIDs = []string{"0", "1", "2"}

func (p *WebRTCPeer) AddSendLine(kind protocol.Kind, simulcast bool) (SendLine, error) {
	if !simulcast {
		tr, err := p.pc.AddTransceiverFromKind(codecType(kind), webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendonly,
		})
		if err != nil {
			return nil, err
		}
		return &WebRTCSendLine{tr: tr}, nil
	}

	// Offers only carry rid attributes when rid-tagged tracks back the
	// sender, so a simulcast line starts with one placeholder track per
	// layer. ReplaceSource later swaps the app source onto the base layer.
	trackID := uuid.NewString()
	streamID := uuid.NewString()
	base, err := webrtc.NewTrackLocalStaticRTP(codecCapability(kind), trackID, streamID, webrtc.WithRTPStreamID(simulcastRIDs[0]))
	if err != nil {
		return nil, err
	}
	tr, err := p.pc.AddTransceiverFromTrack(base, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return nil, err
	}
	for _, rid := range simulcastRIDs[1:] {
		layer, err := webrtc.NewTrackLocalStaticRTP(codecCapability(kind), trackID, streamID, webrtc.WithRTPStreamID(rid))
		if err != nil {
			return nil, err
		}
		if err := tr.Sender().AddEncoding(layer); err != nil {
			return nil, err
		}
	}
	return &WebRTCSendLine{tr: tr}, nil
}

func (p *WebRTCPeer) AddRecvLine(kind protocol.Kind) (RecvLine, error) {
	tr, err := p.pc.AddTransceiverFromKind(codecType(kind), webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	if err != nil {
		return nil, err
	}
	line := &WebRTCRecvLine{tr: tr}
	p.mu.Lock()
	p.recvLines = append(p.recvLines, line)
	p.mu.Unlock()
	return line, nil
}

func (p *WebRTCPeer) Close() error { return p.pc.Close() }

func codecType(kind protocol.Kind) webrtc.RTPCodecType {
	if kind == protocol.KindVideo {
		return webrtc.RTPCodecTypeVideo
	}
	return webrtc.RTPCodecTypeAudio
}

func codecCapability(kind protocol.Kind) webrtc.RTPCodecCapability {
	if kind == protocol.KindVideo {
		return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	return webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
}

// PionSource adapts any pion local track into a MediaSource.
type PionSource struct {
	Track webrtc.TrackLocal
}

func (s *PionSource) ID() string { return s.Track.ID() }

func (s *PionSource) Kind() protocol.Kind {
	if s.Track.Kind() == webrtc.RTPCodecTypeVideo {
		return protocol.KindVideo
	}
	return protocol.KindAudio
}

type WebRTCSendLine struct {
	tr *webrtc.RTPTransceiver
}

func (l *WebRTCSendLine) ReplaceSource(src MediaSource) error {
	if src == nil {
		return l.tr.Sender().ReplaceTrack(nil)
	}
	s, ok := src.(*PionSource)
	if !ok {
		return fmt.Errorf("source %q is not a webrtc track", src.ID())
	}
	return l.tr.Sender().ReplaceTrack(s.Track)
}

type WebRTCRecvLine struct {
	mu      sync.Mutex
	tr      *webrtc.RTPTransceiver
	trackID string
	sink    func(pkt *rtp.Packet)
}

func (l *WebRTCRecvLine) TrackID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trackID
}

func (l *WebRTCRecvLine) ClearTrack() {
	l.mu.Lock()
	l.trackID = ""
	l.mu.Unlock()
}

// OnRTP installs a consumer for inbound packets on this line.
func (l *WebRTCRecvLine) OnRTP(fn func(pkt *rtp.Packet)) {
	l.mu.Lock()
	l.sink = fn
	l.mu.Unlock()
}

func (l *WebRTCRecvLine) setTrack(track *webrtc.TrackRemote) {
	l.mu.Lock()
	l.trackID = track.ID()
	l.mu.Unlock()
}

func (l *WebRTCRecvLine) pump(track *webrtc.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "webrtc").Str("track_id", track.ID()).Msg("rtp pump done")
			return
		}
		l.mu.Lock()
		sink := l.sink
		cleared := l.trackID == ""
		l.mu.Unlock()
		if cleared {
			return
		}
		if sink != nil {
			sink(pkt)
		}
	}
}

type dataLine struct {
	dc *webrtc.DataChannel
}

func newDataLine(dc *webrtc.DataChannel) *dataLine { return &dataLine{dc: dc} }

func (l *dataLine) Send(payload []byte) error { return l.dc.Send(payload) }

func (l *dataLine) OnOpen(fn func()) { l.dc.OnOpen(fn) }

func (l *dataLine) OnMessage(fn func(data []byte)) {
	l.dc.OnMessage(func(msg webrtc.DataChannelMessage) { fn(msg.Data) })
}

func (l *dataLine) OnError(fn func(err error)) { l.dc.OnError(fn) }

func (l *dataLine) OnClose(fn func()) { l.dc.OnClose(fn) }
