package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediabridge/roomkit/channel"
	"github.com/mediabridge/roomkit/protocol"
	"github.com/mediabridge/roomkit/transport"
)

type fakeSource struct {
	id   string
	kind protocol.Kind
}

func (s *fakeSource) ID() string          { return s.id }
func (s *fakeSource) Kind() protocol.Kind { return s.kind }

type fakeSendLine struct {
	mu     sync.Mutex
	source transport.MediaSource
}

func (l *fakeSendLine) ReplaceSource(src transport.MediaSource) error {
	l.mu.Lock()
	l.source = src
	l.mu.Unlock()
	return nil
}

type fakeRecvLine struct {
	mu      sync.Mutex
	trackID string
	cleared int
}

func (l *fakeRecvLine) TrackID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.trackID
}

func (l *fakeRecvLine) ClearTrack() {
	l.mu.Lock()
	l.cleared++
	l.trackID = ""
	l.mu.Unlock()
}

func (l *fakeRecvLine) setTrackID(id string) {
	l.mu.Lock()
	l.trackID = id
	l.mu.Unlock()
}

// fakeLine is an in-memory side channel; respond, when set, answers every
// request synchronously.
type fakeLine struct {
	mu        sync.Mutex
	sent      [][]byte
	onOpen    func()
	onMessage func(data []byte)
	onError   func(err error)
	onClose   func()
	respond   func(env *protocol.ClientEvent) *protocol.Response
}

func (l *fakeLine) Send(data []byte) error {
	l.mu.Lock()
	l.sent = append(l.sent, append([]byte(nil), data...))
	respond := l.respond
	l.mu.Unlock()
	if respond != nil {
		var env protocol.ClientEvent
		if err := env.UnmarshalBinary(data); err == nil && env.Request != nil {
			if res := respond(&env); res != nil {
				res.ReqID = env.Request.ReqID
				l.pushEvent(&protocol.ServerEvent{Response: res})
			}
		}
	}
	return nil
}

func (l *fakeLine) OnOpen(fn func())               { l.onOpen = fn }
func (l *fakeLine) OnMessage(fn func(data []byte)) { l.onMessage = fn }
func (l *fakeLine) OnError(fn func(err error))     { l.onError = fn }
func (l *fakeLine) OnClose(fn func())              { l.onClose = fn }

func (l *fakeLine) open() { l.onOpen() }

func (l *fakeLine) pushEvent(ev *protocol.ServerEvent) {
	data, _ := ev.MarshalBinary()
	l.onMessage(data)
}

// okResponder answers every request variant with its success response.
func okResponder(env *protocol.ClientEvent) *protocol.Response {
	req := env.Request
	switch {
	case req.Session != nil:
		return &protocol.Response{Session: &protocol.SessionResponse{}}
	case req.Sender != nil:
		return &protocol.Response{Sender: &protocol.SenderResponse{}}
	case req.Receiver != nil:
		return &protocol.Response{Receiver: &protocol.ReceiverResponse{}}
	case req.Features != nil:
		return &protocol.Response{Features: &protocol.FeaturesResponse{Mixer: &protocol.MixerResponse{}}}
	}
	return nil
}

func (l *fakeLine) requests(t *testing.T) []*protocol.Request {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*protocol.Request
	for _, data := range l.sent {
		var env protocol.ClientEvent
		require.NoError(t, env.UnmarshalBinary(data))
		if env.Request != nil {
			out = append(out, env.Request)
		}
	}
	return out
}

type fakePeer struct {
	mu          sync.Mutex
	line        *fakeLine
	sendLines   []*fakeSendLine
	recvLines   []*fakeRecvLine
	offers      int
	restarts    int
	local       []transport.Description
	remote      []transport.Description
	onTrack     func(trackID string)
	onNegotiate func()
	onCandidate func(candidate string)
	closed      bool
}

func newFakePeer() *fakePeer {
	return &fakePeer{line: &fakeLine{}}
}

func (p *fakePeer) CreateOffer(_ context.Context, iceRestart bool) (transport.Description, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offers++
	if iceRestart {
		p.restarts++
	}
	return transport.Description{Type: "offer", SDP: fmt.Sprintf("offer-%d", p.offers)}, nil
}

func (p *fakePeer) SetLocalDescription(_ context.Context, desc transport.Description) error {
	p.mu.Lock()
	p.local = append(p.local, desc)
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) SetRemoteDescription(_ context.Context, desc transport.Description) error {
	p.mu.Lock()
	p.remote = append(p.remote, desc)
	p.mu.Unlock()
	return nil
}

func (p *fakePeer) AddSendLine(protocol.Kind, bool) (transport.SendLine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := &fakeSendLine{}
	p.sendLines = append(p.sendLines, l)
	return l, nil
}

func (p *fakePeer) AddRecvLine(protocol.Kind) (transport.RecvLine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := &fakeRecvLine{}
	p.recvLines = append(p.recvLines, l)
	return l, nil
}

func (p *fakePeer) Line() channel.Line { return p.line }

func (p *fakePeer) OnTrack(fn func(trackID string))       { p.onTrack = fn }
func (p *fakePeer) OnNegotiationNeeded(fn func())         { p.onNegotiate = fn }
func (p *fakePeer) OnCandidate(fn func(candidate string)) { p.onCandidate = fn }

func (p *fakePeer) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

type connectCall struct {
	token  string
	connID string
	req    *protocol.ConnectRequest
}

type fakeGateway struct {
	mu           sync.Mutex
	connects     []connectCall
	connectRes   *protocol.ConnectResponse
	connectErr   error
	restarts     []connectCall
	restartRes   *protocol.ConnectResponse
	restartErr   error
	candidates   [][]string
	candidateIDs []string
}

func (g *fakeGateway) Connect(_ context.Context, token string, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connects = append(g.connects, connectCall{token: token, req: req})
	if g.connectErr != nil {
		return nil, g.connectErr
	}
	if g.connectRes != nil {
		return g.connectRes, nil
	}
	return &protocol.ConnectResponse{ConnID: "conn-1", SDP: "answer-1", ICELite: true}, nil
}

func (g *fakeGateway) RestartIce(_ context.Context, token, connID string, req *protocol.ConnectRequest) (*protocol.ConnectResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.restarts = append(g.restarts, connectCall{token: token, connID: connID, req: req})
	if g.restartErr != nil {
		return nil, g.restartErr
	}
	if g.restartRes != nil {
		return g.restartRes, nil
	}
	return &protocol.ConnectResponse{ConnID: connID, SDP: "answer-restart", ICELite: true}, nil
}

func (g *fakeGateway) SendCandidates(_ context.Context, connID string, candidates []string) error {
	g.mu.Lock()
	g.candidates = append(g.candidates, candidates)
	g.candidateIDs = append(g.candidateIDs, connID)
	g.mu.Unlock()
	return nil
}

// newConnectedSession builds a session against fakes and drives it to the
// connected state.
func newConnectedSession(t *testing.T, cfg Config) (*Session, *fakePeer, *fakeGateway) {
	t.Helper()
	peer := newFakePeer()
	peer.line.respond = okResponder
	gw := &fakeGateway{}
	s := New(gw, peer, cfg)
	peer.line.open()
	require.NoError(t, s.Connect(context.Background(), "test/1"))
	return s, peer, gw
}

func defaultJoin() *JoinDescriptor {
	return &JoinDescriptor{
		Room:      "lobby",
		Peer:      "alice",
		Publish:   protocol.Caps{Peer: true, Tracks: true},
		Subscribe: protocol.Caps{Peer: true, Tracks: true},
	}
}
