// Package session is the client-side control plane of one real-time media
// session: it owns the gateway bootstrap, the datachannel side channel, the
// sender and receiver track handles and the optional mixer feature, and
// routes server pushes to subscribers.
package session

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"

	"github.com/mediabridge/roomkit/channel"
	"github.com/mediabridge/roomkit/emitter"
	"github.com/mediabridge/roomkit/internal/telemetry"
	"github.com/mediabridge/roomkit/mixer"
	"github.com/mediabridge/roomkit/protocol"
	"github.com/mediabridge/roomkit/transport"
)

// Session states.
const (
	StatePrepare      = "prepare"
	StateNegotiating  = "negotiating"
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// Event topics.
const (
	TopicRoomChanged  = "room.changed"
	TopicPeerJoined   = "room.peer.joined"
	TopicPeerUpdated  = "room.peer.updated"
	TopicPeerLeaved   = "room.peer.leaved"
	TopicTrackStarted = "room.track.started"
	TopicTrackUpdated = "room.track.updated"
	TopicTrackStopped = "room.track.stopped"
	TopicDisconnected = "room.disconnected"
)

// JoinDescriptor is the app-facing room membership request. The mixer config
// only takes effect when given at construction time; later joins can
// reconfigure an existing mixer but not create one.
type JoinDescriptor struct {
	Room      string
	Peer      string
	Metadata  string
	Publish   protocol.Caps
	Subscribe protocol.Caps
	Mixer     *mixer.Config
}

type Config struct {
	Token string
	Join  *JoinDescriptor
}

// Session drives one transport connection. All mutations are serialized on
// one mutex; track handles do their own locking and network round trips.
type Session struct {
	id   string
	gw   transport.Gateway
	peer transport.Peer
	ch   *channel.Channel

	mu        sync.Mutex
	cfg       Config
	connID    string
	iceLite   bool
	state     *fsm.FSM
	senders   map[string]*TrackSender
	receivers []*TrackReceiver
	mix       *mixer.Mixer
	mixOuts   int

	negotiate sync.Mutex

	events  *emitter.Emitter
	offRoom func()
}

func New(gw transport.Gateway, peer transport.Peer, cfg Config) *Session {
	s := &Session{
		id:      uuid.NewString(),
		gw:      gw,
		peer:    peer,
		ch:      channel.New(peer.Line()),
		cfg:     cfg,
		senders: make(map[string]*TrackSender),
		events:  emitter.New(),
		state: fsm.NewFSM(StatePrepare, fsm.Events{
			{Name: "negotiate", Src: []string{StatePrepare}, Dst: StateNegotiating},
			{Name: "establish", Src: []string{StateNegotiating}, Dst: StateConnected},
			{Name: "reject", Src: []string{StateNegotiating}, Dst: StatePrepare},
			{Name: "close", Src: []string{StatePrepare, StateNegotiating, StateConnected}, Dst: StateDisconnected},
		}, fsm.Callbacks{}),
	}

	if cfg.Join != nil && cfg.Join.Mixer != nil {
		s.mix = mixer.New(s, s.ch, *cfg.Join.Mixer)
	}

	s.offRoom = s.ch.Events().On(channel.TopicRoom, func(payload any) {
		ev, ok := payload.(*protocol.RoomEvent)
		if !ok {
			return
		}
		s.onRoomEvent(ev)
	})
	peer.OnTrack(s.onTrack)
	peer.OnNegotiationNeeded(s.onNegotiationNeeded)
	peer.OnCandidate(s.onCandidate)

	log.Debug().Str("module", "session").Str("id", s.id).Msg("created")
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() string { return s.state.Current() }

// Channel exposes the side channel, mainly for request timeout tuning.
func (s *Session) Channel() *channel.Channel { return s.ch }

// Mixer is nil unless the construction-time join descriptor enabled it.
func (s *Session) Mixer() *mixer.Mixer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mix
}

func (s *Session) on(topic string, fn func(payload any)) func() {
	return s.events.On(topic, fn)
}

func (s *Session) OnRoomChanged(fn func(join *protocol.JoinInfo)) func() {
	return s.on(TopicRoomChanged, func(p any) { fn(p.(*protocol.JoinInfo)) })
}

func (s *Session) OnPeerJoined(fn func(ev *protocol.PeerJoined)) func() {
	return s.on(TopicPeerJoined, func(p any) { fn(p.(*protocol.PeerJoined)) })
}

func (s *Session) OnPeerUpdated(fn func(ev *protocol.PeerUpdated)) func() {
	return s.on(TopicPeerUpdated, func(p any) { fn(p.(*protocol.PeerUpdated)) })
}

func (s *Session) OnPeerLeaved(fn func(ev *protocol.PeerLeaved)) func() {
	return s.on(TopicPeerLeaved, func(p any) { fn(p.(*protocol.PeerLeaved)) })
}

// TrackStarted pairs a gateway track announcement with the receiver handle
// subscribable to it, so the app never has to look the handle up again.
type TrackStarted struct {
	Event    *protocol.TrackStarted
	Receiver *TrackReceiver
}

func (s *Session) OnTrackStarted(fn func(ev *TrackStarted)) func() {
	return s.on(TopicTrackStarted, func(p any) { fn(p.(*TrackStarted)) })
}

func (s *Session) OnTrackUpdated(fn func(ev *protocol.TrackUpdated)) func() {
	return s.on(TopicTrackUpdated, func(p any) { fn(p.(*protocol.TrackUpdated)) })
}

func (s *Session) OnTrackStopped(fn func(ev *protocol.TrackStopped)) func() {
	return s.on(TopicTrackStopped, func(p any) { fn(p.(*protocol.TrackStopped)) })
}

func (s *Session) OnDisconnected(fn func()) func() {
	return s.on(TopicDisconnected, func(any) { fn() })
}

// Sender returns the named sender handle, creating it bound to the given
// local source. An existing handle is returned as-is.
func (s *Session) Sender(name string, source transport.MediaSource, opts *SenderOptions) (*TrackSender, error) {
	return s.sender(name, source.Kind(), source, opts)
}

// SenderKind creates a sender by capability only; a source is bound later
// with Attach.
func (s *Session) SenderKind(name string, kind protocol.Kind, opts *SenderOptions) (*TrackSender, error) {
	return s.sender(name, kind, nil, opts)
}

func (s *Session) sender(name string, kind protocol.Kind, source transport.MediaSource, opts *SenderOptions) (*TrackSender, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snd, ok := s.senders[name]; ok {
		if snd.Kind() != kind {
			return nil, ErrKindMismatch
		}
		return snd, nil
	}
	snd := newTrackSender(s.ch, name, kind, source, opts)
	if s.state.Current() != StatePrepare {
		if err := snd.prepare(s.peer); err != nil {
			snd.close()
			return nil, err
		}
	}
	s.senders[name] = snd
	return snd, nil
}

// Receiver returns the handle subscribed to the given remote source,
// creating one when no track-started event has announced it yet.
func (s *Session) Receiver(peer, track string, kind protocol.Kind) *TrackReceiver {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.findReceiverLocked(peer, track); r != nil {
		return r
	}
	r := newRemoteReceiver(s.ch, peer, track, kind)
	s.addReceiverLocked(r)
	return r
}

func (s *Session) Senders() []*TrackSender {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*TrackSender, 0, len(s.senders))
	for _, snd := range s.senders {
		out = append(out, snd)
	}
	return out
}

func (s *Session) Receivers() []*TrackReceiver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*TrackReceiver(nil), s.receivers...)
}

// AllocateMixerOutput creates one capability-first audio receiver backing a
// mixer slot. Output names are stable so the gateway can address slots in
// the connect request.
func (s *Session) AllocateMixerOutput() mixer.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := "mixer_" + strconv.Itoa(s.mixOuts)
	s.mixOuts++
	r := newLocalReceiver(s.ch, name, protocol.KindAudio)
	s.addReceiverLocked(r)
	return r
}

func (s *Session) findReceiverLocked(peer, track string) *TrackReceiver {
	for _, r := range s.receivers {
		if src := r.AttachedSource(); src != nil && src.Peer == peer && src.Track == track {
			return r
		}
	}
	return nil
}

func (s *Session) addReceiverLocked(r *TrackReceiver) {
	if s.state.Current() != StatePrepare {
		if err := r.prepare(s.peer); err != nil {
			log.Error().Err(err).Str("module", "session").Str("receiver", r.Name()).Msg("prepare receiver")
		}
	}
	s.receivers = append(s.receivers, r)
}

func (s *Session) joinInfoLocked() *protocol.JoinInfo {
	if s.cfg.Join == nil {
		return nil
	}
	info := &protocol.JoinInfo{
		Room:      s.cfg.Join.Room,
		Peer:      s.cfg.Join.Peer,
		Metadata:  s.cfg.Join.Metadata,
		Publish:   s.cfg.Join.Publish,
		Subscribe: s.cfg.Join.Subscribe,
	}
	if s.mix != nil {
		info.Features.Mixer = s.mix.State()
	}
	return info
}

func (s *Session) snapshotLocked() protocol.TrackSnapshot {
	var snap protocol.TrackSnapshot
	for _, r := range s.receivers {
		snap.Receivers = append(snap.Receivers, r.Info())
	}
	for _, snd := range s.senders {
		snap.Senders = append(snap.Senders, snd.Info())
	}
	return snap
}

// Connect performs the bootstrap exchange: bind every declared track to a
// media line, offer, POST the join plus track snapshot to the gateway and
// apply its answer. A rejection leaves the session back in prepare state so
// the caller can fix the join and retry.
func (s *Session) Connect(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.state.Event(ctx, "negotiate"); err != nil {
		return ErrInvalidState
	}
	reject := func() {
		if err := s.state.Event(ctx, "reject"); err != nil {
			s.state.SetState(StatePrepare)
		}
	}

	for _, snd := range s.senders {
		if err := snd.prepare(s.peer); err != nil {
			reject()
			return err
		}
	}
	for _, r := range s.receivers {
		if err := r.prepare(s.peer); err != nil {
			reject()
			return err
		}
	}

	offer, err := s.peer.CreateOffer(ctx, false)
	if err != nil {
		reject()
		return err
	}
	req := &protocol.ConnectRequest{
		Version: version,
		Join:    s.joinInfoLocked(),
		Tracks:  s.snapshotLocked(),
		SDP:     offer.SDP,
	}
	res, err := s.gw.Connect(ctx, s.cfg.Token, req)
	if err != nil {
		telemetry.SessionConnects.WithLabelValues("error").Inc()
		reject()
		return err
	}
	if res.ConnID == "" {
		telemetry.SessionConnects.WithLabelValues("rejected").Inc()
		reject()
		return ErrConnectionRejected
	}
	s.connID = res.ConnID
	s.iceLite = res.ICELite

	if err = s.peer.SetLocalDescription(ctx, offer); err == nil {
		err = s.peer.SetRemoteDescription(ctx, transport.Description{Type: "answer", SDP: res.SDP})
	}
	if err != nil {
		telemetry.SessionConnects.WithLabelValues("error").Inc()
		reject()
		return err
	}

	if err := s.ch.Ready(ctx); err != nil {
		telemetry.SessionConnects.WithLabelValues("error").Inc()
		reject()
		return err
	}
	if err := s.state.Event(ctx, "establish"); err != nil {
		s.state.SetState(StateConnected)
	}
	telemetry.SessionConnects.WithLabelValues("ok").Inc()
	log.Info().Str("module", "session").Str("id", s.id).Str("conn", s.connID).Bool("ice_lite", s.iceLite).Msg("connected")
	return nil
}

// RestartIce renegotiates transport connectivity through the bootstrap
// endpoint. When the gateway answers with a different connection id the
// session has been migrated to another host: every receiver's inbound line
// is stale and gets reset so media re-arrival is waited for again.
func (s *Session) RestartIce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Current() != StateConnected {
		return ErrInvalidState
	}
	offer, err := s.peer.CreateOffer(ctx, true)
	if err != nil {
		return err
	}
	req := &protocol.ConnectRequest{
		Join:   s.joinInfoLocked(),
		Tracks: s.snapshotLocked(),
		SDP:    offer.SDP,
	}
	res, err := s.gw.RestartIce(ctx, s.cfg.Token, s.connID, req)
	if err != nil {
		return err
	}
	if res.ConnID != "" && res.ConnID != s.connID {
		log.Info().Str("module", "session").Str("old", s.connID).Str("new", res.ConnID).Msg("migrated to new host")
		s.connID = res.ConnID
		for _, r := range s.receivers {
			r.resetLine()
		}
	}
	s.iceLite = res.ICELite

	if err := s.peer.SetLocalDescription(ctx, offer); err != nil {
		return err
	}
	return s.peer.SetRemoteDescription(ctx, transport.Description{Type: "answer", SDP: res.SDP})
}

// Join switches room membership. Before the first connect only local config
// changes; afterwards the join is round-tripped over the side channel. A
// non-empty token replaces the one used for later bootstrap calls. An
// existing mixer is retained across joins and reconfigured when the new
// descriptor carries a mixer config; a join cannot introduce a mixer.
func (s *Session) Join(ctx context.Context, join *JoinDescriptor, token string) error {
	s.mu.Lock()
	s.cfg.Join = join
	if token != "" {
		s.cfg.Token = token
	}
	if join != nil && join.Mixer != nil {
		if s.mix != nil {
			s.mix.Reconfig(*join.Mixer)
		} else {
			log.Warn().Str("module", "session").Msg("mixer in join descriptor ignored, feature set is fixed at construction")
		}
	}
	connected := s.state.Current() == StateConnected
	info := s.joinInfoLocked()
	s.mu.Unlock()

	if connected {
		_, err := s.ch.RequestSession(ctx, &protocol.SessionRequest{
			Join: &protocol.SessionJoin{Info: info, Token: token},
		})
		if err != nil {
			return err
		}
	}
	s.events.Emit(TopicRoomChanged, info)
	return nil
}

// Leave exits the current room but keeps the transport connection. Receiver
// subscriptions and mixer slots are cleared locally; the gateway drops them
// as part of the leave.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	connected := s.state.Current() == StateConnected
	receivers := append([]*TrackReceiver(nil), s.receivers...)
	mix := s.mix
	s.mu.Unlock()

	// Local room state goes first: the gateway drops the subscriptions with
	// the membership whether or not the leave round trip itself succeeds.
	for _, r := range receivers {
		r.LeaveRoom()
	}
	if mix != nil {
		mix.LeaveRoom()
	}

	if connected {
		_, err := s.ch.RequestSession(ctx, &protocol.SessionRequest{Leave: &protocol.SessionLeave{}})
		if err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.cfg.Join = nil
	s.mu.Unlock()
	s.events.Emit(TopicRoomChanged, (*protocol.JoinInfo)(nil))
	return nil
}

// Disconnect tears the session down: active subscriptions and publications
// are detached first so the gateway sees an orderly withdrawal, then the
// room is left and the transport closed. Detach errors are logged and do
// not stop the teardown.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Current() == StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	receivers := append([]*TrackReceiver(nil), s.receivers...)
	senders := make([]*TrackSender, 0, len(s.senders))
	for _, snd := range s.senders {
		senders = append(senders, snd)
	}
	s.mu.Unlock()

	for _, r := range receivers {
		if !r.Attached() {
			continue
		}
		if err := r.Detach(ctx); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("receiver", r.Name()).Msg("detach on disconnect")
		}
	}
	for _, snd := range senders {
		if !snd.Attached() {
			continue
		}
		if err := snd.Detach(ctx); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("sender", snd.Name()).Msg("detach on disconnect")
		}
	}
	if err := s.Leave(ctx); err != nil {
		log.Warn().Err(err).Str("module", "session").Msg("leave on disconnect")
	}

	s.mu.Lock()
	if err := s.state.Event(ctx, "close"); err != nil {
		s.state.SetState(StateDisconnected)
	}
	for _, r := range s.receivers {
		r.close()
	}
	for _, snd := range s.senders {
		snd.close()
	}
	if s.mix != nil {
		s.mix.Close()
	}
	if s.offRoom != nil {
		s.offRoom()
	}
	s.mu.Unlock()

	err := s.peer.Close()
	s.events.Emit(TopicDisconnected, struct{}{})
	log.Info().Str("module", "session").Str("id", s.id).Msg("disconnected")
	return err
}

// syncSDP round-trips a fresh offer plus track snapshot when the transport
// asks for renegotiation after the initial connect.
func (s *Session) syncSDP(ctx context.Context) error {
	s.negotiate.Lock()
	defer s.negotiate.Unlock()

	s.mu.Lock()
	if s.state.Current() != StateConnected {
		s.mu.Unlock()
		return ErrInvalidState
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	offer, err := s.peer.CreateOffer(ctx, false)
	if err != nil {
		return err
	}
	res, err := s.ch.RequestSession(ctx, &protocol.SessionRequest{
		SDP: &protocol.SessionUpdateSDP{Tracks: snap, SDP: offer.SDP},
	})
	if err != nil {
		return err
	}
	if res.SDP == nil {
		return channel.ErrInvalidResponse
	}
	if err := s.peer.SetLocalDescription(ctx, offer); err != nil {
		return err
	}
	return s.peer.SetRemoteDescription(ctx, transport.Description{Type: "answer", SDP: res.SDP.SDP})
}

func (s *Session) onNegotiationNeeded() {
	s.mu.Lock()
	connected := s.state.Current() == StateConnected
	s.mu.Unlock()
	if !connected {
		return
	}
	go func() {
		if err := s.syncSDP(context.Background()); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("sdp sync")
		}
	}()
}

func (s *Session) onCandidate(candidate string) {
	s.mu.Lock()
	connID := s.connID
	iceLite := s.iceLite
	s.mu.Unlock()
	// An ICE-lite gateway never needs trickled client candidates.
	if iceLite || connID == "" {
		return
	}
	go func() {
		if err := s.gw.SendCandidates(context.Background(), connID, []string{candidate}); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("send candidate")
		}
	}()
}

func (s *Session) onTrack(trackID string) {
	s.mu.Lock()
	var match *TrackReceiver
	for _, r := range s.receivers {
		if r.trackID() == trackID {
			match = r
			break
		}
	}
	s.mu.Unlock()
	if match == nil {
		log.Warn().Str("module", "session").Str("track", trackID).Msg("media for unknown line")
		return
	}
	match.setTrackReady()
}

func (s *Session) onRoomEvent(ev *protocol.RoomEvent) {
	switch {
	case ev.PeerJoined != nil:
		s.events.Emit(TopicPeerJoined, ev.PeerJoined)
	case ev.PeerUpdated != nil:
		s.events.Emit(TopicPeerUpdated, ev.PeerUpdated)
	case ev.PeerLeaved != nil:
		s.removeReceivers(func(src *protocol.ReceiverSource) bool {
			return src.Peer == ev.PeerLeaved.Peer
		})
		s.events.Emit(TopicPeerLeaved, ev.PeerLeaved)
	case ev.TrackStarted != nil:
		s.onTrackStarted(ev.TrackStarted)
	case ev.TrackUpdated != nil:
		s.events.Emit(TopicTrackUpdated, ev.TrackUpdated)
	case ev.TrackStopped != nil:
		s.removeReceivers(func(src *protocol.ReceiverSource) bool {
			return src.Peer == ev.TrackStopped.Peer && src.Track == ev.TrackStopped.Track
		})
		s.events.Emit(TopicTrackStopped, ev.TrackStopped)
	}
}

// onTrackStarted creates the receiver handle for a newly announced remote
// track and hands it to subscribers along with the event.
func (s *Session) onTrackStarted(ev *protocol.TrackStarted) {
	s.mu.Lock()
	r := s.findReceiverLocked(ev.Peer, ev.Track)
	if r == nil {
		r = newRemoteReceiver(s.ch, ev.Peer, ev.Track, ev.Kind)
		s.addReceiverLocked(r)
	}
	s.mu.Unlock()
	s.events.Emit(TopicTrackStarted, &TrackStarted{Event: ev, Receiver: r})
}

// removeReceivers drops every receiver whose bound source matches. Active
// ones are detached first so the gateway sees the subscription withdrawn;
// the round trip cannot run inline because this is called on the goroutine
// that delivers its own response.
func (s *Session) removeReceivers(match func(src *protocol.ReceiverSource) bool) {
	s.mu.Lock()
	kept := s.receivers[:0]
	var removed []*TrackReceiver
	for _, r := range s.receivers {
		if src := r.AttachedSource(); src != nil && match(src) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.receivers = kept
	s.mu.Unlock()

	for _, r := range removed {
		if r.Status() != StatusActive {
			r.close()
			continue
		}
		r := r
		go func() {
			if err := r.Detach(context.Background()); err != nil {
				log.Warn().Err(err).Str("module", "session").Str("receiver", r.Name()).Msg("detach on removal")
			}
			r.close()
		}()
	}
}
