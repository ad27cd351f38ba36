package session

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"

	"github.com/mediabridge/roomkit/channel"
	"github.com/mediabridge/roomkit/emitter"
	"github.com/mediabridge/roomkit/protocol"
	"github.com/mediabridge/roomkit/transport"
)

const topicVoiceActivity = "voice_activity"

// ReceiverOptions configures one subscribed track.
type ReceiverOptions struct {
	Priority    uint32
	MaxSpatial  uint32
	MaxTemporal uint32
}

func defaultReceiverOptions() ReceiverOptions {
	return ReceiverOptions{Priority: 1, MaxSpatial: 2, MaxTemporal: 2}
}

// TrackReceiver is the handle for one subscribed media track. Receivers are
// created either implicitly by the session when the gateway announces a
// remote track (source bound at construction) or eagerly by app code
// (source bound at attach time).
type TrackReceiver struct {
	ch   *channel.Channel
	name string
	kind protocol.Kind

	mu        sync.Mutex
	bound     *protocol.ReceiverSource
	state     protocol.ReceiverState
	line      transport.RecvLine
	lineReady *channel.Gate

	status *fsm.FSM
	events *emitter.Emitter
	off    func()
}

func receiverName(peer, track string, kind protocol.Kind) string {
	return peer + "_" + track + "_" + kind.String()
}

// newRemoteReceiver builds a receiver for a gateway-announced track.
func newRemoteReceiver(ch *channel.Channel, peer, track string, kind protocol.Kind) *TrackReceiver {
	r := newLocalReceiver(ch, receiverName(peer, track, kind), kind)
	r.bound = &protocol.ReceiverSource{Peer: peer, Track: track}
	return r
}

// newLocalReceiver builds an unbound, capability-first receiver.
func newLocalReceiver(ch *channel.Channel, name string, kind protocol.Kind) *TrackReceiver {
	r := &TrackReceiver{
		ch:        ch,
		name:      name,
		kind:      kind,
		lineReady: channel.NewGate(),
		events:    emitter.New(),
	}
	r.status = fsm.NewFSM(
		string(StatusIdle),
		fsm.Events{
			{Name: "attach", Src: []string{string(StatusIdle), string(StatusError)}, Dst: string(StatusWaiting)},
			{Name: "detach", Src: []string{string(StatusWaiting), string(StatusActive), string(StatusError)}, Dst: string(StatusIdle)},
		},
		fsm.Callbacks{},
	)
	r.off = ch.Events().On(channel.ReceiverTopic(name), func(payload any) {
		ev, ok := payload.(*protocol.ReceiverEvent)
		if !ok {
			return
		}
		switch {
		case ev.State != nil:
			r.applyServerStatus(ev.State.Status)
		case ev.VoiceActivity != nil:
			r.events.Emit(topicVoiceActivity, ev.VoiceActivity)
		}
	})
	log.Debug().Str("module", "receiver").Str("name", name).Str("kind", kind.String()).Msg("created")
	return r
}

func (r *TrackReceiver) Name() string { return r.name }

func (r *TrackReceiver) Kind() protocol.Kind { return r.kind }

func (r *TrackReceiver) Status() TrackStatus { return TrackStatus(r.status.Current()) }

// AttachedSource is the remote track this receiver is bound to, nil for an
// unbound capability-first receiver.
func (r *TrackReceiver) AttachedSource() *protocol.ReceiverSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound == nil {
		return nil
	}
	src := *r.bound
	return &src
}

// Attached reports whether a subscription is currently declared, locally or
// round-tripped.
func (r *TrackReceiver) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Source != nil
}

func (r *TrackReceiver) OnStatus(fn func(status TrackStatus)) func() {
	return r.events.On(topicStatus, func(payload any) {
		fn(payload.(TrackStatus))
	})
}

// OnVoiceActivity subscribes to per-track audio level pushes.
func (r *TrackReceiver) OnVoiceActivity(fn func(activity *protocol.VoiceActivity)) func() {
	return r.events.On(topicVoiceActivity, func(payload any) {
		fn(payload.(*protocol.VoiceActivity))
	})
}

func (r *TrackReceiver) setStatus(status TrackStatus) {
	r.status.SetState(string(status))
	r.events.Emit(topicStatus, status)
}

func (r *TrackReceiver) localTransition(ctx context.Context, event string, dst TrackStatus) {
	if err := r.status.Event(ctx, event); err != nil {
		r.status.SetState(string(dst))
	}
	r.events.Emit(topicStatus, r.Status())
}

func (r *TrackReceiver) applyServerStatus(status protocol.ReceiverStatus) {
	switch status {
	case protocol.ReceiverWaiting:
		r.setStatus(StatusWaiting)
	case protocol.ReceiverActive:
		r.setStatus(StatusActive)
	case protocol.ReceiverInactive:
		r.setStatus(StatusError)
	}
}

// Info snapshots the declared state for connect/restart/renegotiation calls.
func (r *TrackReceiver) Info() protocol.ReceiverInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := protocol.ReceiverInfo{Name: r.name, Kind: r.kind}
	if r.state.Config != nil {
		cfg := *r.state.Config
		info.State.Config = &cfg
	}
	if r.state.Source != nil {
		src := *r.state.Source
		info.State.Source = &src
	}
	return info
}

// prepare binds the local inbound media line, once.
func (r *TrackReceiver) prepare(peer transport.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.line != nil {
		return nil
	}
	line, err := peer.AddRecvLine(r.kind)
	if err != nil {
		return err
	}
	r.line = line
	return nil
}

// trackID is the media-track identifier of the bound inbound line, empty
// until media has arrived.
func (r *TrackReceiver) trackID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.line == nil {
		return ""
	}
	return r.line.TrackID()
}

// setTrackReady marks the inbound line live. Called by the session when the
// transport reports media for this receiver's line.
func (r *TrackReceiver) setTrackReady() {
	r.lineReady.SetReady()
}

// Ready blocks until the inbound line has delivered media.
func (r *TrackReceiver) Ready(ctx context.Context) error {
	r.mu.Lock()
	gate := r.lineReady
	r.mu.Unlock()
	return gate.Wait(ctx)
}

// resetLine drops the inbound line binding after the gateway migrated the
// session to a new host: the old line is stale and media will re-arrive on
// a fresh one.
func (r *TrackReceiver) resetLine() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.line != nil {
		r.line.ClearTrack()
	}
	r.lineReady = channel.NewGate()
}

// AttachSource binds a remote source and subscribes to it. Used by the
// capability-first model; implicitly created receivers call Attach directly.
func (r *TrackReceiver) AttachSource(ctx context.Context, source protocol.ReceiverSource, opts *ReceiverOptions) error {
	r.mu.Lock()
	r.bound = &source
	r.mu.Unlock()
	return r.Attach(ctx, opts)
}

// Attach subscribes to the bound source. Status moves to waiting and is
// emitted before any network call; the round trip additionally waits for
// channel readiness and for the inbound line to be live, so the gateway is
// never asked to attach a line that does not exist yet.
func (r *TrackReceiver) Attach(ctx context.Context, opts *ReceiverOptions) error {
	o := defaultReceiverOptions()
	if opts != nil {
		o = *opts
	}
	r.mu.Lock()
	if r.bound == nil {
		r.mu.Unlock()
		return ErrNotAttached
	}
	src := *r.bound
	r.state.Config = &protocol.ReceiverConfig{Priority: o.Priority, MaxSpatial: o.MaxSpatial, MaxTemporal: o.MaxTemporal}
	r.state.Source = &src
	cfg := *r.state.Config
	line := r.line
	r.mu.Unlock()

	r.localTransition(ctx, "attach", StatusWaiting)

	if line == nil {
		log.Debug().Str("module", "receiver").Str("name", r.name).Msg("attach in prepare state")
		return nil
	}

	if err := r.ch.Ready(ctx); err != nil {
		return err
	}
	if err := r.Ready(ctx); err != nil {
		return err
	}
	_, err := r.ch.RequestReceiver(ctx, &protocol.ReceiverRequest{
		Name:   r.name,
		Attach: &protocol.ReceiverAttach{Source: &src, Config: &cfg},
	})
	return err
}

// Config updates the receiver quality configuration.
func (r *TrackReceiver) Config(ctx context.Context, cfg protocol.ReceiverConfig) error {
	r.mu.Lock()
	r.state.Config = &cfg
	line := r.line
	r.mu.Unlock()

	if line == nil {
		log.Debug().Str("module", "receiver").Str("name", r.name).Msg("config in prepare state")
		return nil
	}

	if err := r.ch.Ready(ctx); err != nil {
		return err
	}
	if err := r.Ready(ctx); err != nil {
		return err
	}
	_, err := r.ch.RequestReceiver(ctx, &protocol.ReceiverRequest{Name: r.name, Config: &cfg})
	return err
}

// Detach unsubscribes. The handle returns to idle; a fresh Attach is legal.
func (r *TrackReceiver) Detach(ctx context.Context) error {
	r.mu.Lock()
	if r.state.Source == nil {
		r.mu.Unlock()
		return ErrNotAttached
	}
	r.state.Source = nil
	r.state.Config = nil
	line := r.line
	r.mu.Unlock()

	r.localTransition(ctx, "detach", StatusIdle)

	if line == nil {
		log.Debug().Str("module", "receiver").Str("name", r.name).Msg("detach in prepare state")
		return nil
	}

	if err := r.ch.Ready(ctx); err != nil {
		return err
	}
	if err := r.Ready(ctx); err != nil {
		return err
	}
	_, err := r.ch.RequestReceiver(ctx, &protocol.ReceiverRequest{Name: r.name, Detach: &protocol.ReceiverDetach{}})
	return err
}

// LeaveRoom clears the subscription intent without a network call. The
// gateway does not re-announce detachment when it removes the whole room
// membership, so the local state has to be reset here.
func (r *TrackReceiver) LeaveRoom() {
	r.mu.Lock()
	r.state.Source = nil
	r.mu.Unlock()
}

func (r *TrackReceiver) close() {
	if r.off != nil {
		r.off()
	}
}
