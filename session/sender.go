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

// TrackStatus is the lifecycle state of one sender or receiver handle.
type TrackStatus string

const (
	StatusUnattached TrackStatus = "unattached"
	StatusAttaching  TrackStatus = "attaching"
	StatusWaiting    TrackStatus = "waiting"
	StatusActive     TrackStatus = "active"
	StatusDetaching  TrackStatus = "detaching"
	StatusIdle       TrackStatus = "idle"
	StatusError      TrackStatus = "error"
)

const topicStatus = "status"

// SenderOptions configures one outbound track.
type SenderOptions struct {
	Priority  uint32
	Bitrate   protocol.BitrateControl
	Simulcast bool
	Metadata  string
}

func defaultSenderOptions() SenderOptions {
	return SenderOptions{Priority: 1, Bitrate: protocol.BitrateDynamicConsumers}
}

// TrackSender is the handle for one published media track. It reconciles
// local intent with gateway-confirmed state: before the session leaves
// prepare state every mutation is local-only, afterwards each mutation is
// round-tripped over the RPC channel.
type TrackSender struct {
	ch        *channel.Channel
	name      string
	kind      protocol.Kind
	simulcast bool

	mu       sync.Mutex
	cfg      protocol.SenderConfig
	metadata string
	source   transport.MediaSource
	line     transport.SendLine

	state  *fsm.FSM
	events *emitter.Emitter
	off    func()
}

func newTrackSender(ch *channel.Channel, name string, kind protocol.Kind, source transport.MediaSource, opts *SenderOptions) *TrackSender {
	o := defaultSenderOptions()
	if opts != nil {
		o = *opts
	}
	s := &TrackSender{
		ch:        ch,
		name:      name,
		kind:      kind,
		simulcast: o.Simulcast,
		cfg:       protocol.SenderConfig{Priority: o.Priority, Bitrate: o.Bitrate},
		metadata:  o.Metadata,
		source:    source,
		events:    emitter.New(),
	}
	s.state = fsm.NewFSM(
		string(StatusUnattached),
		fsm.Events{
			{Name: "attach", Src: []string{string(StatusUnattached), string(StatusError)}, Dst: string(StatusAttaching)},
			{Name: "detach", Src: []string{string(StatusAttaching), string(StatusActive), string(StatusError)}, Dst: string(StatusDetaching)},
			{Name: "detached", Src: []string{string(StatusDetaching)}, Dst: string(StatusUnattached)},
		},
		fsm.Callbacks{},
	)
	s.off = ch.Events().On(channel.SenderTopic(name), func(payload any) {
		ev, ok := payload.(*protocol.SenderEvent)
		if !ok || ev.State == nil {
			return
		}
		s.applyServerStatus(ev.State.Status)
	})
	log.Debug().Str("module", "sender").Str("name", name).Str("kind", kind.String()).Msg("created")
	return s
}

func (s *TrackSender) Name() string { return s.name }

func (s *TrackSender) Kind() protocol.Kind { return s.kind }

func (s *TrackSender) Status() TrackStatus { return TrackStatus(s.state.Current()) }

func (s *TrackSender) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source != nil
}

// OnStatus subscribes to status transitions; the returned func cancels the
// subscription.
func (s *TrackSender) OnStatus(fn func(status TrackStatus)) func() {
	return s.events.On(topicStatus, func(payload any) {
		fn(payload.(TrackStatus))
	})
}

func (s *TrackSender) setStatus(status TrackStatus) {
	s.state.SetState(string(status))
	s.events.Emit(topicStatus, status)
}

// localTransition runs a caller-driven lifecycle step. A server event may
// have moved the machine elsewhere in the meantime; the local step is then
// forced, since the caller already passed its own guards.
func (s *TrackSender) localTransition(ctx context.Context, event string, dst TrackStatus) {
	if err := s.state.Event(ctx, event); err != nil {
		s.state.SetState(string(dst))
	}
	s.events.Emit(topicStatus, s.Status())
}

// Server-reported transitions win unconditionally over the local machine.
func (s *TrackSender) applyServerStatus(status protocol.SenderStatus) {
	switch status {
	case protocol.SenderStarting:
		s.setStatus(StatusAttaching)
	case protocol.SenderActive:
		s.setStatus(StatusActive)
	case protocol.SenderInactive:
		s.setStatus(StatusError)
	}
}

// Info snapshots the declared state for connect/restart/renegotiation calls.
func (s *TrackSender) Info() protocol.SenderInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := protocol.SenderInfo{
		Name: s.name,
		Kind: s.kind,
		State: protocol.SenderState{
			Config: &protocol.SenderConfig{Priority: s.cfg.Priority, Bitrate: s.cfg.Bitrate},
		},
	}
	if s.source != nil {
		info.State.Source = &protocol.SenderSource{ID: s.source.ID(), Metadata: s.metadata}
	}
	return info
}

// prepare binds the local outbound media line. Called exactly once by the
// session when it leaves prepare state; transceiver mutations before the
// first negotiation are rejected by some transports.
func (s *TrackSender) prepare(peer transport.Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.line != nil {
		return nil
	}
	line, err := peer.AddSendLine(s.kind, s.simulcast)
	if err != nil {
		return err
	}
	if s.source != nil {
		if err := line.ReplaceSource(s.source); err != nil {
			return err
		}
	}
	s.line = line
	return nil
}

// Attach binds a local source to this sender. Before the session leaves
// prepare state only local intent is mutated; afterwards the attach is
// round-tripped and the gateway's status event drives the handle to active.
func (s *TrackSender) Attach(ctx context.Context, source transport.MediaSource, metadata string) error {
	s.mu.Lock()
	if s.source != nil {
		s.mu.Unlock()
		return ErrAlreadyAttached
	}
	if source.Kind() != s.kind {
		s.mu.Unlock()
		return ErrKindMismatch
	}
	s.source = source
	if metadata != "" {
		s.metadata = metadata
	}
	line := s.line
	cfg := s.cfg
	s.mu.Unlock()

	if line == nil {
		log.Debug().Str("module", "sender").Str("name", s.name).Msg("attach in prepare state")
		return nil
	}

	s.localTransition(ctx, "attach", StatusAttaching)
	if err := s.ch.Ready(ctx); err != nil {
		return err
	}
	if err := line.ReplaceSource(source); err != nil {
		return err
	}
	_, err := s.ch.RequestSender(ctx, &protocol.SenderRequest{
		Name: s.name,
		Attach: &protocol.SenderAttach{
			Config: &cfg,
			Source: &protocol.SenderSource{ID: source.ID(), Metadata: s.metadata},
		},
	})
	return err
}

// Config replaces the sender configuration.
func (s *TrackSender) Config(ctx context.Context, cfg protocol.SenderConfig) error {
	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return ErrNotAttached
	}
	s.cfg = cfg
	line := s.line
	s.mu.Unlock()

	if line == nil {
		log.Debug().Str("module", "sender").Str("name", s.name).Msg("config in prepare state")
		return nil
	}

	if err := s.ch.Ready(ctx); err != nil {
		return err
	}
	_, err := s.ch.RequestSender(ctx, &protocol.SenderRequest{Name: s.name, Config: &cfg})
	return err
}

// Detach unbinds the current source. The handle returns to unattached and a
// fresh Attach is legal afterwards.
func (s *TrackSender) Detach(ctx context.Context) error {
	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return ErrNotAttached
	}
	s.source = nil
	line := s.line
	s.mu.Unlock()

	if line == nil {
		s.setStatus(StatusUnattached)
		log.Debug().Str("module", "sender").Str("name", s.name).Msg("detach in prepare state")
		return nil
	}

	s.localTransition(ctx, "detach", StatusDetaching)
	if err := s.ch.Ready(ctx); err != nil {
		return err
	}
	if err := line.ReplaceSource(nil); err != nil {
		return err
	}
	_, err := s.ch.RequestSender(ctx, &protocol.SenderRequest{Name: s.name, Detach: &protocol.SenderDetach{}})
	s.localTransition(ctx, "detached", StatusUnattached)
	return err
}

func (s *TrackSender) close() {
	if s.off != nil {
		s.off()
	}
}
