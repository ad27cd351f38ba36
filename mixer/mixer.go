// Package mixer implements the server-driven output-slot feature: a fixed
// number of gateway-assigned audio slots, each bound to at most one upstream
// source, with per-slot voice activity converted into source-keyed and
// peer-keyed notifications.
package mixer

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mediabridge/roomkit/channel"
	"github.com/mediabridge/roomkit/emitter"
	"github.com/mediabridge/roomkit/protocol"
)

const (
	topicOutputChanged = "output_changed"
	topicVoiceActivity = "voice_activity"
	topicPeerPrefix    = "peers.voice_activity."
)

// DefaultOutputs is the slot count used when the config does not set one.
const DefaultOutputs = 3

// Config is the app-facing mixer configuration carried in the join
// descriptor.
type Config struct {
	Mode    protocol.MixerMode
	Outputs int
	Sources []protocol.ReceiverSource
}

// OutputSlot mirrors one gateway-assigned slot. Source is nil while empty.
type OutputSlot struct {
	Source *protocol.ReceiverSource
}

// VoiceActivity is a source-keyed activity notification.
type VoiceActivity struct {
	Peer       string
	Track      string
	Active     bool
	AudioLevel int32
}

// Output is one audio receiver backing a slot.
type Output interface {
	Name() string
	OnVoiceActivity(fn func(activity *protocol.VoiceActivity)) func()
}

// OutputAllocator creates the audio outputs the mixer listens on; the
// session implements it.
type OutputAllocator interface {
	AllocateMixerOutput() Output
}

// Mixer reflects gateway slot assignments. The slot array is entirely
// server-authoritative after configuration; the client only proposes and
// withdraws candidate sources.
type Mixer struct {
	ch     *channel.Channel
	mode   protocol.MixerMode
	events *emitter.Emitter

	mu      sync.Mutex
	outputs []OutputSlot
	backing []Output
	sources []protocol.ReceiverSource

	off func()
}

func New(alloc OutputAllocator, ch *channel.Channel, cfg Config) *Mixer {
	n := cfg.Outputs
	if n <= 0 {
		n = DefaultOutputs
	}
	m := &Mixer{
		ch:      ch,
		mode:    cfg.Mode,
		events:  emitter.New(),
		outputs: make([]OutputSlot, n),
		sources: append([]protocol.ReceiverSource(nil), cfg.Sources...),
	}
	for i := 0; i < n; i++ {
		out := alloc.AllocateMixerOutput()
		slot := i
		out.OnVoiceActivity(func(activity *protocol.VoiceActivity) {
			m.onSlotVoiceActivity(slot, activity)
		})
		m.backing = append(m.backing, out)
	}
	m.off = ch.Events().On(channel.TopicMixer, func(payload any) {
		ev, ok := payload.(*protocol.MixerEvent)
		if !ok {
			return
		}
		m.onMixerEvent(ev)
	})
	log.Debug().Str("module", "mixer").Int("outputs", n).Msg("created")
	return m
}

// Reconfig applies a new join descriptor's mixer config. The slot count is
// fixed at feature configuration time and cannot change here.
func (m *Mixer) Reconfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.Outputs > 0 && cfg.Outputs != len(m.outputs) {
		log.Warn().Str("module", "mixer").Int("want", cfg.Outputs).Int("have", len(m.outputs)).Msg("slot count change ignored on reconfig")
	}
	m.mode = cfg.Mode
	m.sources = append([]protocol.ReceiverSource(nil), cfg.Sources...)
}

// State snapshots the config for connect/join calls.
func (m *Mixer) State() *protocol.MixerConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg := &protocol.MixerConfig{
		Mode:    m.mode,
		Sources: append([]protocol.ReceiverSource(nil), m.sources...),
	}
	for _, out := range m.backing {
		cfg.Outputs = append(cfg.Outputs, out.Name())
	}
	return cfg
}

// Outputs snapshots the current slot assignments.
func (m *Mixer) Outputs() []OutputSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Mixer) snapshotLocked() []OutputSlot {
	outs := make([]OutputSlot, len(m.outputs))
	for i, o := range m.outputs {
		if o.Source != nil {
			src := *o.Source
			outs[i] = OutputSlot{Source: &src}
		}
	}
	return outs
}

func (m *Mixer) OnOutputChanged(fn func(outputs []OutputSlot)) func() {
	return m.events.On(topicOutputChanged, func(payload any) {
		fn(payload.([]OutputSlot))
	})
}

func (m *Mixer) OnVoiceActivity(fn func(activity VoiceActivity)) func() {
	return m.events.On(topicVoiceActivity, func(payload any) {
		fn(payload.(VoiceActivity))
	})
}

// OnPeerVoiceActivity subscribes to activity of one peer's sources only.
func (m *Mixer) OnPeerVoiceActivity(peer string, fn func(activity VoiceActivity)) func() {
	return m.events.On(topicPeerPrefix+peer, func(payload any) {
		fn(payload.(VoiceActivity))
	})
}

// Attach proposes candidate sources. Sources already tracked are silently
// skipped; when nothing is net-new no RPC is issued.
func (m *Mixer) Attach(ctx context.Context, sources []protocol.ReceiverSource) error {
	m.mu.Lock()
	var fresh []protocol.ReceiverSource
	for _, src := range sources {
		if m.indexOfLocked(src) == -1 {
			m.sources = append(m.sources, src)
			fresh = append(fresh, src)
		}
	}
	m.mu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	_, err := m.ch.RequestMixer(ctx, &protocol.MixerRequest{
		Attach: &protocol.MixerSources{Sources: fresh},
	})
	return err
}

// Detach withdraws candidate sources; unknown sources are skipped and an
// empty net set short-circuits without an RPC.
func (m *Mixer) Detach(ctx context.Context, sources []protocol.ReceiverSource) error {
	m.mu.Lock()
	var removed []protocol.ReceiverSource
	for _, src := range sources {
		if i := m.indexOfLocked(src); i != -1 {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			removed = append(removed, src)
		}
	}
	m.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}
	_, err := m.ch.RequestMixer(ctx, &protocol.MixerRequest{
		Detach: &protocol.MixerSources{Sources: removed},
	})
	return err
}

func (m *Mixer) indexOfLocked(src protocol.ReceiverSource) int {
	for i, s := range m.sources {
		if s.Peer == src.Peer && s.Track == src.Track {
			return i
		}
	}
	return -1
}

// LeaveRoom resets every slot and the candidate set without a network call,
// mirroring the receivers' local-only room-leave behavior.
func (m *Mixer) LeaveRoom() {
	m.mu.Lock()
	m.outputs = make([]OutputSlot, len(m.outputs))
	m.sources = nil
	snapshot := m.snapshotLocked()
	m.mu.Unlock()
	m.events.Emit(topicOutputChanged, snapshot)
}

func (m *Mixer) onSlotVoiceActivity(slot int, activity *protocol.VoiceActivity) {
	m.mu.Lock()
	var src *protocol.ReceiverSource
	if slot >= 0 && slot < len(m.outputs) && m.outputs[slot].Source != nil {
		s := *m.outputs[slot].Source
		src = &s
	}
	m.mu.Unlock()
	if src != nil {
		m.fireVoice(*src, true, activity.AudioLevel)
	}
}

func (m *Mixer) onMixerEvent(ev *protocol.MixerEvent) {
	switch {
	case ev.SlotSet != nil:
		m.onSlotSet(ev.SlotSet)
	case ev.SlotUnset != nil:
		m.onSlotUnset(ev.SlotUnset)
	}
}

// A slot-set on an occupied slot first reports the previous occupant
// inactive, so consumers never see two sources active on one slot.
func (m *Mixer) onSlotSet(ev *protocol.MixerSlotSet) {
	idx := int(ev.Slot)
	m.mu.Lock()
	if idx < 0 || idx >= len(m.outputs) {
		m.mu.Unlock()
		log.Warn().Str("module", "mixer").Int("slot", idx).Msg("slot-set out of range")
		return
	}
	prev := m.outputs[idx].Source
	m.outputs[idx].Source = ev.Source
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	if prev != nil {
		m.fireVoice(*prev, false, 0)
	}
	m.events.Emit(topicOutputChanged, snapshot)
	if ev.Source != nil {
		m.fireVoice(*ev.Source, true, 0)
	}
}

func (m *Mixer) onSlotUnset(ev *protocol.MixerSlotUnset) {
	idx := int(ev.Slot)
	m.mu.Lock()
	if idx < 0 || idx >= len(m.outputs) || m.outputs[idx].Source == nil {
		m.mu.Unlock()
		return
	}
	prev := *m.outputs[idx].Source
	m.outputs[idx].Source = nil
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.fireVoice(prev, false, 0)
	m.events.Emit(topicOutputChanged, snapshot)
}

func (m *Mixer) fireVoice(src protocol.ReceiverSource, active bool, level int32) {
	ev := VoiceActivity{Peer: src.Peer, Track: src.Track, Active: active, AudioLevel: level}
	m.events.Emit(topicVoiceActivity, ev)
	m.events.Emit(topicPeerPrefix+src.Peer, ev)
}

// Close detaches the mixer from the side channel.
func (m *Mixer) Close() {
	if m.off != nil {
		m.off()
	}
}
