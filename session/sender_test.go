package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabridge/roomkit/protocol"
)

func TestTrackSender_AttachGuards(t *testing.T) {
	s, _, _ := newConnectedSession(t, Config{Token: "tok", Join: defaultJoin()})
	snd, err := s.SenderKind("mic", protocol.KindAudio, nil)
	require.NoError(t, err)

	err = snd.Attach(context.Background(), &fakeSource{id: "t1", kind: protocol.KindVideo}, "")
	require.ErrorIs(t, err, ErrKindMismatch)

	require.NoError(t, snd.Attach(context.Background(), &fakeSource{id: "t1", kind: protocol.KindAudio}, ""))
	err = snd.Attach(context.Background(), &fakeSource{id: "t2", kind: protocol.KindAudio}, "")
	require.ErrorIs(t, err, ErrAlreadyAttached)
}

func TestTrackSender_AttachRoundTrip(t *testing.T) {
	s, peer, _ := newConnectedSession(t, Config{Token: "tok", Join: defaultJoin()})
	snd, err := s.SenderKind("mic", protocol.KindAudio, &SenderOptions{
		Priority: 3,
		Bitrate:  protocol.BitrateFixed,
	})
	require.NoError(t, err)

	var statuses []TrackStatus
	snd.OnStatus(func(status TrackStatus) { statuses = append(statuses, status) })

	require.NoError(t, snd.Attach(context.Background(), &fakeSource{id: "t1", kind: protocol.KindAudio}, "metadata"))
	assert.Equal(t, []TrackStatus{StatusAttaching}, statuses)

	reqs := peer.line.requests(t)
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Sender)
	assert.Equal(t, "mic", reqs[0].Sender.Name)
	require.NotNil(t, reqs[0].Sender.Attach)
	assert.Equal(t, uint32(3), reqs[0].Sender.Attach.Config.Priority)
	assert.Equal(t, protocol.BitrateFixed, reqs[0].Sender.Attach.Config.Bitrate)
	assert.Equal(t, "t1", reqs[0].Sender.Attach.Source.ID)
	assert.Equal(t, "metadata", reqs[0].Sender.Attach.Source.Metadata)

	// The source is bound to the outbound media line.
	require.Len(t, peer.sendLines, 1)
	require.NotNil(t, peer.sendLines[0].source)
	assert.Equal(t, "t1", peer.sendLines[0].source.ID())
}

func TestTrackSender_ServerStatusDrivesHandle(t *testing.T) {
	s, peer, _ := newConnectedSession(t, Config{Token: "tok", Join: defaultJoin()})
	snd, err := s.SenderKind("mic", protocol.KindAudio, nil)
	require.NoError(t, err)
	require.NoError(t, snd.Attach(context.Background(), &fakeSource{id: "t1", kind: protocol.KindAudio}, ""))

	peer.line.pushEvent(&protocol.ServerEvent{Sender: &protocol.SenderEvent{
		Name:  "mic",
		State: &protocol.SenderStateEvent{Status: protocol.SenderActive},
	}})
	assert.Equal(t, StatusActive, snd.Status())

	peer.line.pushEvent(&protocol.ServerEvent{Sender: &protocol.SenderEvent{
		Name:  "mic",
		State: &protocol.SenderStateEvent{Status: protocol.SenderInactive},
	}})
	assert.Equal(t, StatusError, snd.Status())

	// Events for other senders do not leak in.
	peer.line.pushEvent(&protocol.ServerEvent{Sender: &protocol.SenderEvent{
		Name:  "cam",
		State: &protocol.SenderStateEvent{Status: protocol.SenderActive},
	}})
	assert.Equal(t, StatusError, snd.Status())
}

func TestTrackSender_ConfigRequiresAttachment(t *testing.T) {
	s, peer, _ := newConnectedSession(t, Config{Token: "tok", Join: defaultJoin()})
	snd, err := s.SenderKind("mic", protocol.KindAudio, nil)
	require.NoError(t, err)

	err = snd.Config(context.Background(), protocol.SenderConfig{Priority: 5})
	require.ErrorIs(t, err, ErrNotAttached)

	require.NoError(t, snd.Attach(context.Background(), &fakeSource{id: "t1", kind: protocol.KindAudio}, ""))
	require.NoError(t, snd.Config(context.Background(), protocol.SenderConfig{Priority: 5}))

	reqs := peer.line.requests(t)
	last := reqs[len(reqs)-1]
	require.NotNil(t, last.Sender)
	require.NotNil(t, last.Sender.Config)
	assert.Equal(t, uint32(5), last.Sender.Config.Priority)
}

func TestTrackSender_DetachAllowsReattach(t *testing.T) {
	s, peer, _ := newConnectedSession(t, Config{Token: "tok", Join: defaultJoin()})
	snd, err := s.SenderKind("mic", protocol.KindAudio, nil)
	require.NoError(t, err)

	require.ErrorIs(t, snd.Detach(context.Background()), ErrNotAttached)

	require.NoError(t, snd.Attach(context.Background(), &fakeSource{id: "t1", kind: protocol.KindAudio}, ""))
	require.NoError(t, snd.Detach(context.Background()))
	assert.Equal(t, StatusUnattached, snd.Status())
	assert.False(t, snd.Attached())

	reqs := peer.line.requests(t)
	last := reqs[len(reqs)-1]
	require.NotNil(t, last.Sender)
	assert.NotNil(t, last.Sender.Detach)

	// The handle is reusable after a detach.
	require.NoError(t, snd.Attach(context.Background(), &fakeSource{id: "t2", kind: protocol.KindAudio}, ""))
}

func TestTrackSender_PrepareStateMutationsSurviveConnect(t *testing.T) {
	peer := newFakePeer()
	peer.line.respond = okResponder
	gw := &fakeGateway{}
	s := New(gw, peer, Config{Token: "tok", Join: defaultJoin()})

	snd, err := s.SenderKind("mic", protocol.KindAudio, nil)
	require.NoError(t, err)
	require.NoError(t, snd.Attach(context.Background(), &fakeSource{id: "t1", kind: protocol.KindAudio}, "m"))
	require.NoError(t, snd.Config(context.Background(), protocol.SenderConfig{Priority: 4}))

	peer.line.open()
	require.NoError(t, s.Connect(context.Background(), "test/1"))

	// The connect snapshot carries the locally accumulated intent.
	require.Len(t, gw.connects, 1)
	senders := gw.connects[0].req.Tracks.Senders
	require.Len(t, senders, 1)
	require.NotNil(t, senders[0].State.Source)
	assert.Equal(t, "t1", senders[0].State.Source.ID)
	require.NotNil(t, senders[0].State.Config)
	assert.Equal(t, uint32(4), senders[0].State.Config.Priority)
}
