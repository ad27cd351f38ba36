package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediabridge/roomkit/protocol"
)

// fakeLine captures sends and lets tests inject server events.
type fakeLine struct {
	mu        sync.Mutex
	sent      [][]byte
	sendErr   error
	onOpen    func()
	onMessage func(data []byte)
	onError   func(err error)
	onClose   func()

	// respond, when set, is invoked synchronously for every send.
	respond func(env *protocol.ClientEvent)
}

func (l *fakeLine) Send(data []byte) error {
	l.mu.Lock()
	l.sent = append(l.sent, append([]byte(nil), data...))
	respond := l.respond
	err := l.sendErr
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if respond != nil {
		var env protocol.ClientEvent
		if err := env.UnmarshalBinary(data); err == nil {
			respond(&env)
		}
	}
	return nil
}

func (l *fakeLine) OnOpen(fn func())               { l.onOpen = fn }
func (l *fakeLine) OnMessage(fn func(data []byte)) { l.onMessage = fn }
func (l *fakeLine) OnError(fn func(err error))     { l.onError = fn }
func (l *fakeLine) OnClose(fn func())              { l.onClose = fn }

func (l *fakeLine) open() { l.onOpen() }

func (l *fakeLine) push(t *testing.T, ev *protocol.ServerEvent) {
	t.Helper()
	data, err := ev.MarshalBinary()
	require.NoError(t, err)
	l.onMessage(data)
}

func (l *fakeLine) sentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

func (l *fakeLine) lastEnvelope(t *testing.T) *protocol.ClientEvent {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	require.NotEmpty(t, l.sent)
	var env protocol.ClientEvent
	require.NoError(t, env.UnmarshalBinary(l.sent[len(l.sent)-1]))
	return &env
}

func TestChannel_RequestResponse(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	line.open()

	line.respond = func(env *protocol.ClientEvent) {
		line.push(t, &protocol.ServerEvent{Response: &protocol.Response{
			ReqID:  env.Request.ReqID,
			Sender: &protocol.SenderResponse{},
		}})
	}

	res, err := ch.RequestSender(context.Background(), &protocol.SenderRequest{
		Name:   "mic",
		Detach: &protocol.SenderDetach{},
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	env := line.lastEnvelope(t)
	assert.Equal(t, uint64(1), env.Seq)
	require.NotNil(t, env.Request)
	assert.Equal(t, uint64(1), env.Request.ReqID)
	require.NotNil(t, env.Request.Sender)
	assert.Equal(t, "mic", env.Request.Sender.Name)
}

func TestChannel_DuplicateResponseDropped(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	line.open()

	line.respond = func(env *protocol.ClientEvent) {
		line.push(t, &protocol.ServerEvent{Response: &protocol.Response{
			ReqID:  env.Request.ReqID,
			Sender: &protocol.SenderResponse{},
		}})
		// A second response for the same request id must never reach the
		// caller; if it did, this error would fail the call.
		line.push(t, &protocol.ServerEvent{Response: &protocol.Response{
			ReqID: env.Request.ReqID,
			Error: &protocol.ResponseError{Code: 1, Message: "duplicate"},
		}})
	}

	res, err := ch.RequestSender(context.Background(), &protocol.SenderRequest{
		Name:   "mic",
		Detach: &protocol.SenderDetach{},
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	// The correlation table stays clean for the next round trip.
	_, err = ch.RequestSender(context.Background(), &protocol.SenderRequest{
		Name:   "mic",
		Detach: &protocol.SenderDetach{},
	})
	require.NoError(t, err)
}

func TestChannel_SequenceNumbersIncrease(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	line.open()
	line.respond = func(env *protocol.ClientEvent) {
		line.push(t, &protocol.ServerEvent{Response: &protocol.Response{
			ReqID:   env.Request.ReqID,
			Session: &protocol.SessionResponse{},
		}})
	}

	for i := 1; i <= 3; i++ {
		_, err := ch.RequestSession(context.Background(), &protocol.SessionRequest{Leave: &protocol.SessionLeave{}})
		require.NoError(t, err)
		env := line.lastEnvelope(t)
		assert.Equal(t, uint64(i), env.Seq)
		assert.Equal(t, uint64(i), env.Request.ReqID)
	}
}

func TestChannel_TimeoutRemovesPendingEntry(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	ch.Timeout = 20 * time.Millisecond
	line.open()

	_, err := ch.RequestSession(context.Background(), &protocol.SessionRequest{Leave: &protocol.SessionLeave{}})
	require.ErrorIs(t, err, ErrTimeout)

	ch.mu.Lock()
	pending := len(ch.pending)
	ch.mu.Unlock()
	assert.Zero(t, pending, "timed-out request must not leak a correlation entry")

	// A late response for the abandoned id must be swallowed.
	line.push(t, &protocol.ServerEvent{Response: &protocol.Response{
		ReqID:   1,
		Session: &protocol.SessionResponse{},
	}})
}

func TestChannel_ServerError(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	line.open()
	line.respond = func(env *protocol.ClientEvent) {
		line.push(t, &protocol.ServerEvent{Response: &protocol.Response{
			ReqID: env.Request.ReqID,
			Error: &protocol.ResponseError{Code: 403, Message: "not allowed"},
		}})
	}

	_, err := ch.RequestReceiver(context.Background(), &protocol.ReceiverRequest{
		Name:   "r1",
		Detach: &protocol.ReceiverDetach{},
	})
	var serr *ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, uint32(403), serr.Code)
	assert.Equal(t, "not allowed", serr.Message)
}

func TestChannel_MismatchedResponseVariant(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	line.open()
	line.respond = func(env *protocol.ClientEvent) {
		line.push(t, &protocol.ServerEvent{Response: &protocol.Response{
			ReqID:  env.Request.ReqID,
			Sender: &protocol.SenderResponse{},
		}})
	}

	_, err := ch.RequestSession(context.Background(), &protocol.SessionRequest{Leave: &protocol.SessionLeave{}})
	require.ErrorIs(t, err, ErrInvalidResponse)
}

func TestChannel_ContextCancel(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	line.open()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := ch.RequestSession(ctx, &protocol.SessionRequest{Leave: &protocol.SessionLeave{}})
	require.ErrorIs(t, err, context.Canceled)

	ch.mu.Lock()
	pending := len(ch.pending)
	ch.mu.Unlock()
	assert.Zero(t, pending)
}

func TestChannel_SendFailureCleansUp(t *testing.T) {
	line := &fakeLine{sendErr: errors.New("line down")}
	ch := New(line)
	line.open()

	_, err := ch.RequestSession(context.Background(), &protocol.SessionRequest{Leave: &protocol.SessionLeave{}})
	require.Error(t, err)

	ch.mu.Lock()
	pending := len(ch.pending)
	ch.mu.Unlock()
	assert.Zero(t, pending)
}

func TestChannel_EventFanout(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	line.open()

	var roomEvents, micEvents, otherEvents int
	ch.Events().On(TopicRoom, func(any) { roomEvents++ })
	ch.Events().On(SenderTopic("mic"), func(any) { micEvents++ })
	ch.Events().On(SenderTopic("cam"), func(any) { otherEvents++ })

	line.push(t, &protocol.ServerEvent{Room: &protocol.RoomEvent{
		PeerJoined: &protocol.PeerJoined{Peer: "alice"},
	}})
	line.push(t, &protocol.ServerEvent{Sender: &protocol.SenderEvent{
		Name:  "mic",
		State: &protocol.SenderStateEvent{Status: protocol.SenderActive},
	}})

	assert.Equal(t, 1, roomEvents)
	assert.Equal(t, 1, micEvents)
	assert.Zero(t, otherEvents, "sender events are name-scoped")
}

func TestChannel_MixerEventTopic(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)
	line.open()

	var got *protocol.MixerEvent
	ch.Events().On(TopicMixer, func(p any) { got = p.(*protocol.MixerEvent) })

	line.push(t, &protocol.ServerEvent{Features: &protocol.FeaturesEvent{
		Mixer: &protocol.MixerEvent{SlotUnset: &protocol.MixerSlotUnset{Slot: 2}},
	}})
	require.NotNil(t, got)
	require.NotNil(t, got.SlotUnset)
	assert.Equal(t, uint32(2), got.SlotUnset.Slot)
}

func TestChannel_ReadyFailsOnLineError(t *testing.T) {
	line := &fakeLine{}
	ch := New(line)

	lineErr := errors.New("dtls failure")
	line.onError(lineErr)

	err := ch.Ready(context.Background())
	require.ErrorIs(t, err, lineErr)

	// Readiness failure is permanent, a later open does not rescue it.
	line.open()
	require.ErrorIs(t, ch.Ready(context.Background()), lineErr)
}

func TestGate_WaitContext(t *testing.T) {
	g := NewGate()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)

	g.SetReady()
	require.NoError(t, g.Wait(context.Background()))
}
