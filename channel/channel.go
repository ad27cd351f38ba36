// Package channel multiplexes a reliable request/response RPC protocol over
// the datachannel side channel: typed requests correlated by request id,
// plus topic fan-out of unsolicited server pushes.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mediabridge/roomkit/emitter"
	"github.com/mediabridge/roomkit/internal/telemetry"
	"github.com/mediabridge/roomkit/protocol"
)

// DefaultRequestTimeout bounds every RPC round trip.
const DefaultRequestTimeout = 5 * time.Second

var (
	// ErrTimeout means no response arrived within the deadline. The request
	// may still have been applied server-side; callers decide whether to
	// re-issue.
	ErrTimeout = errors.New("rpc timeout")
	// ErrInvalidResponse means the response union did not carry the variant
	// matching the request. Protocol violation, not retried.
	ErrInvalidResponse = errors.New("invalid server response")
)

// ServerError is an error the gateway attached to a response.
type ServerError struct {
	Code    uint32
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// Topics on which inbound pushes are re-emitted.
const (
	TopicRoom    = "event.room"
	TopicSession = "event.session"
	TopicMixer   = "event.features.mixer"
)

func SenderTopic(name string) string { return "event.sender." + name }

func ReceiverTopic(name string) string { return "event.receiver." + name }

// Line is the bidirectional ordered reliable message line the channel runs
// on. Implementations invoke the callbacks from a single goroutine.
type Line interface {
	Send(payload []byte) error
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	OnError(fn func(err error))
	OnClose(fn func())
}

// Channel owns the seq/req id counters and the correlation table. Sends do
// not implicitly wait for readiness; callers sequence against Ready.
type Channel struct {
	line   Line
	events *emitter.Emitter

	// Timeout may be lowered before first use (tests); it is the fixed RPC
	// deadline otherwise.
	Timeout time.Duration

	seqID atomic.Uint64
	reqID atomic.Uint64

	gate *Gate

	mu      sync.Mutex
	pending map[uint64]chan *protocol.Response
}

func New(line Line) *Channel {
	c := &Channel{
		line:    line,
		events:  emitter.New(),
		Timeout: DefaultRequestTimeout,
		gate:    NewGate(),
		pending: map[uint64]chan *protocol.Response{},
	}
	line.OnOpen(func() {
		log.Debug().Str("module", "channel").Msg("line open")
		c.gate.SetReady()
	})
	line.OnError(func(err error) {
		log.Error().Err(err).Str("module", "channel").Msg("line error")
		c.gate.SetError(err)
	})
	line.OnClose(func() {
		log.Debug().Str("module", "channel").Msg("line closed")
	})
	line.OnMessage(c.onMessage)
	return c
}

// Events exposes the topic fan-out; multiple independent listeners may
// subscribe to the same topic.
func (c *Channel) Events() *emitter.Emitter { return c.events }

// Ready blocks until the line has opened, or fails permanently if the line
// errored before opening.
func (c *Channel) Ready(ctx context.Context) error {
	return c.gate.Wait(ctx)
}

func (c *Channel) onMessage(data []byte) {
	var ev protocol.ServerEvent
	if err := ev.UnmarshalBinary(data); err != nil {
		log.Warn().Err(err).Str("module", "channel").Msg("undecodable server event")
		return
	}
	switch {
	case ev.Room != nil:
		c.events.Emit(TopicRoom, ev.Room)
	case ev.Session != nil:
		c.events.Emit(TopicSession, ev.Session)
	case ev.Sender != nil:
		c.events.Emit(SenderTopic(ev.Sender.Name), ev.Sender)
	case ev.Receiver != nil:
		c.events.Emit(ReceiverTopic(ev.Receiver.Name), ev.Receiver)
	case ev.Features != nil:
		if ev.Features.Mixer != nil {
			c.events.Emit(TopicMixer, ev.Features.Mixer)
		}
	case ev.Response != nil:
		c.deliver(ev.Response)
	}
}

func (c *Channel) deliver(res *protocol.Response) {
	c.mu.Lock()
	ch, ok := c.pending[res.ReqID]
	if ok {
		delete(c.pending, res.ReqID)
	}
	c.mu.Unlock()
	if !ok {
		// Late (already timed out) or duplicate response. Never fatal.
		telemetry.RPCDroppedResponses.Inc()
		log.Warn().Str("module", "channel").Uint64("req_id", res.ReqID).Msg("response without pending request, dropped")
		return
	}
	ch <- res
}

// Request sends one correlated RPC and blocks for its response. A response
// whose Error field is set fails the call with *ServerError. On timeout the
// correlation entry is removed, so a late response is silently dropped.
func (c *Channel) Request(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if req.ReqID == 0 {
		req.ReqID = c.reqID.Add(1)
	}
	env := protocol.ClientEvent{Seq: c.seqID.Add(1), Request: req}
	buf, err := env.MarshalBinary()
	if err != nil {
		return nil, err
	}

	resCh := make(chan *protocol.Response, 1)
	c.mu.Lock()
	c.pending[req.ReqID] = resCh
	c.mu.Unlock()

	telemetry.RPCRequests.WithLabelValues(requestKind(req)).Inc()
	log.Debug().Str("module", "channel").Uint64("seq", env.Seq).Uint64("req_id", req.ReqID).Msg("send request")
	if err := c.line.Send(buf); err != nil {
		c.abandon(req.ReqID)
		return nil, err
	}

	timer := time.NewTimer(c.Timeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		if res.Error != nil {
			telemetry.RPCServerErrors.Inc()
			return nil, &ServerError{Code: res.Error.Code, Message: res.Error.Message}
		}
		return res, nil
	case <-timer.C:
		c.abandon(req.ReqID)
		telemetry.RPCTimeouts.Inc()
		return nil, ErrTimeout
	case <-ctx.Done():
		c.abandon(req.ReqID)
		return nil, ctx.Err()
	}
}

func (c *Channel) abandon(reqID uint64) {
	c.mu.Lock()
	delete(c.pending, reqID)
	c.mu.Unlock()
}

func requestKind(req *protocol.Request) string {
	switch {
	case req.Session != nil:
		return "session"
	case req.Sender != nil:
		return "sender"
	case req.Receiver != nil:
		return "receiver"
	case req.Features != nil:
		return "features"
	}
	return "unknown"
}

func (c *Channel) RequestSession(ctx context.Context, req *protocol.SessionRequest) (*protocol.SessionResponse, error) {
	res, err := c.Request(ctx, &protocol.Request{Session: req})
	if err != nil {
		return nil, err
	}
	if res.Session == nil {
		return nil, ErrInvalidResponse
	}
	return res.Session, nil
}

func (c *Channel) RequestSender(ctx context.Context, req *protocol.SenderRequest) (*protocol.SenderResponse, error) {
	res, err := c.Request(ctx, &protocol.Request{Sender: req})
	if err != nil {
		return nil, err
	}
	if res.Sender == nil {
		return nil, ErrInvalidResponse
	}
	return res.Sender, nil
}

func (c *Channel) RequestReceiver(ctx context.Context, req *protocol.ReceiverRequest) (*protocol.ReceiverResponse, error) {
	res, err := c.Request(ctx, &protocol.Request{Receiver: req})
	if err != nil {
		return nil, err
	}
	if res.Receiver == nil {
		return nil, ErrInvalidResponse
	}
	return res.Receiver, nil
}

func (c *Channel) RequestMixer(ctx context.Context, req *protocol.MixerRequest) (*protocol.MixerResponse, error) {
	res, err := c.Request(ctx, &protocol.Request{Features: &protocol.FeaturesRequest{Mixer: req}})
	if err != nil {
		return nil, err
	}
	if res.Features == nil || res.Features.Mixer == nil {
		return nil, ErrInvalidResponse
	}
	return res.Features.Mixer, nil
}
