package channel

import (
	"context"
	"sync"
)

// Gate parks callers until a resource reports open. An error before open
// fails every pending and future waiter permanently. Receivers reuse it to
// wait for their inbound media line.
type Gate struct {
	mu   sync.Mutex
	done chan struct{}
	err  error
}

func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

func (g *Gate) SetReady() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

func (g *Gate) SetError(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.done:
	default:
		g.err = err
		close(g.done)
	}
}

func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.err
	}
}
