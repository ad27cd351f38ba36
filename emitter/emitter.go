// Package emitter is a small topic-keyed broadcast facility. Handlers are
// invoked synchronously, in subscription order, on the goroutine that emits.
package emitter

import "sync"

type handler struct {
	id int
	fn func(payload any)
}

// Emitter fans one payload out to every handler subscribed to its topic.
// The zero value is not usable; call New.
type Emitter struct {
	mu     sync.Mutex
	nextID int
	topics map[string][]handler
}

func New() *Emitter {
	return &Emitter{topics: map[string][]handler{}}
}

// On subscribes fn to topic and returns a cancel func. Cancelling twice is
// harmless.
func (e *Emitter) On(topic string, fn func(payload any)) func() {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.topics[topic] = append(e.topics[topic], handler{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		hs := e.topics[topic]
		for i := range hs {
			if hs[i].id == id {
				e.topics[topic] = append(hs[:i:i], hs[i+1:]...)
				return
			}
		}
	}
}

func (e *Emitter) Emit(topic string, payload any) {
	e.mu.Lock()
	hs := make([]handler, len(e.topics[topic]))
	copy(hs, e.topics[topic])
	e.mu.Unlock()

	for _, h := range hs {
		h.fn(payload)
	}
}
