package client

import (
	"sync"

	"github.com/coinkick/coinkick/protocol"
)

// Handler receives one emitted envelope. Handlers run on the client's read
// goroutine; long work belongs elsewhere.
type Handler func(protocol.Envelope)

type subscription struct {
	id uint64
	fn Handler
}

// emitter is a minimal publish/subscribe registry keyed by event type. It
// decouples transport decode from the game layer: subscribers never see the
// socket, only envelopes.
type emitter struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
}

// on registers a handler and returns its unsubscribe func.
func (e *emitter) on(eventType string, h Handler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.subs == nil {
		e.subs = make(map[string][]subscription)
	}
	e.nextID++
	id := e.nextID
	e.subs[eventType] = append(e.subs[eventType], subscription{id: id, fn: h})

	return func() { e.off(eventType, id) }
}

func (e *emitter) off(eventType string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			e.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// emit calls every handler subscribed to the envelope's type.
func (e *emitter) emit(env protocol.Envelope) {
	e.mu.Lock()
	subs := make([]subscription, len(e.subs[env.Type]))
	copy(subs, e.subs[env.Type])
	e.mu.Unlock()

	for _, s := range subs {
		s.fn(env)
	}
}
