// Package memory links several event buses living in one process, the way
// the Redis channel links separate processes.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrEndpointClosed = errors.New("endpoint closed")

type Hub struct {
	mu        sync.RWMutex
	endpoints map[*Endpoint]struct{}
}

func NewHub() *Hub {
	return &Hub{endpoints: make(map[*Endpoint]struct{})}
}

// Connect attaches a new endpoint. Each endpoint delivers incoming messages
// on its own goroutine, in the order they were sent.
func (h *Hub) Connect() *Endpoint {
	e := &Endpoint{
		hub:    h,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.endpoints[e] = struct{}{}
	h.mu.Unlock()

	go e.run()
	return e
}

func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.endpoints)
}

func (h *Hub) deliver(from *Endpoint, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for e := range h.endpoints {
		if e == from {
			continue
		}
		e.enqueue(append([]byte(nil), message...))
	}
}

func (h *Hub) detach(e *Endpoint) {
	h.mu.Lock()
	delete(h.endpoints, e)
	h.mu.Unlock()
}

type Endpoint struct {
	hub *Hub

	mu      sync.Mutex
	queue   [][]byte
	handler func([]byte)

	notify    chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// Send hands message to every other endpoint on the hub. The sender never
// receives its own message.
func (e *Endpoint) Send(ctx context.Context, message []byte) error {
	if e.closed.Load() {
		return ErrEndpointClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	e.hub.deliver(e, message)
	return nil
}

// OnReceive sets the handler. Messages arriving while no handler is set are dropped.
func (e *Endpoint) OnReceive(handler func([]byte)) {
	e.mu.Lock()
	e.handler = handler
	e.mu.Unlock()
}

// Close detaches the endpoint. It does not wait for an in-flight handler,
// so it is safe to call from inside one.
func (e *Endpoint) Close() error {
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		e.hub.detach(e)
		close(e.done)
	})
	return nil
}

func (e *Endpoint) enqueue(message []byte) {
	e.mu.Lock()
	e.queue = append(e.queue, message)
	e.mu.Unlock()

	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *Endpoint) next() ([]byte, func([]byte), bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return nil, nil, false
	}
	message := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return message, e.handler, true
}

func (e *Endpoint) run() {
	for {
		select {
		case <-e.done:
			return
		case <-e.notify:
			for {
				if e.closed.Load() {
					return
				}
				message, handler, ok := e.next()
				if !ok {
					break
				}
				if handler != nil {
					handler(message)
				}
			}
		}
	}
}
