// Package eventbus fans events out to the listeners of one instance and
// mirrors them to other instances sharing a cross-instance channel.
//
// Local delivery is synchronous on the goroutine calling Broadcast. Events
// arriving from the channel are delivered on the transport's goroutine, so a
// listener may be invoked concurrently for a local and a remote event.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"fanzone/internal/domain"
	"fanzone/internal/metrics"
	"fanzone/pkg/logger"

	"github.com/google/uuid"
)

// Listener receives events of the types it was subscribed to. A returned
// error is logged and does not affect other listeners.
type Listener interface {
	HandleEvent(event domain.Event) error
}

type ListenerFunc func(event domain.Event) error

func (f ListenerFunc) HandleEvent(event domain.Event) error {
	return f(event)
}

// Unsubscribe removes one registration. Calling it more than once is a no-op.
type Unsubscribe func()

type subscription struct {
	// key is nil for non-pointer listeners, which have no identity.
	key      any
	listener Listener
	active   atomic.Bool
}

type Bus struct {
	mu        sync.RWMutex
	listeners map[domain.EventType][]*subscription
	destroyed bool

	transport domain.Transport
	origin    string
	log       logger.Logger
	metrics   *metrics.Metrics
}

type Option func(*Bus)

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) {
		b.metrics = m
	}
}

// WithOrigin overrides the generated instance id stamped on outgoing envelopes.
func WithOrigin(origin string) Option {
	return func(b *Bus) {
		if origin != "" {
			b.origin = origin
		}
	}
}

// New creates a bus bound to transport. A nil transport leaves the bus
// local-only.
func New(transport domain.Transport, log logger.Logger, opts ...Option) *Bus {
	b := &Bus{
		listeners: make(map[domain.EventType][]*subscription),
		origin:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = log.With("origin", b.origin)

	if transport == nil {
		b.log.Info("Cross-context channel unavailable, delivering events locally only")
		transport = NoopTransport{}
	}
	b.transport = transport
	b.transport.OnReceive(b.receive)

	return b
}

func (b *Bus) Origin() string {
	return b.origin
}

// Subscribe registers listener for eventType. Subscribing the same pointer
// listener twice for one type keeps a single registration. An empty event
// type is accepted like any other name.
func (b *Bus) Subscribe(eventType domain.EventType, listener Listener) Unsubscribe {
	if listener == nil {
		return func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return func() {}
	}

	key := identityOf(listener)
	if key != nil {
		for _, existing := range b.listeners[eventType] {
			if existing.key == key {
				return b.unsubscriber(eventType, existing)
			}
		}
	}

	sub := &subscription{key: key, listener: listener}
	sub.active.Store(true)
	b.listeners[eventType] = append(b.listeners[eventType], sub)

	return b.unsubscriber(eventType, sub)
}

// SubscribeFunc registers fn for eventType. Every call adds a new
// registration since Go funcs cannot be compared.
func (b *Bus) SubscribeFunc(eventType domain.EventType, fn func(event domain.Event) error) Unsubscribe {
	if fn == nil {
		return func() {}
	}
	return b.Subscribe(eventType, ListenerFunc(fn))
}

func (b *Bus) unsubscriber(eventType domain.EventType, sub *subscription) Unsubscribe {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(eventType, sub)
		})
	}
}

func (b *Bus) remove(eventType domain.EventType, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub.active.Store(false)

	subs := b.listeners[eventType]
	for i, existing := range subs {
		if existing == sub {
			// full slice expression forces a copy so in-flight snapshots stay intact
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}

	if len(subs) == 0 {
		delete(b.listeners, eventType)
	} else {
		b.listeners[eventType] = subs
	}
}

// ListenerCount reports how many registrations exist for eventType.
func (b *Bus) ListenerCount(eventType domain.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[eventType])
}

// Broadcast invokes every listener currently registered for eventType, in
// registration order, then mirrors the event to other instances. Listener and
// channel failures are logged, never returned. The only error is
// ErrInvalidPayload, reported after local delivery has happened.
func (b *Bus) Broadcast(ctx context.Context, eventType domain.EventType, payload any) error {
	subs, ok := b.snapshot(eventType)
	if !ok {
		return nil
	}

	b.dispatch(domain.Event{Type: eventType, Payload: payload}, subs)

	message, err := encode(eventType, payload, b.origin)
	if err != nil {
		b.metrics.IncInvalidPayload()
		b.log.Error("Event payload is not serializable", "event_type", eventType, "error", err)
		return err
	}

	// a listener may have torn the bus down during dispatch
	b.mu.RLock()
	destroyed := b.destroyed
	transport := b.transport
	b.mu.RUnlock()
	if destroyed {
		return nil
	}

	if err := transport.Send(ctx, message); err != nil {
		if errors.Is(err, ErrChannelUnavailable) {
			return nil
		}
		b.metrics.IncChannelSendFailure()
		b.log.Error("Failed to mirror event to channel", "event_type", eventType, "error", err)
	}

	return nil
}

// Destroy closes the channel and drops every registration. Later broadcasts
// are no-ops. Safe to call repeatedly.
func (b *Bus) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	for _, subs := range b.listeners {
		for _, sub := range subs {
			sub.active.Store(false)
		}
	}
	b.listeners = make(map[domain.EventType][]*subscription)
	transport := b.transport
	b.mu.Unlock()

	if err := transport.Close(); err != nil {
		b.log.Warn("Failed to close event channel", "error", err)
	}
	b.log.Info("Event bus destroyed")
}

func (b *Bus) snapshot(eventType domain.EventType) ([]*subscription, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return nil, false
	}
	return append([]*subscription(nil), b.listeners[eventType]...), true
}

// receive handles envelopes from the channel. They are only dispatched
// locally; re-sending them would loop between instances.
func (b *Bus) receive(message []byte) {
	var envelope domain.Envelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		b.log.Warn("Dropping malformed channel message", "error", err)
		return
	}

	if envelope.Origin == b.origin {
		return
	}

	subs, ok := b.snapshot(envelope.Type)
	if !ok {
		return
	}

	data := envelope.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	b.dispatch(domain.Event{Type: envelope.Type, Payload: data, Remote: true}, subs)
}

func (b *Bus) dispatch(event domain.Event, subs []*subscription) {
	for _, sub := range subs {
		// unsubscribed by an earlier listener in this same dispatch
		if !sub.active.Load() {
			continue
		}
		if err := deliver(sub.listener, event); err != nil {
			b.metrics.IncDeliveryFailure(string(event.Type))
			b.log.Error("Listener failed", "event_type", event.Type, "remote", event.Remote, "error", err)
		}
	}
	b.metrics.IncDispatched(string(event.Type), event.Remote)
}

func deliver(listener Listener, event domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DeliveryError{
				EventType: event.Type,
				Err:       fmt.Errorf("listener panicked: %v", r),
				Stack:     debug.Stack(),
			}
		}
	}()

	if err := listener.HandleEvent(event); err != nil {
		return &DeliveryError{EventType: event.Type, Err: err}
	}
	return nil
}

func encode(eventType domain.EventType, payload any, origin string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, eventType, err)
	}

	message, err := json.Marshal(domain.Envelope{Type: eventType, Data: data, Origin: origin})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, eventType, err)
	}
	return message, nil
}

// identityOf gives pointer listeners an identity. Other kinds may hold
// uncomparable values behind interface fields, so they get none.
func identityOf(listener Listener) any {
	if reflect.TypeOf(listener).Kind() == reflect.Pointer {
		return listener
	}
	return nil
}
