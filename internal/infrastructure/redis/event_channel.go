package redis

import (
	"context"
	"fmt"
	"sync"

	"fanzone/pkg/logger"

	"github.com/go-redis/redis/v8"
)

// EventChannel is a cross-instance transport on a single Redis pub/sub
// channel. Redis hands a publisher its own messages back when it is also
// subscribed, so receivers must filter by origin.
type EventChannel struct {
	client *redis.Client
	pubsub *redis.PubSub
	name   string
	log    logger.Logger

	mu        sync.RWMutex
	handler   func([]byte)
	closeOnce sync.Once
	done      chan struct{}
}

// NewEventChannel subscribes to name and returns once Redis has confirmed
// the subscription, so nothing published afterwards is missed.
func NewEventChannel(ctx context.Context, client *redis.Client, name string, log logger.Logger) (*EventChannel, error) {
	pubsub := client.Subscribe(ctx, name)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", name, err)
	}

	c := &EventChannel{
		client: client,
		pubsub: pubsub,
		name:   name,
		log:    log,
		done:   make(chan struct{}),
	}
	go c.listen()

	return c, nil
}

func (c *EventChannel) Send(ctx context.Context, message []byte) error {
	return c.client.Publish(ctx, c.name, message).Err()
}

func (c *EventChannel) OnReceive(handler func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// Close unsubscribes. It does not wait for the receive loop; use Done for that.
func (c *EventChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.pubsub.Close()
	})
	return err
}

// Done is closed once the receive loop has exited.
func (c *EventChannel) Done() <-chan struct{} {
	return c.done
}

func (c *EventChannel) listen() {
	defer close(c.done)

	c.log.Info("Subscribed to event channel", "channel", c.name)

	for msg := range c.pubsub.Channel() {
		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()

		if handler == nil {
			c.log.Debug("Dropping channel message, no handler", "channel", c.name)
			continue
		}
		handler([]byte(msg.Payload))
	}

	c.log.Info("Event channel stopped", "channel", c.name)
}
