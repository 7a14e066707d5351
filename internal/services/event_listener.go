package services

import (
	"encoding/json"
	"fmt"

	"fanzone/internal/domain"
	"fanzone/internal/eventbus"
	"fanzone/pkg/logger"
)

// OutboundEvent is the frame browsers receive for every bus event.
type OutboundEvent struct {
	Type  string           `json:"type"`
	Event domain.EventType `json:"event"`
	Data  json.RawMessage  `json:"data"`
}

// userScoped lists event types whose payload belongs to a single user.
var userScoped = map[domain.EventType]bool{
	domain.EventWalletUpdate: true,
	domain.EventNotification: true,
}

// EventBridge forwards bus events to browser connections.
type EventBridge struct {
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventBridge(connectionManager domain.ConnectionManager, log logger.Logger) *EventBridge {
	return &EventBridge{
		connectionManager: connectionManager,
		log:               log,
	}
}

// Start subscribes to every known event type. The returned func removes
// all of those subscriptions.
func (b *EventBridge) Start(bus *eventbus.Bus) func() {
	b.log.Info("Starting event bridge")

	var unsubscribes []eventbus.Unsubscribe
	for _, eventType := range domain.KnownEventTypes() {
		unsubscribes = append(unsubscribes, bus.Subscribe(eventType, b))
	}

	return func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}
}

func (b *EventBridge) HandleEvent(event domain.Event) error {
	data, err := payloadJSON(event)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", event.Type, err)
	}

	message := OutboundEvent{Type: "event", Event: event.Type, Data: data}

	if userScoped[event.Type] {
		var target struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(data, &target); err != nil || target.UserID == "" {
			b.log.Warn("Dropping user event without recipient", "event_type", event.Type)
			return nil
		}
		return b.connectionManager.NotifyUser(target.UserID, message)
	}

	return b.connectionManager.BroadcastAll(message)
}

func payloadJSON(event domain.Event) (json.RawMessage, error) {
	if raw, ok := event.Payload.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(event.Payload)
}
