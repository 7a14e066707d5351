package services

import (
	"context"
	"encoding/json"
	"testing"

	"fanzone/internal/domain"
	"fanzone/internal/eventbus"
	"fanzone/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBridge_BroadcastsPublicEvents(t *testing.T) {
	conns := newRecordingConnections()
	bus := eventbus.New(nil, logger.NewNop())
	defer bus.Destroy()

	stop := NewEventBridge(conns, logger.NewNop()).Start(bus)
	defer stop()

	require.NoError(t, bus.Broadcast(context.Background(), domain.EventBidPlaced, domain.BidPlaced{AuctionID: "a1", UserID: "bob", Amount: 50}))

	require.Len(t, conns.broadcast, 1)
	assert.Empty(t, conns.byUser)

	frame, err := json.Marshal(conns.broadcast[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"event","event":"bid-placed","data":{"auction_id":"a1","user_id":"bob","amount":50,"placed_at":"0001-01-01T00:00:00Z"}}`, string(frame))
}

func TestEventBridge_TargetsUserEvents(t *testing.T) {
	conns := newRecordingConnections()
	bus := eventbus.New(nil, logger.NewNop())
	defer bus.Destroy()
	NewEventBridge(conns, logger.NewNop()).Start(bus)

	require.NoError(t, bus.Broadcast(context.Background(), domain.EventWalletUpdate, domain.WalletUpdate{UserID: "u1", Balance: 500, Delta: 20}))

	assert.Empty(t, conns.broadcast)
	require.Len(t, conns.byUser["u1"], 1)
	assert.Equal(t, domain.EventWalletUpdate, conns.byUser["u1"][0].(OutboundEvent).Event)
}

func TestEventBridge_DropsUserEventWithoutRecipient(t *testing.T) {
	conns := newRecordingConnections()
	bridge := NewEventBridge(conns, logger.NewNop())

	err := bridge.HandleEvent(domain.Event{Type: domain.EventNotification, Payload: map[string]string{"title": "x"}})
	require.NoError(t, err)
	assert.Empty(t, conns.broadcast)
	assert.Empty(t, conns.byUser)
}

func TestEventBridge_RemotePayloadPassesThrough(t *testing.T) {
	conns := newRecordingConnections()
	bridge := NewEventBridge(conns, logger.NewNop())

	raw := json.RawMessage(`{"auction_id":"a9","ended_at":"2026-01-01T00:00:00Z"}`)
	require.NoError(t, bridge.HandleEvent(domain.Event{Type: domain.EventAuctionEnded, Payload: raw, Remote: true}))

	require.Len(t, conns.broadcast, 1)
	assert.Equal(t, raw, conns.broadcast[0].(OutboundEvent).Data)
}

func TestEventBridge_StopUnsubscribes(t *testing.T) {
	conns := newRecordingConnections()
	bus := eventbus.New(nil, logger.NewNop())
	defer bus.Destroy()

	stop := NewEventBridge(conns, logger.NewNop()).Start(bus)
	for _, eventType := range domain.KnownEventTypes() {
		assert.Equal(t, 1, bus.ListenerCount(eventType))
	}

	stop()
	for _, eventType := range domain.KnownEventTypes() {
		assert.Equal(t, 0, bus.ListenerCount(eventType))
	}
}
