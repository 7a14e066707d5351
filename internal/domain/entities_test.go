package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountUnread(t *testing.T) {
	list := []Notification{{Read: true}, {Read: false}, {Read: false}}
	assert.Equal(t, 2, CountUnread(list))
	assert.Equal(t, 0, CountUnread(nil))
}

func TestEventTypeKnown(t *testing.T) {
	for _, et := range KnownEventTypes() {
		assert.True(t, et.Known(), et)
	}
	assert.False(t, EventType("quiz-started").Known())
	assert.False(t, EventType("").Known())
}

func TestEventTypeClientPublishable(t *testing.T) {
	assert.True(t, EventBidPlaced.ClientPublishable())
	assert.True(t, EventAuctionUpdate.ClientPublishable())
	assert.True(t, EventAuctionEnded.ClientPublishable())
	assert.False(t, EventAuctionWon.ClientPublishable())
	assert.False(t, EventWalletUpdate.ClientPublishable())
	assert.False(t, EventNotification.ClientPublishable())
	assert.False(t, EventType("quiz-started").ClientPublishable())
}

func TestEventDecodeLocalAndRemote(t *testing.T) {
	var local BidPlaced
	require.NoError(t, Event{Type: EventBidPlaced, Payload: BidPlaced{AuctionID: "a1", Amount: 100}}.Decode(&local))
	assert.Equal(t, "a1", local.AuctionID)
	assert.Equal(t, 100.0, local.Amount)

	var remote BidPlaced
	raw := json.RawMessage(`{"auction_id":"a2","user_id":"u1","amount":150}`)
	require.NoError(t, Event{Type: EventBidPlaced, Payload: raw, Remote: true}.Decode(&remote))
	assert.Equal(t, "a2", remote.AuctionID)
	assert.Equal(t, "u1", remote.UserID)
}

func TestEventDecodeUnserializable(t *testing.T) {
	var out map[string]any
	assert.Error(t, Event{Payload: make(chan int)}.Decode(&out))
}

func TestPollerStateString(t *testing.T) {
	assert.Equal(t, "idle", PollerIdle.String())
	assert.Equal(t, "polling", PollerPolling.String())
	assert.Equal(t, "unknown", PollerState(9).String())
}
