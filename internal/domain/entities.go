package domain

import (
	"encoding/json"
	"time"
)

// EventType names a broadcast event. The known set is fixed, but unknown
// names are carried through untouched so newer producers keep working.
type EventType string

const (
	EventAuctionUpdate EventType = "auction-update"
	EventBidPlaced     EventType = "bid-placed"
	EventAuctionWon    EventType = "auction-won"
	EventAuctionEnded  EventType = "auction-ended"
	EventWalletUpdate  EventType = "wallet-update"
	EventNotification  EventType = "notification"
)

var knownEventTypes = []EventType{
	EventAuctionUpdate,
	EventBidPlaced,
	EventAuctionWon,
	EventAuctionEnded,
	EventWalletUpdate,
	EventNotification,
}

func KnownEventTypes() []EventType {
	return append([]EventType(nil), knownEventTypes...)
}

func (t EventType) Known() bool {
	for _, known := range knownEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// clientPublishable lists the types a browser may broadcast. Wins, wallet
// changes and notifications are produced by the backend only.
var clientPublishable = map[EventType]bool{
	EventAuctionUpdate: true,
	EventBidPlaced:     true,
	EventAuctionEnded:  true,
}

func (t EventType) ClientPublishable() bool {
	return clientPublishable[t]
}

func (t EventType) String() string {
	return string(t)
}

// Event is what listeners receive. Payload is the producer's value for local
// deliveries and a json.RawMessage for deliveries from another instance.
type Event struct {
	Type    EventType
	Payload any
	Remote  bool
}

// Decode unpacks the payload into v regardless of where the event came from.
func (e Event) Decode(v any) error {
	if raw, ok := e.Payload.(json.RawMessage); ok {
		return json.Unmarshal(raw, v)
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Envelope is the wire shape on the cross-instance channel.
type Envelope struct {
	Type   EventType       `json:"type"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin,omitempty"`
}

// Payloads, one per known event type.

// AuctionUpdate is sent with auction-update whenever auction state visible to
// viewers changes.
type AuctionUpdate struct {
	AuctionID  string    `json:"auction_id"`
	CurrentBid float64   `json:"current_bid"`
	WinnerID   string    `json:"winner_id,omitempty"`
	EndsAt     time.Time `json:"ends_at"`
}

type BidPlaced struct {
	AuctionID        string    `json:"auction_id"`
	UserID           string    `json:"user_id"`
	Amount           float64   `json:"amount"`
	PreviousBidderID string    `json:"previous_bidder_id,omitempty"`
	PlacedAt         time.Time `json:"placed_at"`
}

type AuctionWon struct {
	AuctionID string  `json:"auction_id"`
	WinnerID  string  `json:"winner_id"`
	Amount    float64 `json:"amount"`
	Title     string  `json:"title,omitempty"`
}

type AuctionEnded struct {
	AuctionID string    `json:"auction_id"`
	EndedAt   time.Time `json:"ended_at"`
}

// WalletUpdate targets a single user; Balance is authoritative from the database.
type WalletUpdate struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
	Delta   int64  `json:"delta"`
	Reason  string `json:"reason,omitempty"`
}

type NotificationCreated struct {
	UserID         string `json:"user_id"`
	NotificationID int64  `json:"notification_id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
}

type Notification struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// CountUnread counts notifications with Read == false.
func CountUnread(notifications []Notification) int {
	count := 0
	for _, n := range notifications {
		if !n.Read {
			count++
		}
	}
	return count
}

type PollerState int

const (
	PollerIdle PollerState = iota
	PollerPolling
)

func (s PollerState) String() string {
	switch s {
	case PollerIdle:
		return "idle"
	case PollerPolling:
		return "polling"
	default:
		return "unknown"
	}
}
