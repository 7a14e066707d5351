package domain

import (
	"context"
	"errors"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrMissingSession       = errors.New("missing session token")
)

// Transport carries serialized envelopes between instances sharing a channel.
// Implementations must not hand a message back to the instance that sent it
// unless the receiver filters by origin, which the event bus does.
type Transport interface {
	Send(ctx context.Context, message []byte) error
	OnReceive(handler func(message []byte))
	Close() error
}

// Broadcaster is the producer side of the event bus.
type Broadcaster interface {
	Broadcast(ctx context.Context, eventType EventType, payload any) error
}

// NotificationSource returns the full notification list for whoever owns token.
type NotificationSource interface {
	ListNotifications(ctx context.Context, token string) ([]Notification, error)
}

// SessionStore resolves opaque bearer tokens issued by the identity provider.
type SessionStore interface {
	ResolveSession(ctx context.Context, token string) (string, error)
}

// WebSocket interfaces
type WebSocketConnection interface {
	ID() string
	UserID() string
	Send(message interface{}) error
	Close() error
}

type ConnectionManager interface {
	RegisterConnection(conn WebSocketConnection) error
	UnregisterConnection(conn WebSocketConnection) error
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastAll(message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAll() error
	Count() int
}

// LeaderElection picks one instance among replicas for work that must happen once.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
