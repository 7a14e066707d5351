package services

import (
	"context"
	"errors"
	"testing"

	"fanzone/internal/domain"
	"fanzone/internal/eventbus"
	"fanzone/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupNotificationService(t *testing.T) (*NotificationService, *mockRepo, *eventbus.Bus) {
	repo := new(mockRepo)
	bus := eventbus.New(nil, logger.NewNop())
	t.Cleanup(bus.Destroy)
	return NewNotificationService(repo, bus, logger.NewNop()), repo, bus
}

func TestNotificationService_UnreadCount(t *testing.T) {
	svc, repo, _ := setupNotificationService(t)
	repo.On("ListForUser", mock.Anything, "u1").Return(notifications(true, false, false), nil)

	count, err := svc.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNotificationService_UnreadCountError(t *testing.T) {
	svc, repo, _ := setupNotificationService(t)
	repo.On("ListForUser", mock.Anything, "u1").Return(nil, errors.New("db down"))

	_, err := svc.UnreadCount(context.Background(), "u1")
	assert.Error(t, err)
}

func TestNotificationService_MarkRead(t *testing.T) {
	svc, repo, _ := setupNotificationService(t)
	repo.On("MarkRead", mock.Anything, "u1", int64(7)).Return(domain.ErrNotificationNotFound)
	repo.On("MarkAllRead", mock.Anything, "u1").Return(int64(3), nil)

	err := svc.MarkRead(context.Background(), "u1", 7)
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)

	n, err := svc.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestNotificationService_NotifyBroadcasts(t *testing.T) {
	svc, repo, bus := setupNotificationService(t)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "u1" && n.Type == "system" && !n.Read
	})).Return(nil)

	var received []domain.NotificationCreated
	bus.SubscribeFunc(domain.EventNotification, func(event domain.Event) error {
		var created domain.NotificationCreated
		require.NoError(t, event.Decode(&created))
		received = append(received, created)
		return nil
	})

	notification, err := svc.Notify(context.Background(), "u1", "system", "Hello", "Welcome")
	require.NoError(t, err)
	assert.Equal(t, int64(42), notification.ID)
	require.Len(t, received, 1)
	assert.Equal(t, domain.NotificationCreated{UserID: "u1", NotificationID: 42, Type: "system", Title: "Hello"}, received[0])
}

func TestNotificationService_NotifyStoreFailure(t *testing.T) {
	svc, repo, bus := setupNotificationService(t)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))

	called := false
	bus.SubscribeFunc(domain.EventNotification, func(domain.Event) error {
		called = true
		return nil
	})

	_, err := svc.Notify(context.Background(), "u1", "system", "Hello", "Welcome")
	assert.Error(t, err)
	assert.False(t, called)
}

func TestNotificationService_NotifyRequiresRecipient(t *testing.T) {
	svc, repo, _ := setupNotificationService(t)

	_, err := svc.Notify(context.Background(), "", "system", "Hello", "Welcome")
	assert.ErrorIs(t, err, ErrMissingRecipient)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestNotificationService_AuctionWonNotifiesWinner(t *testing.T) {
	svc, repo, bus := setupNotificationService(t)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "winner" && n.Type == NotificationAuctionWon && n.Message == "Your bid of 250 points won Signed Jersey."
	})).Return(nil).Once()
	svc.Register(bus)

	require.NoError(t, bus.Broadcast(context.Background(), domain.EventAuctionWon, domain.AuctionWon{
		AuctionID: "a1", WinnerID: "winner", Amount: 250, Title: "Signed Jersey",
	}))

	repo.AssertExpectations(t)
}

func TestNotificationService_OutbidNotifiesPreviousBidder(t *testing.T) {
	svc, repo, bus := setupNotificationService(t)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(n *domain.Notification) bool {
		return n.UserID == "alice" && n.Type == NotificationOutbid
	})).Return(nil).Once()
	svc.Register(bus)

	ctx := context.Background()
	require.NoError(t, bus.Broadcast(ctx, domain.EventBidPlaced, domain.BidPlaced{AuctionID: "a1", UserID: "bob", Amount: 120, PreviousBidderID: "alice"}))
	// first bid and self-outbid produce nothing
	require.NoError(t, bus.Broadcast(ctx, domain.EventBidPlaced, domain.BidPlaced{AuctionID: "a1", UserID: "bob", Amount: 100}))
	require.NoError(t, bus.Broadcast(ctx, domain.EventBidPlaced, domain.BidPlaced{AuctionID: "a1", UserID: "bob", Amount: 130, PreviousBidderID: "bob"}))

	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "Create", 1)
}

func TestNotificationService_FollowerSkipsEvents(t *testing.T) {
	svc, repo, bus := setupNotificationService(t)
	leader := new(mockLeader)
	leader.On("IsLeader", mock.Anything, "notification-service-2").Return(false, nil)
	svc.WithLeader(leader, "notification-service-2")
	unregister := svc.Register(bus)

	require.NoError(t, bus.Broadcast(context.Background(), domain.EventAuctionWon, domain.AuctionWon{AuctionID: "a1", WinnerID: "winner", Amount: 10}))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	unregister()
	assert.Equal(t, 0, bus.ListenerCount(domain.EventAuctionWon))
	assert.Equal(t, 0, bus.ListenerCount(domain.EventBidPlaced))
}
