package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fanzone/internal/domain"
	"fanzone/internal/domain/repositories"
	"fanzone/internal/eventbus"
	"fanzone/pkg/logger"
)

const (
	NotificationAuctionWon = "auction_won"
	NotificationOutbid     = "outbid"

	listenerTimeout = 5 * time.Second
)

var ErrMissingRecipient = errors.New("notification has no recipient")

// NotificationService owns the notification table and turns auction events
// into in-app notifications.
type NotificationService struct {
	repo        repositories.NotificationRepository
	broadcaster domain.Broadcaster
	leader      domain.LeaderElection
	instanceID  string
	log         logger.Logger
}

func NewNotificationService(repo repositories.NotificationRepository, broadcaster domain.Broadcaster, log logger.Logger) *NotificationService {
	return &NotificationService{
		repo:        repo,
		broadcaster: broadcaster,
		log:         log,
	}
}

// WithLeader restricts event-driven notifications to the elected instance so
// a replicated service records each one once.
func (s *NotificationService) WithLeader(leader domain.LeaderElection, instanceID string) *NotificationService {
	s.leader = leader
	s.instanceID = instanceID
	return s
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.ListForUser(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	notifications, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return domain.CountUnread(notifications), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID string, notificationID int64) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// Notify stores a notification and announces it on the bus.
func (s *NotificationService) Notify(ctx context.Context, userID, kind, title, message string) (*domain.Notification, error) {
	if userID == "" {
		return nil, ErrMissingRecipient
	}

	notification := &domain.Notification{
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}

	if err := s.broadcaster.Broadcast(ctx, domain.EventNotification, domain.NotificationCreated{
		UserID:         userID,
		NotificationID: notification.ID,
		Type:           kind,
		Title:          title,
	}); err != nil {
		s.log.Error("Failed to broadcast notification", "notification_id", notification.ID, "error", err)
	}

	return notification, nil
}

// Register subscribes the auction listeners and returns a func removing them.
func (s *NotificationService) Register(bus *eventbus.Bus) func() {
	unsubscribeWon := bus.SubscribeFunc(domain.EventAuctionWon, s.handleAuctionWon)
	unsubscribeBid := bus.SubscribeFunc(domain.EventBidPlaced, s.handleBidPlaced)
	return func() {
		unsubscribeWon()
		unsubscribeBid()
	}
}

func (s *NotificationService) handleAuctionWon(event domain.Event) error {
	var won domain.AuctionWon
	if err := event.Decode(&won); err != nil {
		return fmt.Errorf("decoding auction-won: %w", err)
	}
	if won.WinnerID == "" {
		return ErrMissingRecipient
	}

	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()

	if !s.isLeader(ctx) {
		return nil
	}

	name := won.Title
	if name == "" {
		name = won.AuctionID
	}

	_, err := s.Notify(ctx, won.WinnerID, NotificationAuctionWon, "You won an auction!",
		fmt.Sprintf("Your bid of %.0f points won %s.", won.Amount, name))
	return err
}

func (s *NotificationService) handleBidPlaced(event domain.Event) error {
	var bid domain.BidPlaced
	if err := event.Decode(&bid); err != nil {
		return fmt.Errorf("decoding bid-placed: %w", err)
	}
	if bid.PreviousBidderID == "" || bid.PreviousBidderID == bid.UserID {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
	defer cancel()

	if !s.isLeader(ctx) {
		return nil
	}

	_, err := s.Notify(ctx, bid.PreviousBidderID, NotificationOutbid, "You have been outbid",
		fmt.Sprintf("Someone bid %.0f points on auction %s.", bid.Amount, bid.AuctionID))
	return err
}

func (s *NotificationService) isLeader(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}
	leader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Warn("Failed to check leadership", "error", err)
		return false
	}
	return leader
}
