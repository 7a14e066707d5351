package services

import (
	"context"
	"sync"
	"time"

	"fanzone/internal/domain"

	"github.com/stretchr/testify/mock"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListNotifications(ctx context.Context, token string) ([]domain.Notification, error) {
	args := m.Called(ctx, token)
	if list, ok := args.Get(0).([]domain.Notification); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// manualScheduler fires tasks only when Tick is called.
type manualScheduler struct {
	mu      sync.Mutex
	tasks   map[int]*manualTask
	next    int
	cancels int
	every   []time.Duration
}

type manualTask struct {
	s    *manualScheduler
	id   int
	fn   func()
	once sync.Once
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: make(map[int]*manualTask)}
}

func (s *manualScheduler) Every(interval time.Duration, task func()) (domain.ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	t := &manualTask{s: s, id: s.next, fn: task}
	s.tasks[t.id] = t
	s.every = append(s.every, interval)
	return t, nil
}

func (s *manualScheduler) Start() {}
func (s *manualScheduler) Stop()  {}

func (s *manualScheduler) Tick() {
	s.mu.Lock()
	var fns []func()
	for _, t := range s.tasks {
		fns = append(fns, t.fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *manualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualScheduler) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

func (t *manualTask) Cancel() {
	t.once.Do(func() {
		t.s.mu.Lock()
		defer t.s.mu.Unlock()
		delete(t.s.tasks, t.id)
		t.s.cancels++
	})
}

func notifications(read ...bool) []domain.Notification {
	list := make([]domain.Notification, 0, len(read))
	for i, r := range read {
		list = append(list, domain.Notification{ID: int64(i + 1), UserID: "u1", Read: r})
	}
	return list
}

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	args := m.Called(ctx, userID)
	if list, ok := args.Get(0).([]domain.Notification); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRepo) Create(ctx context.Context, notification *domain.Notification) error {
	args := m.Called(ctx, notification)
	if args.Error(0) == nil {
		notification.ID = 42
	}
	return args.Error(0)
}

func (m *mockRepo) MarkRead(ctx context.Context, userID string, notificationID int64) error {
	return m.Called(ctx, userID, notificationID).Error(0)
}

func (m *mockRepo) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type mockLeader struct {
	mock.Mock
}

func (m *mockLeader) BecomeLeader(ctx context.Context, instanceID string) (bool, error) {
	args := m.Called(ctx, instanceID)
	return args.Bool(0), args.Error(1)
}

func (m *mockLeader) IsLeader(ctx context.Context, instanceID string) (bool, error) {
	args := m.Called(ctx, instanceID)
	return args.Bool(0), args.Error(1)
}

func (m *mockLeader) ReleaseLeadership(ctx context.Context, instanceID string) error {
	return m.Called(ctx, instanceID).Error(0)
}

// recordingConnections captures what the bridge hands to connections.
type recordingConnections struct {
	mu        sync.Mutex
	broadcast []interface{}
	byUser    map[string][]interface{}
}

func newRecordingConnections() *recordingConnections {
	return &recordingConnections{byUser: make(map[string][]interface{})}
}

func (r *recordingConnections) RegisterConnection(domain.WebSocketConnection) error   { return nil }
func (r *recordingConnections) UnregisterConnection(domain.WebSocketConnection) error { return nil }
func (r *recordingConnections) GetConnectionsForUser(string) []domain.WebSocketConnection {
	return nil
}
func (r *recordingConnections) CloseAll() error { return nil }
func (r *recordingConnections) Count() int      { return 0 }

func (r *recordingConnections) BroadcastAll(message interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, message)
	return nil
}

func (r *recordingConnections) NotifyUser(userID string, message interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[userID] = append(r.byUser[userID], message)
	return nil
}
