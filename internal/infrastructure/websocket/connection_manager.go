package websocket

import (
	"encoding/json"
	"sync"

	"fanzone/internal/domain"
	"fanzone/internal/metrics"
	"fanzone/pkg/logger"
)

var _ domain.ConnectionManager = (*ConnectionManager)(nil)

type ConnectionManager struct {
	connections map[string]map[string]domain.WebSocketConnection // userID -> connID -> connection
	mutex       sync.RWMutex
	log         logger.Logger
	metrics     *metrics.Metrics
}

func NewConnectionManager(log logger.Logger, m *metrics.Metrics) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		log:         log,
		metrics:     m,
	}
}

func (cm *ConnectionManager) RegisterConnection(conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	userID := conn.UserID()
	if cm.connections[userID] == nil {
		cm.connections[userID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[userID][conn.ID()] = conn
	cm.metrics.SetConnections(cm.countLocked())

	cm.log.Info("Connection registered", "user_id", userID, "conn_id", conn.ID())
	return nil
}

func (cm *ConnectionManager) UnregisterConnection(conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	userID := conn.UserID()
	if userConns, exists := cm.connections[userID]; exists {
		delete(userConns, conn.ID())
		if len(userConns) == 0 {
			delete(cm.connections, userID)
		}
	}
	cm.metrics.SetConnections(cm.countLocked())

	cm.log.Info("Connection unregistered", "user_id", userID, "conn_id", conn.ID())
	return nil
}

func (cm *ConnectionManager) GetConnectionsForUser(userID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[userID] {
		connections = append(connections, conn)
	}
	return connections
}

func (cm *ConnectionManager) all() []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, userConns := range cm.connections {
		for _, conn := range userConns {
			connections = append(connections, conn)
		}
	}
	return connections
}

func (cm *ConnectionManager) BroadcastAll(message interface{}) error {
	return cm.send(cm.all(), message)
}

func (cm *ConnectionManager) NotifyUser(userID string, message interface{}) error {
	return cm.send(cm.GetConnectionsForUser(userID), message)
}

// send encodes message once and writes it to every connection. A failing
// connection does not stop delivery to the rest.
func (cm *ConnectionManager) send(connections []domain.WebSocketConnection, message interface{}) error {
	if len(connections) == 0 {
		return nil
	}

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	frame := json.RawMessage(messageBytes)

	for _, conn := range connections {
		if err := conn.Send(frame); err != nil {
			cm.log.Error("Failed to send message", "user_id", conn.UserID(), "conn_id", conn.ID(), "error", err)
		}
	}
	return nil
}

func (cm *ConnectionManager) CloseAll() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	for userID, userConns := range cm.connections {
		for connID, conn := range userConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "user_id", userID, "conn_id", connID, "error", err)
			}
		}
	}
	cm.connections = make(map[string]map[string]domain.WebSocketConnection)
	cm.metrics.SetConnections(0)

	cm.log.Info("All connections closed")
	return nil
}

func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.countLocked()
}

func (cm *ConnectionManager) countLocked() int {
	n := 0
	for _, userConns := range cm.connections {
		n += len(userConns)
	}
	return n
}
