package websocket

import (
	"sync"
	"time"

	"fanzone/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// WebSocketConnection is one browser tab. Writes are serialized because
// gorilla connections allow a single concurrent writer.
type WebSocketConnection struct {
	conn   *websocket.Conn
	id     string
	userID string
	log    logger.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewWebSocketConnection(conn *websocket.Conn, userID string, log logger.Logger) *WebSocketConnection {
	id := uuid.NewString()
	return &WebSocketConnection{
		conn:   conn,
		id:     id,
		userID: userID,
		log:    log.With("conn_id", id, "user_id", userID),
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	if err := wsc.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConnection) ReadJSON(v interface{}) error {
	return wsc.conn.ReadJSON(v)
}

func (wsc *WebSocketConnection) Close() error {
	wsc.closeOnce.Do(func() {
		wsc.closeErr = wsc.conn.Close()
	})
	return wsc.closeErr
}

func (wsc *WebSocketConnection) ID() string {
	return wsc.id
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}
