package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxMessageSize = 1024
	pingInterval   = 30 * time.Second
)

// Client is one live websocket connection and its room memberships.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	send   chan []byte

	// roomSet is owned by the hub: mutated only while holding hub.mu.
	roomSet map[string]struct{}

	writeTimeout time.Duration
	pongTimeout  time.Duration
	log          *zap.Logger
}

// ServeConn attaches an upgraded websocket connection for the given user to
// the hub and starts its read/write pumps. Returns immediately.
func ServeConn(hub *Hub, conn *websocket.Conn, userID uuid.UUID, writeTimeout, pongTimeout time.Duration, log *zap.Logger) {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pongTimeout <= 0 {
		pongTimeout = 60 * time.Second
	}
	c := &Client{
		hub:          hub,
		conn:         conn,
		userID:       userID,
		send:         make(chan []byte, hub.bufferSize),
		roomSet:      make(map[string]struct{}),
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
		log:          log,
	}
	hub.register(c)

	go c.writePump()
	go c.readPump()
}

// Upgrader builds the websocket upgrader used by the HTTP layer.
func Upgrader(checkOrigin func(r *http.Request) bool) websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// readPump consumes subscription messages until the connection drops, then
// removes the client from the registry so no orphaned room membership
// remains.
func (c *Client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug("ignoring malformed client message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MsgJoinDoctorQueue:
			if msg.DoctorID != uuid.Nil {
				c.hub.join(c, DoctorRoom(msg.DoctorID))
			}
		case MsgJoinPatientQueue:
			if msg.AppointmentID != uuid.Nil {
				c.hub.join(c, PatientRoom(msg.AppointmentID))
			}
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	close(c.send)
}
