package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/cowork-labs/focusroom/internal/room"
)

// RoomService is what the connection manager needs from the room store.
type RoomService interface {
	Register(connID string)
	Join(connID, roomID string, user room.UserInfo)
	Leave(connID string)
	Disconnect(connID string)
	UpdatePresence(connID string, status room.Status)
	StartSession(connID, roomID string, goals []string)
	UpdateProgress(sessionID string, progress int)
	CompleteSession(sessionID string, achievements []string)
	StartTimer(roomID string, durationSec int, kind room.TimerKind)
	PauseTimer(roomID string)
	ResetTimer(roomID string)
}

// ConnectionManager owns all live WebSocket connections. Room membership
// lives in the room store; the manager only maps connection ids to sockets
// and pushes outbound events through a single broadcast queue, which keeps
// delivery order equal to emission order.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	config ConnectionConfig
	rooms  RoomService

	broadcastCh chan broadcastMessage
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// broadcastMessage is one outbound event bound for a set of connections.
type broadcastMessage struct {
	targets []string
	event   *room.Event
}

// DefaultConnectionConfig returns the default WebSocket configuration.
// allowedOrigin of "*" accepts any origin; anything else must match the
// request's Origin header exactly.
func DefaultConnectionConfig(allowedOrigin string) ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager. The room
// service is attached afterwards via SetRoomService because the store needs
// the manager as its broadcaster.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1000),
	}
}

// SetRoomService wires the room store into the manager. Must be called
// before the first upgrade.
func (cm *ConnectionManager) SetRoomService(rooms RoomService) {
	cm.rooms = rooms
}

// Start begins processing broadcast messages. Run in its own goroutine.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection and
// registers it with the room store.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
	}

	cm.mu.Lock()
	cm.connections[connection.ID] = connection
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.rooms.Register(connection.ID)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Int("total_connections", total).
		Msg("WebSocket connection established")

	return nil
}

// unregisterConnection removes a connection from the manager and tells the
// room store it is gone. Idempotent; both pumps call it on exit.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[conn.ID]
	if exists {
		delete(cm.connections, conn.ID)
		close(conn.Send)
	}
	cm.mu.Unlock()

	if !exists {
		return
	}

	cm.rooms.Disconnect(conn.ID)

	log.Info().Str("connection_id", conn.ID).Msg("connection unregistered")
}

// SendTo implements room.Broadcaster for a single connection.
func (cm *ConnectionManager) SendTo(connID string, event *room.Event) {
	cm.enqueue(broadcastMessage{targets: []string{connID}, event: event})
}

// Broadcast implements room.Broadcaster for a recipient list.
func (cm *ConnectionManager) Broadcast(connIDs []string, event *room.Event) {
	if len(connIDs) == 0 {
		return
	}
	cm.enqueue(broadcastMessage{targets: connIDs, event: event})
}

func (cm *ConnectionManager) enqueue(message broadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().
			Str("event_type", string(message.event.Type)).
			Str("room_id", message.event.RoomID).
			Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast delivers one queued event to its target connections.
func (cm *ConnectionManager) handleBroadcast(message broadcastMessage) {
	eventData, err := json.Marshal(message.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	cm.mu.RLock()
	targets := make([]*Connection, 0, len(message.targets))
	for _, id := range message.targets {
		if conn, ok := cm.connections[id]; ok {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		select {
		case conn.Send <- eventData:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.event.Type)).
		Str("room_id", message.event.RoomID).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

// ConnectionCount returns the number of live connections.
func (cm *ConnectionManager) ConnectionCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// closeAll closes every live connection during shutdown.
func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.Unlock()

	for _, conn := range conns {
		conn.Conn.Close()
	}
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
			c.LastPing = time.Now()
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.LastPing = time.Now()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.Manager.dispatch(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
