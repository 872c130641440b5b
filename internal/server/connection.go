package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Channel is the transport-facing view of one connected client: an
// opaque identity plus a message sink. The room manager depends on this
// interface, not on websockets, so matchmaking and session logic are
// testable without a live transport.
type Channel interface {
	ID() string
	Name() string
	SetName(name string)
	Room() string
	SetRoom(roomID string)
	SendMessage(msg *Message) error
}

// Connection represents a WebSocket connection to a client. The
// connection's generated id doubles as the player id for the lifetime
// of the socket.
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	id        string
	name      string
	roomID    string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	manager   *RoomManager
}

// NewConnection creates a new connection wrapper with a fresh identity
func NewConnection(conn *websocket.Conn, logger *log.Logger, manager *RoomManager) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	return &Connection{
		conn:    conn,
		send:    make(chan *Message, 256),
		id:      id,
		logger:  logger.WithPrefix("conn").With("socket", id[:8]),
		ctx:     ctx,
		cancel:  cancel,
		manager: manager,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// ID returns the connection's opaque player identity
func (c *Connection) ID() string {
	return c.id
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, expected during shutdown
			c.logger.Debug("Attempted to send message on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

// SetName records the display name the player joined with
func (c *Connection) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

// Name returns the player's display name
func (c *Connection) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetRoom associates this connection with a room
func (c *Connection) SetRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
}

// Room returns the associated room ID
func (c *Connection) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "room", c.Room())

	switch msg.Type {
	case MessageTypeCreateRoom:
		var data CreateRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse create room data")
			return
		}
		c.handleCreateRoom(data)

	case MessageTypeJoinRoom:
		var data JoinRoomData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join room data")
			return
		}
		c.handleJoinRoom(data)

	case MessageTypeJoinQueue:
		var data JoinQueueData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse join queue data")
			return
		}
		c.handleJoinQueue(data)

	case MessageTypeStartGame:
		var data StartGameData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse start game data")
			return
		}
		if err := c.manager.StartGame(c.ctx, c, data.RoomID); err != nil {
			c.sendError(errorCode(err), err.Error())
		}

	case MessageTypeDrawCard:
		var data DrawCardData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse draw card data")
			return
		}
		if err := c.manager.DrawCard(c.ctx, c, data.RoomID, data.FromDiscard); err != nil {
			c.sendError(errorCode(err), err.Error())
		}

	case MessageTypeDiscardCard:
		var data DiscardCardData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse discard card data")
			return
		}
		if err := c.manager.DiscardCard(c.ctx, c, data.RoomID, data.CardID); err != nil {
			c.sendError(errorCode(err), err.Error())
		}

	case MessageTypeRearrangeHand:
		var data RearrangeHandData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse rearrange data")
			return
		}
		if err := c.manager.RearrangeHand(c.ctx, c, data.RoomID, data.OrderIDs); err != nil {
			c.sendError(errorCode(err), err.Error())
		}

	case MessageTypeDeclare:
		var data DeclareData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse declare data")
			return
		}
		if err := c.manager.Declare(c.ctx, c, data.RoomID, data.DiscardID, data.Groups); err != nil {
			c.sendError(errorCode(err), err.Error())
		}

	case MessageTypeDebugWin:
		var data DebugWinData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "Failed to parse debug win data")
			return
		}
		if err := c.manager.DebugWin(c.ctx, c, data.RoomID); err != nil {
			c.sendError(errorCode(err), err.Error())
		}

	default:
		c.sendError("unknown_message_type", "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) handleCreateRoom(data CreateRoomData) {
	roomID, err := c.manager.CreateRoom(c.ctx, c, data.MaxPlayers)
	if err != nil {
		c.sendError(errorCode(err), err.Error())
		return
	}

	response, _ := NewMessage(MessageTypeRoomCreated, RoomCreatedData{RoomID: roomID})
	_ = c.SendMessage(response) // Ignore send errors
}

func (c *Connection) handleJoinRoom(data JoinRoomData) {
	if data.Name == "" {
		c.sendError("invalid_name", "Player name required")
		return
	}

	if err := c.manager.JoinRoom(c.ctx, c, data.RoomID, data.Name); err != nil {
		c.sendError(errorCode(err), err.Error())
	}
}

func (c *Connection) handleJoinQueue(data JoinQueueData) {
	if data.Name == "" {
		c.sendError("invalid_name", "Player name required")
		return
	}

	if err := c.manager.JoinQueue(c.ctx, c, data.Name, data.GameSize); err != nil {
		c.sendError(errorCode(err), err.Error())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("Failed to create error message", "error", err)
		return
	}

	_ = c.SendMessage(errorMsg) // Ignore send errors during error handling
}
