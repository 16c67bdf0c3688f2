package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pipali/pipali/internal/confirm"
	"github.com/pipali/pipali/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192
)

// Client is one connected UI surface. It receives confirmation pushes and
// sends back responses and dismissals.
type Client struct {
	ID      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan *WebMessage
	gateway *confirm.Gateway
}

func NewClient(hub *Hub, conn *websocket.Conn, gateway *confirm.Gateway) *Client {
	id, _ := generateClientID()
	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan *WebMessage, 256),
		gateway: gateway,
	}
}

// ReadPump pumps inbound frames from the connection to the gateway.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("web: read error: %v", err)
			}
			break
		}

		var msg WebMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Error("web: failed to unmarshal message: %v", err)
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps hub messages to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				logger.Error("web: failed to marshal message: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("web: failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *WebMessage) {
	switch msg.Type {
	case MessageTypeRespond:
		if !c.gateway.Respond(msg.RequestID, msg.OptionID, msg.Guidance) {
			c.sendResponse(&WebMessage{
				Type:      MessageTypeError,
				RequestID: msg.RequestID,
				Content:   "request not found or already resolved",
			})
			return
		}
		c.sendResponse(&WebMessage{Type: MessageTypeResolved, RequestID: msg.RequestID})

	case MessageTypeDismiss:
		if c.gateway.Dismiss(msg.RequestID) {
			c.sendResponse(&WebMessage{Type: MessageTypeResolved, RequestID: msg.RequestID})
		}

	default:
		logger.Warn("web: unknown message type: %s", msg.Type)
	}
}

// sendResponse sends to this client only, never blocking.
func (c *Client) sendResponse(msg *WebMessage) {
	select {
	case c.send <- msg:
	default:
		logger.Warn("web: client send channel full, dropping message")
	}
}

func generateClientID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
