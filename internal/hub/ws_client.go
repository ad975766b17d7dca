package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"nagarpalika/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// SendBufferSize is how many events may queue for one client before it is dropped.
	SendBufferSize = 256
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	ConnID string
	UserID string
	Conn   *websocket.Conn
	Hub    *ManagerService

	send      chan models.Event
	closeOnce sync.Once
}

// NewWebSocketClient wraps conn. The caller registers it and then calls Run.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, connID, userID string) *WebSocketClient {
	return &WebSocketClient{
		ConnID: connID,
		UserID: userID,
		Conn:   conn,
		Hub:    hub,
		send:   make(chan models.Event, SendBufferSize),
	}
}

func (c *WebSocketClient) ID() string                { return c.ConnID }
func (c *WebSocketClient) Send() chan<- models.Event { return c.send }

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which closes the socket.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: Error reading from client %s: %v", c.ConnID, err)
			}
			break
		}
		c.handleInbound(message)
	}
}

func (c *WebSocketClient) handleInbound(message []byte) {
	var in models.InboundEvent
	if err := json.Unmarshal(message, &in); err != nil {
		log.Printf("WARN: Error decoding JSON from client %s: %v", c.ConnID, err)
		return
	}

	switch in.Name {
	case models.EventJoinDepartment, models.EventLeaveDepartment:
		code, err := departmentCode(in.Data)
		if err != nil {
			log.Printf("WARN: Bad %s payload from client %s: %v", in.Name, c.ConnID, err)
			code = ""
		}
		if in.Name == models.EventJoinDepartment {
			err = c.Hub.Join(c.ConnID, code)
		} else {
			err = c.Hub.Leave(c.ConnID, code)
		}
		if err != nil {
			log.Printf("WARN: Client %s %s %q: %v", c.ConnID, in.Name, code, err)
		}
	default:
		log.Printf("WARN: Ignoring unsupported event %q from client %s", in.Name, c.ConnID)
	}
}

// departmentCode accepts either "KTM-W01" or {"department":"KTM-W01"}.
func departmentCode(raw json.RawMessage) (string, error) {
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		return code, nil
	}
	var obj struct {
		Department string `json:"department"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	return obj.Department, nil
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one event per frame; clients parse each frame as a single JSON object
			if err := c.Conn.WriteJSON(event); err != nil {
				log.Printf("WARN: Write to client %s failed: %v", c.ConnID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
