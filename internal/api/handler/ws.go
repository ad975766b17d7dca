package handler

import (
	"log"
	"net/http"

	"nagarpalika/backend/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORS is handled by the gin middleware for REST; the event channel is public.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection and registers it with the hub.
// Every connection starts in the global group; department groups are joined
// with a join_department message.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WARN: Websocket upgrade failed: %v", err)
		return
	}

	userID := ""
	if id := IdentityFrom(c); id != nil {
		userID = id.UserID
	}

	client := hub.NewWebSocketClient(h.Hub, conn, uuid.New().String(), userID)
	if err := h.Hub.Register(client); err != nil {
		log.Printf("WARN: Rejecting websocket connection: %v", err)
		conn.Close()
		return
	}
	client.Run()
}
