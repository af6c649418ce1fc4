package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard-facing, same posture as internal/api/websocket.go
	},
}

// Hub broadcasts scheduler tick events to connected operator dashboards.
// Additive observability alongside the REST Context/audit endpoints,
// not a replacement for them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	log       zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		log:       log.With().Str("component", "ws_hub").Logger(),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				h.log.Warn().Err(err).Msg("websocket write failed")
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades an incoming request to a websocket connection.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mutex.Unlock()
	h.log.Info().Int("clients", n).Msg("websocket client connected")

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			n := len(h.clients)
			h.mutex.Unlock()
			conn.Close()
			h.log.Info().Int("clients", n).Msg("websocket client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Broadcast sends data to every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}
