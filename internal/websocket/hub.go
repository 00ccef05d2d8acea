// Package websocket fans task mutation events out to the owning user's
// connected clients.
package websocket

import (
	"encoding/json"
	"sync"

	"taskhub/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Client is one websocket connection belonging to an authenticated user.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Mu     sync.Mutex
}

type event struct {
	userID string
	data   []byte
}

// Hub routes events to the clients of a single user. Register, Unregister
// and Publish are safe to call from any goroutine; all state is owned by the
// Run loop.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan event
	Register   chan *Client
	Unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan event, 16),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Publish sends payload to every connection owned by userID. Delivery is
// best-effort; a marshalling failure is logged and dropped.
func (h *Hub) Publish(userID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding websocket event", zap.Error(err))
		return
	}
	h.broadcast <- event{userID: userID, data: data}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Conn.Close()
			}
		case ev := <-h.broadcast:
			for client := range h.clients {
				if client.UserID != ev.userID {
					continue
				}
				client.Mu.Lock()
				err := client.Conn.WriteMessage(websocket.TextMessage, ev.data)
				client.Mu.Unlock()
				if err != nil {
					delete(h.clients, client)
					client.Conn.Close()
				}
			}
		}
	}
}
