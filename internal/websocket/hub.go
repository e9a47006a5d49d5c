package websocket

import (
	"context"
	"encoding/json"
)

// OrderUpdate is the frame pushed to subscribers of an order's status.
type OrderUpdate struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type envelope struct {
	room string
	data []byte
}

type Client struct {
	hub       *Hub
	conn      *Conn
	send      chan []byte
	room      string
	onMessage func(data []byte)
}

// Hub fans messages out to clients grouped into rooms. Room membership
// is owned by the Run goroutine; all access goes through channels.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan envelope
	clients    map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope),
		clients:    make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.room]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.room] = set
			}
			set[c] = true
		case c := <-h.unregister:
			if set, ok := h.clients[c.room]; ok {
				if _, exists := set[c]; exists {
					delete(set, c)
					close(c.send)
				}
				if len(set) == 0 {
					delete(h.clients, c.room)
				}
			}
		case env := <-h.broadcast:
			if set, ok := h.clients[env.room]; ok {
				for c := range set {
					select {
					case c.send <- env.data:
					default:
						// Slow client; drop it rather than block the hub.
						delete(set, c)
						close(c.send)
					}
				}
			}
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			return
		}
	}
}

// Broadcast delivers data to every client in the room. The delivery is
// asynchronous: persisted state must never depend on it.
func (h *Hub) Broadcast(room string, data []byte) {
	go func() { h.broadcast <- envelope{room: room, data: data} }()
}

func (h *Hub) BroadcastOrderUpdate(orderID string, status string) {
	msg, err := json.Marshal(OrderUpdate{OrderID: orderID, Status: status})
	if err != nil {
		return
	}
	h.Broadcast(OrderRoom(orderID), msg)
}

// OrderRoom names the room carrying one order's status updates.
func OrderRoom(orderID string) string {
	return "order:" + orderID
}

// ConversationRoom names the room carrying one conversation's chat.
func ConversationRoom(conversationID string) string {
	return "conv:" + conversationID
}
