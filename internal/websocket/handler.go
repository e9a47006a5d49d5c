package websocket

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"yalegn/orders-service/internal/order"

	"github.com/google/uuid"
	gw "github.com/gorilla/websocket"
)

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler streams order status updates to the order's parties.
type Handler struct {
	hub      *Hub
	orderSvc *order.Service
	logger   *slog.Logger
}

func NewHandler(hub *Hub, orderSvc *order.Service, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, orderSvc: orderSvc, logger: logger}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	orderIDStr := r.PathValue("orderID")
	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}

	actor, err := identityFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	// Only the order's buyer, seller or an admin may subscribe.
	o, err := h.orderSvc.Get(r.Context(), actor, orderID)
	if err != nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := NewClient(h.hub, conn, OrderRoom(orderIDStr), nil)
	client.Start()

	if b, err := json.Marshal(OrderUpdate{OrderID: orderIDStr, Status: string(o.Status)}); err == nil {
		client.Send(b)
	}
}

func identityFromRequest(r *http.Request) (order.Identity, error) {
	userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		return order.Identity{}, errMissingIdentity
	}
	role := order.Role(r.Header.Get("X-User-Role"))
	if !role.Valid() {
		return order.Identity{}, errMissingIdentity
	}
	return order.Identity{UserID: userID, Role: role}, nil
}

var errMissingIdentity = errors.New("missing or invalid identity headers")
