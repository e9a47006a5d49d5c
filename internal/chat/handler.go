package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	ws "yalegn/orders-service/internal/websocket"

	"github.com/google/uuid"
	gw "github.com/gorilla/websocket"
)

var upgrader = gw.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundMessage is the only frame clients send over the chat socket.
type inboundMessage struct {
	Body string `json:"body"`
}

// Handler relays chat messages within a conversation room: every
// inbound frame is persisted first, then broadcast to the room.
type Handler struct {
	hub    *ws.Hub
	svc    *Service
	logger *slog.Logger
}

func NewHandler(hub *ws.Hub, svc *Service, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, svc: svc, logger: logger}
}

func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(r.PathValue("conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	senderID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		http.Error(w, "missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	member, err := h.svc.IsParticipant(r.Context(), convID, senderID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("check conversation membership", "conversation_id", convID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "not a participant", http.StatusForbidden)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	room := ws.ConversationRoom(convID.String())
	client := ws.NewClient(h.hub, conn, room, func(data []byte) {
		// The request context ends when this handler returns, so
		// message handling runs on its own context.
		h.relay(context.Background(), convID, senderID, room, data)
	})
	client.Start()
}

func (h *Handler) relay(ctx context.Context, convID, senderID uuid.UUID, room string, data []byte) {
	var in inboundMessage
	if err := json.Unmarshal(data, &in); err != nil {
		h.logger.Warn("invalid chat frame", "conversation_id", convID, "err", err)
		return
	}

	msg, err := h.svc.SaveMessage(ctx, convID, senderID, in.Body)
	if err != nil {
		h.logger.Error("persist chat message", "conversation_id", convID, "err", err)
		return
	}

	out, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.hub.Broadcast(room, out)
}

// ServeHistory returns the recent messages of a conversation to a
// participant, oldest first.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	convID, err := uuid.Parse(r.PathValue("conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		http.Error(w, "missing X-User-ID header", http.StatusUnauthorized)
		return
	}

	member, err := h.svc.IsParticipant(r.Context(), convID, userID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		h.logger.Error("check conversation membership", "conversation_id", convID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !member {
		http.Error(w, "not a participant", http.StatusForbidden)
		return
	}

	messages, err := h.svc.History(r.Context(), convID, 50)
	if err != nil {
		h.logger.Error("load chat history", "conversation_id", convID, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": messages})
}
