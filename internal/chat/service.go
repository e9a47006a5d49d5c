package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConversationNotFound = errors.New("conversation not found")

type Message struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderID       uuid.UUID `json:"sender_id"`
	Body           string    `json:"body"`
	SentAt         time.Time `json:"sent_at"`
}

type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// IsParticipant reports whether userID is one of the conversation's two
// parties.
func (s *Service) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var buyerID, sellerID uuid.UUID
	err := s.pool.QueryRow(ctx, `
		SELECT buyer_id, seller_id
		FROM conversations
		WHERE id = $1`,
		conversationID,
	).Scan(&buyerID, &sellerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrConversationNotFound
		}
		return false, fmt.Errorf("get conversation: %w", err)
	}
	return userID == buyerID || userID == sellerID, nil
}

// SaveMessage persists a chat message. Persistence happens before any
// broadcast so a failed or partial fan-out never loses the message.
func (s *Service) SaveMessage(ctx context.Context, conversationID, senderID uuid.UUID, body string) (*Message, error) {
	if body == "" {
		return nil, fmt.Errorf("empty message body")
	}

	m := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		SentAt:         time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_messages (id, conversation_id, sender_id, body, sent_at)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, m.SenderID, m.Body, m.SentAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// History returns the most recent messages of a conversation, oldest
// first.
func (s *Service) History(ctx context.Context, conversationID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, body, sent_at
		FROM (
			SELECT id, conversation_id, sender_id, body, sent_at
			FROM chat_messages
			WHERE conversation_id = $1
			ORDER BY sent_at DESC
			LIMIT $2
		) latest
		ORDER BY sent_at ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var result []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
