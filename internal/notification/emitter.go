// Package notification is a fire-and-forget write sink. Notifications
// are observability for counterparties, not part of the transactional
// contract: a failed insert is logged and swallowed so it can never
// mask or roll back the order mutation it describes.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Emitter struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewEmitter(pool *pgxpool.Pool, logger *slog.Logger) *Emitter {
	return &Emitter{pool: pool, logger: logger}
}

func (e *Emitter) Notify(ctx context.Context, userID uuid.UUID, kind, title, body string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("marshal notification payload", "kind", kind, "err", err)
		return
	}

	_, err = e.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), userID, kind, title, body, data, time.Now().UTC(),
	)
	if err != nil {
		e.logger.Error("write notification", "user_id", userID, "kind", kind, "err", err)
	}
}

// NotifyAdmins fans one notification out to every admin user.
func (e *Emitter) NotifyAdmins(ctx context.Context, kind, title, body string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("marshal notification payload", "kind", kind, "err", err)
		return
	}

	_, err = e.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, payload, created_at)
		SELECT gen_random_uuid(), u.id, $1, $2, $3, $4, $5
		FROM users u
		WHERE u.role = 'admin'`,
		kind, title, body, data, time.Now().UTC(),
	)
	if err != nil {
		e.logger.Error("write admin notifications", "kind", kind, "err", err)
	}
}
