package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kandev/raworc/internal/models"
)

const messageColumns = `id, session_id, role, content, agent_id, metadata, created_at`

// CreateMessage inserts a new session message.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_messages (`+messageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.AgentID, msg.Metadata, msg.CreatedAt)
	return wrapWrite(err)
}

// ListMessages returns a session's messages ordered by createdAt ascending,
// clamped to spec.md §4.9's [0,1000] limit.
func (s *Store) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]models.Message, error) {
	limit = clampLimit(limit)
	if offset < 0 {
		offset = 0
	}

	var messages []models.Message
	err := s.db.SelectContext(ctx, &messages,
		`SELECT `+messageColumns+` FROM session_messages WHERE session_id = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		sessionID, limit, offset)
	if err != nil {
		return nil, wrapWrite(err)
	}
	return messages, nil
}

// CountMessages reports the total message count for a session.
func (s *Store) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT count(*) FROM session_messages WHERE session_id = $1`, sessionID); err != nil {
		return 0, wrapWrite(err)
	}
	return n, nil
}

// DeleteMessages removes every message for a session.
func (s *Store) DeleteMessages(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = $1`, sessionID)
	return wrapWrite(err)
}

// clampLimit enforces spec.md §8's boundary behavior: the limit parameter is
// clamped to [0, 1000], not defaulted.
func clampLimit(limit int) int {
	if limit < 0 {
		return 0
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
