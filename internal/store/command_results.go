package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kandev/raworc/internal/models"
)

const commandResultColumns = `id, task_id, session_id, command, exit_code, stdout, stderr, created_at`

// CreateCommandResult records the output of an execute_command task, the
// only task type in spec.md §4.4 that writes to a durable side table.
func (s *Store) CreateCommandResult(ctx context.Context, r *models.CommandResult) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_results (`+commandResultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.TaskID, r.SessionID, r.Command, r.ExitCode, r.Stdout, r.Stderr, r.CreatedAt)
	return wrapWrite(err)
}

// GetCommandResultByTask looks up the result of an execute_command task,
// backing GET /sessions/{id}/commands/{taskId}.
func (s *Store) GetCommandResultByTask(ctx context.Context, taskID string) (*models.CommandResult, error) {
	var r models.CommandResult
	err := s.db.GetContext(ctx, &r, `SELECT `+commandResultColumns+` FROM command_results WHERE task_id = $1`, taskID)
	if err != nil {
		return nil, wrapRead(err, "command result", taskID)
	}
	return &r, nil
}
