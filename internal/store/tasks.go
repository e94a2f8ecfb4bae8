package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kandev/raworc/internal/models"
)

const taskColumns = `id, type, session_id, payload, status, error, created_at, updated_at, started_at, completed_at`

// EnqueueTask inserts a new pending task, the producer half of spec.md
// §4.2's protocol.
func (s *Store) EnqueueTask(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	task.CreatedAt, task.UpdatedAt = now, now
	task.Status = models.TaskStatusPending

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID, task.Type, task.SessionID, task.Payload, task.Status, task.Error,
		task.CreatedAt, task.UpdatedAt, task.StartedAt, task.CompletedAt)
	return wrapWrite(err)
}

// ClaimTasks atomically claims up to batchSize oldest pending tasks using
// SELECT ... FOR UPDATE SKIP LOCKED, then marks them processing, per
// spec.md §4.2 step 1. This is the only query in the store that needs an
// explicit transaction: the select-and-lock and the update must be atomic
// against other workers racing the same claim.
func (s *Store) ClaimTasks(ctx context.Context, batchSize int) ([]models.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, wrapWrite(err)
	}
	defer tx.Rollback()

	var tasks []models.Task
	err = tx.SelectContext(ctx, &tasks, `
		SELECT `+taskColumns+` FROM session_tasks
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		models.TaskStatusPending, batchSize)
	if err != nil {
		return nil, wrapWrite(err)
	}
	if len(tasks) == 0 {
		return nil, tx.Commit()
	}

	now := time.Now().UTC()
	ids := make([]string, len(tasks))
	for i := range tasks {
		tasks[i].Status = models.TaskStatusProcessing
		tasks[i].StartedAt = &now
		tasks[i].UpdatedAt = now
		ids[i] = tasks[i].ID
	}

	query, args, err := sqlx.In(`UPDATE session_tasks SET status = ?, started_at = ?, updated_at = ? WHERE id IN (?)`,
		models.TaskStatusProcessing, now, now, ids)
	if err != nil {
		return nil, wrapWrite(err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		return nil, wrapWrite(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, wrapWrite(err)
	}
	return tasks, nil
}

// CompleteTask marks a task completed, the success half of spec.md §4.2
// step 3.
func (s *Store) CompleteTask(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE session_tasks SET status = $1, completed_at = $2, updated_at = $2 WHERE id = $3`,
		models.TaskStatusCompleted, now, id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "task", id)
}

// FailTask marks a task failed with the given error text, the failure half
// of spec.md §4.2 step 3. The worker does not automatically retry.
func (s *Store) FailTask(ctx context.Context, id, errMsg string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE session_tasks SET status = $1, error = $2, completed_at = $3, updated_at = $3 WHERE id = $4`,
		models.TaskStatusFailed, errMsg, now, id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "task", id)
}

// HasProcessingTask reports whether a session currently has a task claimed
// but not finalized. The health loop does not call it: ListHealthCheckCandidates
// applies the same condition in SQL.
func (s *Store) HasProcessingTask(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT count(*) FROM session_tasks WHERE session_id = $1 AND status = $2`,
		sessionID, models.TaskStatusProcessing)
	if err != nil {
		return false, wrapWrite(err)
	}
	return n > 0, nil
}

// GetTask looks up a task by id. The execute_command result endpoint
// (GET /sessions/{id}/commands/{taskId}) reads command_results through
// GetCommandResultByTask instead.
func (s *Store) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	err := s.db.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM session_tasks WHERE id = $1`, id)
	if err != nil {
		return nil, wrapRead(err, "task", id)
	}
	return &task, nil
}
