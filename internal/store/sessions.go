package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/session"
)

const sessionColumns = `id, name, workspace, starting_prompt, state, waiting_timeout_seconds, container_id,
	persistent_volume_id, created_by, parent_session_id, created_at, started_at, last_activity_at,
	terminated_at, termination_reason, metadata, deleted_at`

// CreateSession inserts a new session row in Init state.
func (s *Store) CreateSession(ctx context.Context, sess *models.Session) error {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	sess.CreatedAt = time.Now().UTC()
	if sess.State == "" {
		sess.State = session.StateInit
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		sess.ID, sess.Name, sess.Workspace, sess.StartingPrompt, sess.State, sess.WaitingTimeoutSecs, sess.ContainerID,
		sess.PersistentVolumeID, sess.CreatedBy, sess.ParentSessionID, sess.CreatedAt, sess.StartedAt, sess.LastActivityAt,
		sess.TerminatedAt, sess.TerminationReason, sess.Metadata, sess.DeletedAt)
	return wrapWrite(err)
}

// GetSession looks up a non-deleted session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.GetContext(ctx, &sess, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return nil, wrapRead(err, "session", id)
	}
	return &sess, nil
}

// GetSessionIncludingDeleted looks up a session by id regardless of its
// deletedAt marker, for the worker's destroy_session handler which runs
// after the session has already been soft-deleted.
func (s *Store) GetSessionIncludingDeleted(ctx context.Context, id string) (*models.Session, error) {
	var sess models.Session
	err := s.db.GetContext(ctx, &sess, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	if err != nil {
		return nil, wrapRead(err, "session", id)
	}
	return &sess, nil
}

// SessionFilter narrows ListSessions; zero values mean unfiltered.
type SessionFilter struct {
	Workspace string
	CreatedBy string
	State     session.State
}

// ListSessions returns non-deleted sessions matching filter.
func (s *Store) ListSessions(ctx context.Context, filter SessionFilter) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Workspace != "" {
		query += " AND workspace = " + arg(filter.Workspace)
	}
	if filter.CreatedBy != "" {
		query += " AND created_by = " + arg(filter.CreatedBy)
	}
	if filter.State != "" {
		query += " AND state = " + arg(filter.State)
	}
	query += " ORDER BY created_at"

	var sessions []models.Session
	if err := s.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, wrapWrite(err)
	}
	return sessions, nil
}

// ListIdleSweepCandidates returns non-deleted Ready sessions whose
// inactivity has exceeded their waiting timeout, per spec.md §4.5's idle
// sweep query. Busy sessions and sessions with no waiting timeout or no
// recorded activity are never returned.
func (s *Store) ListIdleSweepCandidates(ctx context.Context, now time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE state = $1
		  AND waiting_timeout_seconds IS NOT NULL
		  AND last_activity_at IS NOT NULL
		  AND last_activity_at + (waiting_timeout_seconds || ' seconds')::interval < $2
		  AND deleted_at IS NULL`,
		session.StateReady, now)
	if err != nil {
		return nil, wrapWrite(err)
	}
	return sessions, nil
}

// ListHealthCheckCandidates returns non-deleted Ready/Busy sessions with a
// container, per spec.md §4.5's health loop enumeration. The NOT EXISTS
// clause excludes sessions with a processing task (Open Question #4 / the
// health vs. in-flight-task race).
func (s *Store) ListHealthCheckCandidates(ctx context.Context) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE state IN ($1, $2)
		  AND container_id IS NOT NULL
		  AND deleted_at IS NULL
		  AND NOT EXISTS (
		      SELECT 1 FROM session_tasks
		      WHERE session_tasks.session_id = sessions.id AND session_tasks.status = $3
		  )`,
		session.StateReady, session.StateBusy, models.TaskStatusProcessing)
	if err != nil {
		return nil, wrapWrite(err)
	}
	return sessions, nil
}

// UpdateSessionState performs the conditional state write spec.md §5 calls
// for: it only applies if the row is still in fromState, closing the
// read-then-write race window between concurrent requests. The caller is
// responsible for having already validated the transition with
// session.CanTransition and computed the effect fields.
func (s *Store) UpdateSessionState(ctx context.Context, id string, fromState, toState session.State, fields SessionStateFields) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET state = $1, container_id = COALESCE($2, container_id), persistent_volume_id = COALESCE($3, persistent_volume_id),
		    started_at = COALESCE(started_at, $4), last_activity_at = COALESCE($5, last_activity_at),
		    terminated_at = COALESCE($6, terminated_at), termination_reason = COALESCE($7, termination_reason)
		WHERE id = $8 AND state = $9 AND deleted_at IS NULL`,
		toState, fields.ContainerID, fields.PersistentVolumeID, fields.StartedAt, fields.LastActivityAt,
		fields.TerminatedAt, fields.TerminationReason, id, fromState)
	if err != nil {
		return wrapWrite(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.DatabaseError(err)
	}
	if n == 0 {
		return apperrors.Conflict("session state changed concurrently or transition no longer applies")
	}
	return nil
}

// SessionStateFields carries the optional fields a transition may set;
// nil/zero means "leave unchanged".
type SessionStateFields struct {
	ContainerID         *string
	PersistentVolumeID  *string
	StartedAt           *time.Time
	LastActivityAt      *time.Time
	TerminatedAt        *time.Time
	TerminationReason   *string
}

// UpdateSessionMetadata persists the mutable fields PUT /sessions/{id}
// allows outside of a state transition: name, waitingTimeoutSeconds,
// metadata.
func (s *Store) UpdateSessionMetadata(ctx context.Context, sess *models.Session) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET name = $1, waiting_timeout_seconds = $2, metadata = $3
		WHERE id = $4 AND deleted_at IS NULL`,
		sess.Name, sess.WaitingTimeoutSecs, sess.Metadata, sess.ID)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "session", sess.ID)
}

// TouchLastActivity bumps last_activity_at without a state transition, used
// by the message endpoint when the session is neither Idle nor Ready, and by
// the execute_command handler.
func (s *Store) TouchLastActivity(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_activity_at = $1 WHERE id = $2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "session", id)
}

// ClearContainer clears containerId/persistentVolumeId after destroy_session
// removes the container and workspace volume. Unlike most session writes this
// does not filter on deleted_at: destroy_session runs for both an Error-state
// teardown and the parallel cleanup a soft-delete enqueues, and in the latter
// case the row is already marked deleted by the time the worker gets to it.
func (s *Store) ClearContainer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET container_id = NULL, persistent_volume_id = NULL WHERE id = $1`, id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "session", id)
}

// SoftDeleteSession marks a session deleted; read paths filter it out
// thereafter, per spec.md §3's append-only deletedAt invariant.
func (s *Store) SoftDeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return wrapWrite(err)
	}
	return checkAffected(res, "session", id)
}

// AssignAgent records a session/agent assignment (used by create and remix).
func (s *Store) AssignAgent(ctx context.Context, sa *models.SessionAgent) error {
	if sa.AssignedAt.IsZero() {
		sa.AssignedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_agents (session_id, agent_id, assigned_at, configuration)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, agent_id) DO UPDATE SET configuration = EXCLUDED.configuration`,
		sa.SessionID, sa.AgentID, sa.AssignedAt, sa.Configuration)
	return wrapWrite(err)
}

// ListSessionAgents returns the agents assigned to a session.
func (s *Store) ListSessionAgents(ctx context.Context, sessionID string) ([]models.SessionAgent, error) {
	var assignments []models.SessionAgent
	err := s.db.SelectContext(ctx, &assignments,
		`SELECT session_id, agent_id, assigned_at, configuration FROM session_agents WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, wrapWrite(err)
	}
	return assignments, nil
}

