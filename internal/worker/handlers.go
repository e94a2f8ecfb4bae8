package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kandev/raworc/internal/container"
	"github.com/kandev/raworc/internal/events"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/session"
	"github.com/kandev/raworc/internal/store"
)

// handleCreateSession provisions the workspace volume and container for a
// session already written as Ready by the API handler, per spec §4.4. The
// session row's containerId/persistentVolumeId are still nil at this point;
// this handler fills them in with a same-state write (fromState == toState
// == Ready) rather than a transition, since session.CanTransition has
// nothing to say about attaching infrastructure to an already-Ready session.
func (w *Worker) handleCreateSession(ctx context.Context, task models.Task) error {
	sess, err := w.store.GetSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	volumePath, err := w.volumes.Ensure(sess.ID)
	if err != nil {
		return fmt.Errorf("ensure workspace volume: %w", err)
	}

	if ok, err := w.docker.HasImage(ctx, w.hostCfg.Image); err != nil {
		return fmt.Errorf("check image: %w", err)
	} else if !ok {
		if err := w.docker.PullImage(ctx, w.hostCfg.Image); err != nil {
			return fmt.Errorf("pull image: %w", err)
		}
	}

	containerID, err := w.docker.CreateSessionContainer(ctx, container.SessionSpec{
		SessionID:      sess.ID,
		SessionName:    sess.Name,
		Image:          w.hostCfg.Image,
		HostVolumePath: volumePath,
		CPULimit:       w.hostCfg.CPULimit,
		MemoryLimit:    w.hostCfg.MemoryLimit,
		Network:        w.hostCfg.Network,
		StartingPrompt: sess.StartingPrompt,
	})
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	if err := w.docker.Start(ctx, containerID); err != nil {
		return fmt.Errorf("start container: %w", err)
	}

	now := time.Now().UTC()
	fields := store.SessionStateFields{
		ContainerID:        &containerID,
		PersistentVolumeID: &volumePath,
		StartedAt:          &now,
		LastActivityAt:     &now,
	}
	if err := w.store.UpdateSessionState(ctx, sess.ID, session.StateReady, session.StateReady, fields); err != nil {
		return fmt.Errorf("attach container to session: %w", err)
	}

	w.publish(ctx, events.SubjectSessionStateChanged, map[string]any{
		"sessionId": sess.ID, "state": string(session.StateReady), "containerId": containerID,
	})
	return nil
}

// handleReactivateSession restarts an existing (stopped, not removed)
// container when a session wakes from Idle back to Ready.
func (w *Worker) handleReactivateSession(ctx context.Context, task models.Task) error {
	sess, err := w.store.GetSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.ContainerID == nil {
		return fmt.Errorf("session %s has no container to reactivate", sess.ID)
	}

	if err := w.docker.Start(ctx, *sess.ContainerID); err != nil {
		return fmt.Errorf("restart container: %w", err)
	}

	now := time.Now().UTC()
	fields := store.SessionStateFields{LastActivityAt: &now}
	if err := w.store.UpdateSessionState(ctx, sess.ID, session.StateReady, session.StateReady, fields); err != nil {
		return fmt.Errorf("touch session on reactivate: %w", err)
	}

	w.publish(ctx, events.SubjectSessionStateChanged, map[string]any{
		"sessionId": sess.ID, "state": string(session.StateReady),
	})
	return nil
}

// handleStopSession stops (but does not remove) a session's container when
// it goes Idle, per spec §4.1: the container and its workspace volume are
// preserved so reactivate_session can resume it later.
func (w *Worker) handleStopSession(ctx context.Context, task models.Task) error {
	sess, err := w.store.GetSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.ContainerID == nil {
		return nil
	}

	grace := time.Duration(w.sessCfg.StopGraceSeconds) * time.Second
	if err := w.docker.Stop(ctx, *sess.ContainerID, grace); err != nil {
		return fmt.Errorf("stop container: %w", err)
	}

	w.publish(ctx, events.SubjectSessionStateChanged, map[string]any{
		"sessionId": sess.ID, "state": string(session.StateIdle),
	})
	return nil
}

// handleDestroySession removes a session's container and workspace volume
// entirely. It runs both for an Error-state teardown and, per
// session.TaskForDestroy, the parallel cleanup a soft-delete enqueues — in
// the latter case the session row is already marked deleted, so this reads
// it with GetSessionIncludingDeleted rather than the normal not-deleted-only
// lookup.
func (w *Worker) handleDestroySession(ctx context.Context, task models.Task) error {
	sess, err := w.store.GetSessionIncludingDeleted(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	if sess.ContainerID != nil {
		if err := w.docker.Stop(ctx, *sess.ContainerID, 10*time.Second); err != nil {
			w.logger.Warn("stop before remove failed, removing anyway", zap.Error(err))
		}
		if err := w.docker.Remove(ctx, *sess.ContainerID, true); err != nil {
			return fmt.Errorf("remove container: %w", err)
		}
	}
	if err := w.volumes.Remove(sess.ID); err != nil {
		return fmt.Errorf("remove workspace volume: %w", err)
	}
	if err := w.store.ClearContainer(ctx, sess.ID); err != nil {
		return fmt.Errorf("clear container fields: %w", err)
	}

	w.publish(ctx, events.SubjectSessionStateChanged, map[string]any{
		"sessionId": sess.ID, "state": "destroyed",
	})
	return nil
}

// handleExecuteCommand runs a shell command inside a session's container and
// stores its output as a CommandResult, backing GET
// /sessions/{id}/commands/{taskId}.
func (w *Worker) handleExecuteCommand(ctx context.Context, task models.Task) error {
	sess, err := w.store.GetSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess.ContainerID == nil {
		return fmt.Errorf("session %s has no running container", sess.ID)
	}

	command, _ := task.Payload["command"].(string)
	if command == "" {
		return fmt.Errorf("execute_command task %s has no command payload", task.ID)
	}

	result, err := w.docker.Exec(ctx, *sess.ContainerID, []string{"sh", "-c", command})
	if err != nil {
		return fmt.Errorf("exec command: %w", err)
	}

	cr := &models.CommandResult{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		SessionID: sess.ID,
		Command:   command,
		ExitCode:  result.ExitCode,
		Stdout:    result.Stdout,
		Stderr:    result.Stderr,
	}
	if err := w.store.CreateCommandResult(ctx, cr); err != nil {
		return fmt.Errorf("store command result: %w", err)
	}

	now := time.Now().UTC()
	if err := w.store.TouchLastActivity(ctx, sess.ID, now); err != nil {
		return fmt.Errorf("touch last activity: %w", err)
	}

	w.publish(ctx, events.SubjectTaskCompleted, map[string]any{
		"taskId": task.ID, "sessionId": sess.ID, "exitCode": result.ExitCode,
	})
	return nil
}
