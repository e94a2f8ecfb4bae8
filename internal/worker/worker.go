// Package worker runs the lifecycle task queue described in spec §4.2/§4.4:
// claim pending session_tasks rows, dispatch each to its handler, and
// finalize the row as completed or failed.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/raworc/internal/common/config"
	"github.com/kandev/raworc/internal/common/logger"
	"github.com/kandev/raworc/internal/container"
	"github.com/kandev/raworc/internal/events"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/session"
	"github.com/kandev/raworc/internal/store"
	"github.com/kandev/raworc/internal/volume"
)

// idleInterval and errorBackoff are the claim-loop pacing constants from
// spec §4.2: sleep briefly when the queue is empty, longer after a claim
// itself fails (not an individual task failure, which is finalized and the
// loop continues immediately).
const (
	idleInterval = 2 * time.Second
	errorBackoff = 5 * time.Second
	batchSize    = 10
)

// Worker is the lifecycle task queue's single consumer loop. Running more
// than one is safe (SELECT ... FOR UPDATE SKIP LOCKED arbitrates claims
// across processes) but spec §4.2 only requires one.
type Worker struct {
	store    *store.Store
	docker   *container.Client
	volumes  *volume.Manager
	bus      events.EventBus
	hostCfg  config.HostAgentConfig
	sessCfg  config.SessionConfig
	logger   *logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Worker from its dependencies.
func New(st *store.Store, docker *container.Client, volumes *volume.Manager, bus events.EventBus,
	hostCfg config.HostAgentConfig, sessCfg config.SessionConfig, log *logger.Logger) *Worker {
	return &Worker{
		store:   st,
		docker:  docker,
		volumes: volumes,
		bus:     bus,
		hostCfg: hostCfg,
		sessCfg: sessCfg,
		logger:  log.WithFields(zap.String("component", "worker")),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the claim loop in the background.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop signals the claim loop to exit and waits for the in-flight batch to
// finish finalizing.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker loop stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("worker loop stopped")
			return
		default:
		}

		tasks, err := w.store.ClaimTasks(ctx, batchSize)
		if err != nil {
			w.logger.Error("claim tasks failed", zap.Error(err))
			sleepOrStop(w.stopCh, errorBackoff)
			continue
		}
		if len(tasks) == 0 {
			sleepOrStop(w.stopCh, idleInterval)
			continue
		}

		for _, task := range tasks {
			w.process(ctx, task)
		}
	}
}

func sleepOrStop(stopCh chan struct{}, d time.Duration) {
	select {
	case <-time.After(d):
	case <-stopCh:
	}
}

// process dispatches one claimed task to its handler and finalizes the row.
func (w *Worker) process(ctx context.Context, task models.Task) {
	log := w.logger.WithTaskID(task.ID)
	log.Info("processing task", zap.String("type", string(task.Type)), zap.String("session_id", task.SessionID))

	var err error
	switch task.Type {
	case session.TaskCreateSession:
		err = w.handleCreateSession(ctx, task)
	case session.TaskStopSession:
		err = w.handleStopSession(ctx, task)
	case session.TaskReactivateSession:
		err = w.handleReactivateSession(ctx, task)
	case session.TaskDestroySession:
		err = w.handleDestroySession(ctx, task)
	case session.TaskExecuteCommand:
		err = w.handleExecuteCommand(ctx, task)
	default:
		err = unknownTaskType(task.Type)
	}

	if err != nil {
		log.Error("task failed", zap.Error(err))
		if failErr := w.store.FailTask(ctx, task.ID, err.Error()); failErr != nil {
			log.Error("failed to mark task failed", zap.Error(failErr))
		}
		// A failed create leaves the session Ready with no container, an
		// unrecoverable state per spec §4.4: force it to Error rather than
		// leaving it stuck forever outside the health loop's reach (which
		// only looks at sessions that already have a containerId).
		if task.Type == session.TaskCreateSession {
			now := time.Now().UTC()
			reason := err.Error()
			fields := store.SessionStateFields{TerminatedAt: &now, TerminationReason: &reason}
			if stateErr := w.store.UpdateSessionState(ctx, task.SessionID, session.StateReady, session.StateError, fields); stateErr != nil {
				log.Error("failed to mark session errored after create failure", zap.Error(stateErr))
			}
		}
		return
	}
	if err := w.store.CompleteTask(ctx, task.ID); err != nil {
		log.Error("failed to mark task completed", zap.Error(err))
	}
}

func unknownTaskType(t session.TaskType) error {
	return &unknownTaskTypeError{t}
}

type unknownTaskTypeError struct{ t session.TaskType }

func (e *unknownTaskTypeError) Error() string {
	return "unknown task type: " + string(e.t)
}

func (w *Worker) publish(ctx context.Context, subject string, data map[string]any) {
	if w.bus == nil {
		return
	}
	if err := w.bus.Publish(ctx, subject, events.NewEvent(subject, "worker", data)); err != nil {
		w.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
