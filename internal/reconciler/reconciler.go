// Package reconciler runs the two background loops spec §4.5 describes:
// a health loop that detects containers that died outside the normal
// lifecycle, and an idle sweep that moves inactive sessions to Idle.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kandev/raworc/internal/common/logger"
	"github.com/kandev/raworc/internal/container"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/session"
	"github.com/kandev/raworc/internal/store"
)

// healthInterval and idleSweepInterval are the tick periods from spec §4.5.
const (
	healthInterval    = 30 * time.Second
	idleSweepInterval = 60 * time.Second
)

// Reconciler drives both background loops against the store and container
// driver; it never talks to a session's container directly beyond Inspect,
// leaving lifecycle mutation (stop/remove) to the task queue it enqueues into.
type Reconciler struct {
	store  *store.Store
	docker *container.Client
	logger *logger.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Reconciler from its dependencies.
func New(st *store.Store, docker *container.Client, log *logger.Logger) *Reconciler {
	return &Reconciler{
		store:  st,
		docker: docker,
		logger: log.WithFields(zap.String("component", "reconciler")),
		stopCh: make(chan struct{}),
	}
}

// Start launches both loops in the background.
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(2)
	go r.healthLoop(ctx)
	go r.idleSweepLoop(ctx)
}

// Stop signals both loops to exit and waits for the in-flight tick to finish.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Reconciler) healthLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("health loop stopped (context cancelled)")
			return
		case <-r.stopCh:
			r.logger.Info("health loop stopped")
			return
		case <-ticker.C:
			r.runHealthCheck(ctx)
		}
	}
}

func (r *Reconciler) idleSweepLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("idle sweep loop stopped (context cancelled)")
			return
		case <-r.stopCh:
			r.logger.Info("idle sweep loop stopped")
			return
		case <-ticker.C:
			r.runIdleSweep(ctx)
		}
	}
}

// runHealthCheck inspects every Ready/Busy session's container and
// transitions sessions whose container has died to Error, per spec §4.5.
// Sessions with an in-flight task are excluded by
// store.ListHealthCheckCandidates itself (Open Question #4).
func (r *Reconciler) runHealthCheck(ctx context.Context) {
	candidates, err := r.store.ListHealthCheckCandidates(ctx)
	if err != nil {
		r.logger.Error("list health check candidates failed", zap.Error(err))
		return
	}

	for _, sess := range candidates {
		r.checkSession(ctx, sess)
	}
}

func (r *Reconciler) checkSession(ctx context.Context, sess models.Session) {
	if sess.ContainerID == nil {
		return
	}

	info, err := r.docker.Inspect(ctx, *sess.ContainerID)
	if err != nil {
		r.logger.Warn("inspect failed during health check",
			zap.String("session_id", sess.ID), zap.String("container_id", *sess.ContainerID), zap.Error(err))
		return
	}
	if info.State == "running" {
		return
	}

	r.logger.Warn("session container is not running, marking session errored",
		zap.String("session_id", sess.ID), zap.String("container_id", *sess.ContainerID), zap.String("status", info.State))

	now := time.Now().UTC()
	reason := fmt.Sprintf("Container status: %s", info.State)
	fields := store.SessionStateFields{TerminatedAt: &now, TerminationReason: &reason}
	if err := r.store.UpdateSessionState(ctx, sess.ID, sess.State, session.StateError, fields); err != nil {
		r.logger.Error("failed to mark session errored", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	if err := r.store.EnqueueTask(ctx, &models.Task{Type: session.TaskForDestroy, SessionID: sess.ID}); err != nil {
		r.logger.Error("failed to enqueue destroy for errored session", zap.String("session_id", sess.ID), zap.Error(err))
	}
}

// runIdleSweep moves Ready sessions past their waiting timeout to Idle, per
// spec §4.5. Only the Ready->Idle edge is taken; a Busy session mid-task is
// never swept regardless of inactivity.
func (r *Reconciler) runIdleSweep(ctx context.Context) {
	candidates, err := r.store.ListIdleSweepCandidates(ctx, time.Now().UTC())
	if err != nil {
		r.logger.Error("list idle sweep candidates failed", zap.Error(err))
		return
	}

	for _, sess := range candidates {
		if sess.State != session.StateReady {
			continue
		}
		if err := r.store.UpdateSessionState(ctx, sess.ID, session.StateReady, session.StateIdle, store.SessionStateFields{}); err != nil {
			r.logger.Warn("failed to idle session", zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		if err := r.store.EnqueueTask(ctx, &models.Task{Type: session.TaskStopSession, SessionID: sess.ID}); err != nil {
			r.logger.Error("failed to enqueue stop for idled session", zap.String("session_id", sess.ID), zap.Error(err))
		}
		r.logger.Info("session idled by sweep", zap.String("session_id", sess.ID))
	}
}
