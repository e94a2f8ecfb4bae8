package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kandev/raworc/internal/auth"
	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/events"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/rbac"
	"github.com/kandev/raworc/internal/session"
	"github.com/kandev/raworc/internal/store"
)

// isOwner reports whether the caller created sess, per spec §4.8's
// ownership rule.
func isOwner(c *gin.Context, sess *models.Session) bool {
	return auth.FromContext(c).Principal.Name() == sess.CreatedBy
}

// ownerOrAuthorize lets a session's own creator through without a
// permission check; everyone else needs the workspace-scoped "-all" verb.
func (s *Server) ownerOrAuthorize(c *gin.Context, sess *models.Session, verb string) bool {
	if isOwner(c, sess) {
		return true
	}
	return s.authorize(c, rbac.PermissionContext{
		APIGroup: apiGroupCore, Resource: "sessions", Verb: verb + "-all", Workspace: sess.Workspace, ResourceName: sess.ID,
	})
}

func (s *Server) listSessions(c *gin.Context) {
	filter := store.SessionFilter{
		Workspace: c.Query("workspace"),
		CreatedBy: c.Query("created_by"),
		State:     session.State(c.Query("state")),
	}

	actx := auth.FromContext(c)
	if filter.CreatedBy != actx.Principal.Name() {
		if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "sessions", Verb: "list-all", Workspace: filter.Workspace}) {
			return
		}
	}

	sessions, err := s.store.ListSessions(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

type createSessionRequest struct {
	Name                  string   `json:"name" binding:"required"`
	Workspace             string   `json:"workspace" binding:"required"`
	StartingPrompt        string   `json:"startingPrompt"`
	WaitingTimeoutSeconds *int     `json:"waitingTimeoutSeconds"`
	AgentIDs              []string `json:"agentIds"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "sessions", Verb: "create", Workspace: req.Workspace}) {
		return
	}

	actx := auth.FromContext(c)
	sess := &models.Session{
		Name:               req.Name,
		Workspace:          req.Workspace,
		StartingPrompt:     req.StartingPrompt,
		State:              session.StateInit,
		WaitingTimeoutSecs: req.WaitingTimeoutSeconds,
		CreatedBy:          actx.Principal.Name(),
	}
	if err := s.store.CreateSession(c.Request.Context(), sess); err != nil {
		fail(c, err)
		return
	}

	for _, agentID := range req.AgentIDs {
		if err := s.store.AssignAgent(c.Request.Context(), &models.SessionAgent{SessionID: sess.ID, AgentID: agentID}); err != nil {
			fail(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, sess)
}

func (s *Server) getSession(c *gin.Context) {
	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.ownerOrAuthorize(c, sess, "get") {
		return
	}
	c.JSON(http.StatusOK, sess)
}

type updateSessionRequest struct {
	Name                  *string        `json:"name"`
	WaitingTimeoutSeconds *int           `json:"waitingTimeoutSeconds"`
	Metadata              models.JSONMap `json:"metadata"`
}

func (s *Server) updateSession(c *gin.Context) {
	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.ownerOrAuthorize(c, sess, "update") {
		return
	}

	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}
	if req.Name != nil {
		sess.Name = *req.Name
	}
	if req.WaitingTimeoutSeconds != nil {
		sess.WaitingTimeoutSecs = req.WaitingTimeoutSeconds
	}
	if req.Metadata != nil {
		sess.Metadata = req.Metadata
	}

	if err := s.store.UpdateSessionMetadata(c.Request.Context(), sess); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// deleteSession soft-deletes the row and enqueues destroy_session, which
// runs in parallel with the soft delete rather than as a state transition.
func (s *Server) deleteSession(c *gin.Context) {
	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.ownerOrAuthorize(c, sess, "delete") {
		return
	}

	if err := s.store.SoftDeleteSession(c.Request.Context(), sess.ID); err != nil {
		fail(c, err)
		return
	}
	if err := s.store.EnqueueTask(c.Request.Context(), &models.Task{Type: session.TaskForDestroy, SessionID: sess.ID}); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateSessionStateRequest struct {
	State             session.State `json:"state" binding:"required"`
	TerminationReason *string       `json:"terminationReason"`
}

func (s *Server) updateSessionState(c *gin.Context) {
	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.ownerOrAuthorize(c, sess, "update-state") {
		return
	}

	var req updateSessionStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	s.applyTransition(c, sess, req.State, req.TerminationReason)
}

// completeSession implements POST /sessions/{id}/complete: the agent-side
// turn-done signal, always Busy->Ready.
func (s *Server) completeSession(c *gin.Context) {
	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.ownerOrAuthorize(c, sess, "update-state") {
		return
	}
	if sess.State != session.StateBusy {
		fail(c, apperrors.BadRequest("session is not busy"))
		return
	}
	s.applyTransition(c, sess, session.StateReady, nil)
}

// applyTransition validates, writes, and enqueues the effects for a single
// state transition, shared by updateSessionState and completeSession.
func (s *Server) applyTransition(c *gin.Context, sess *models.Session, to session.State, terminationReason *string) {
	from := sess.State
	if !session.CanTransition(from, to) {
		fail(c, apperrors.BadRequest("invalid state transition"))
		return
	}

	now := time.Now().UTC()
	fields := store.SessionStateFields{LastActivityAt: &now}
	if terminationReason != nil {
		fields.TerminationReason = terminationReason
	}

	effects := session.EffectsFor(from, to, sess.ContainerID != nil)
	for _, effect := range effects {
		switch effect {
		case session.EffectSetStartedAt:
			if sess.StartedAt == nil {
				fields.StartedAt = &now
			}
		case session.EffectSetTerminatedAt:
			fields.TerminatedAt = &now
		}
	}

	ctx := c.Request.Context()
	if err := s.store.UpdateSessionState(ctx, sess.ID, from, to, fields); err != nil {
		fail(c, err)
		return
	}

	for _, effect := range effects {
		var taskType session.TaskType
		switch effect {
		case session.EffectEnqueueCreate:
			taskType = session.TaskCreateSession
		case session.EffectEnqueueReactivate:
			taskType = session.TaskReactivateSession
		case session.EffectEnqueueStop:
			taskType = session.TaskStopSession
		default:
			continue
		}
		if err := s.store.EnqueueTask(ctx, &models.Task{Type: taskType, SessionID: sess.ID}); err != nil {
			fail(c, err)
			return
		}
	}

	if err := s.bus.Publish(ctx, events.SubjectSessionStateChanged, events.NewEvent(events.SubjectSessionStateChanged, "api", map[string]any{
		"sessionId": sess.ID,
		"from":      string(from),
		"to":        string(to),
	})); err != nil {
		s.logger.Warn("failed to publish session state change")
	}

	sess.State = to
	c.JSON(http.StatusOK, sess)
}

type remixSessionRequest struct {
	Name           string `json:"name" binding:"required"`
	StartingPrompt string `json:"startingPrompt"`
}

// remixSession implements POST /sessions/{id}/remix: a session constructor
// that copies the parent's workspace, prompt, assigned agents, and metadata
// into a fresh Init session, per spec §6's Remix definition.
func (s *Server) remixSession(c *gin.Context) {
	parent, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.ownerOrAuthorize(c, parent, "remix") {
		return
	}

	var req remixSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	startingPrompt := req.StartingPrompt
	if startingPrompt == "" {
		startingPrompt = parent.StartingPrompt
	}

	actx := auth.FromContext(c)
	child := &models.Session{
		Name:               req.Name,
		Workspace:          parent.Workspace,
		StartingPrompt:     startingPrompt,
		State:              session.StateInit,
		WaitingTimeoutSecs: parent.WaitingTimeoutSecs,
		CreatedBy:          actx.Principal.Name(),
		ParentSessionID:    &parent.ID,
		Metadata:           parent.Metadata,
	}
	if err := s.store.CreateSession(c.Request.Context(), child); err != nil {
		fail(c, err)
		return
	}

	assignments, err := s.store.ListSessionAgents(c.Request.Context(), parent.ID)
	if err != nil {
		fail(c, err)
		return
	}
	for _, assignment := range assignments {
		sa := &models.SessionAgent{SessionID: child.ID, AgentID: assignment.AgentID, Configuration: assignment.Configuration}
		if err := s.store.AssignAgent(c.Request.Context(), sa); err != nil {
			fail(c, err)
			return
		}
	}

	c.JSON(http.StatusCreated, child)
}

func (s *Server) getCommandResult(c *gin.Context) {
	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.ownerOrAuthorize(c, sess, "get") {
		return
	}

	result, err := s.store.GetCommandResultByTask(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		fail(c, err)
		return
	}
	if result.SessionID != sess.ID {
		fail(c, apperrors.NotFound("command result", c.Param("taskId")))
		return
	}
	c.JSON(http.StatusOK, result)
}
