package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/events"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/session"
	"github.com/kandev/raworc/internal/store"
)

func (s *Server) sessionForMessages(c *gin.Context, verb string) (*models.Session, bool) {
	sess, err := s.store.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	if !s.ownerOrAuthorize(c, sess, verb) {
		return nil, false
	}
	return sess, true
}

func (s *Server) listMessages(c *gin.Context) {
	sess, ok := s.sessionForMessages(c, "get")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if c.Query("limit") == "" {
		limit = 1000
	}

	messages, err := s.store.ListMessages(c.Request.Context(), sess.ID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type createMessageRequest struct {
	Role     models.MessageRole `json:"role" binding:"required"`
	Content  string             `json:"content" binding:"required"`
	AgentID  *string            `json:"agentId"`
	Metadata models.JSONMap     `json:"metadata"`
}

// createMessage implements POST /sessions/{id}/messages, including spec
// §4.9's liveness coupling: a message wakes an Idle session (enqueuing
// reactivate_session) or busies a Ready one; any other state is left alone.
func (s *Server) createMessage(c *gin.Context) {
	sess, ok := s.sessionForMessages(c, "update")
	if !ok {
		return
	}

	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}
	if req.Role == models.MessageRoleAgent && req.AgentID == nil {
		fail(c, apperrors.BadRequest("agentId is required when role is Agent"))
		return
	}

	ctx := c.Request.Context()
	switch sess.State {
	case session.StateIdle:
		if err := s.store.EnqueueTask(ctx, &models.Task{Type: session.TaskReactivateSession, SessionID: sess.ID}); err != nil {
			fail(c, err)
			return
		}
		now := time.Now().UTC()
		if err := s.store.UpdateSessionState(ctx, sess.ID, session.StateIdle, session.StateReady,
			store.SessionStateFields{LastActivityAt: &now}); err != nil {
			fail(c, err)
			return
		}
		if err := s.store.UpdateSessionState(ctx, sess.ID, session.StateReady, session.StateBusy,
			store.SessionStateFields{LastActivityAt: &now}); err != nil {
			fail(c, err)
			return
		}
	case session.StateReady:
		now := time.Now().UTC()
		if err := s.store.UpdateSessionState(ctx, sess.ID, session.StateReady, session.StateBusy,
			store.SessionStateFields{LastActivityAt: &now}); err != nil {
			fail(c, err)
			return
		}
	default:
		now := time.Now().UTC()
		if err := s.store.TouchLastActivity(ctx, sess.ID, now); err != nil {
			fail(c, err)
			return
		}
	}

	msg := &models.Message{SessionID: sess.ID, Role: req.Role, Content: req.Content, AgentID: req.AgentID, Metadata: req.Metadata}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		fail(c, err)
		return
	}

	if err := s.bus.Publish(ctx, events.SubjectSessionMessageReceived, events.NewEvent(events.SubjectSessionMessageReceived, "api", map[string]any{
		"sessionId": sess.ID,
		"messageId": msg.ID,
		"role":      string(msg.Role),
	})); err != nil {
		s.logger.Warn("failed to publish message received")
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) countMessages(c *gin.Context) {
	sess, ok := s.sessionForMessages(c, "get")
	if !ok {
		return
	}
	n, err := s.store.CountMessages(c.Request.Context(), sess.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (s *Server) deleteMessages(c *gin.Context) {
	sess, ok := s.sessionForMessages(c, "update")
	if !ok {
		return
	}
	if err := s.store.DeleteMessages(c.Request.Context(), sess.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
