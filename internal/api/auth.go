package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kandev/raworc/internal/auth"
	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/rbac"
)

type internalLoginRequest struct {
	User string `json:"user" binding:"required"`
	Pass string `json:"pass" binding:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// authInternal implements POST /auth/internal from spec §4.7: verify a
// service account's password and issue a bearer token.
func (s *Server) authInternal(c *gin.Context) {
	var req internalLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	sa, err := s.store.GetServiceAccountByUser(c.Request.Context(), req.User)
	if err != nil {
		fail(c, apperrors.Unauthorized("invalid credentials"))
		return
	}
	if !sa.Active || !auth.VerifyPassword(sa.PassHash, req.Pass) {
		fail(c, apperrors.Unauthorized("invalid credentials"))
		return
	}

	token, expiresAt, err := s.tokens.Encode(sa.ID, auth.SubjectTypeServiceAccount, "")
	if err != nil {
		fail(c, err)
		return
	}

	now := time.Now().UTC()
	if err := s.store.TouchLastLogin(c.Request.Context(), sa.ID, now); err != nil {
		s.logger.Warn("failed to record login timestamp")
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

type externalTokenRequest struct {
	Subject   string `json:"subject" binding:"required"`
	Workspace string `json:"workspace"`
}

// authExternal implements POST /auth/external: an admin-only endpoint that
// mints a token for an arbitrary subject name with no stored credential.
func (s *Server) authExternal(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: "auth", Resource: "external-tokens", Verb: "create"}) {
		return
	}

	var req externalTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	token, expiresAt, err := s.tokens.Encode(req.Subject, auth.SubjectTypeSubject, req.Workspace)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt})
}

// authMe implements GET /auth/me: identify the caller from its own token.
func (s *Server) authMe(c *gin.Context) {
	actx := auth.FromContext(c)
	body := gin.H{
		"user": actx.Principal.Name(),
		"type": string(actx.Principal.Type()),
	}
	if actx.Claims.Workspace != "" {
		body["namespace"] = actx.Claims.Workspace
	}
	c.JSON(http.StatusOK, body)
}
