package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/rbac"
)

func (s *Server) listAgents(c *gin.Context) {
	workspace := c.Query("workspace")
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "agents", Verb: "list", Workspace: workspace}) {
		return
	}
	agents, err := s.store.ListAgents(c.Request.Context(), workspace)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, agents)
}

type createAgentRequest struct {
	Name           string                `json:"name" binding:"required"`
	Workspace      string                `json:"workspace" binding:"required"`
	Description    string                `json:"description"`
	Instructions   string                `json:"instructions"`
	Model          string                `json:"model"`
	Tools          models.JSONStringList `json:"tools"`
	Routes         models.JSONStringList `json:"routes"`
	Guardrails     models.JSONStringList `json:"guardrails"`
	KnowledgeBases models.JSONStringList `json:"knowledgeBases"`
}

func (s *Server) createAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "agents", Verb: "create", Workspace: req.Workspace}) {
		return
	}

	a := &models.Agent{
		Name:           req.Name,
		Workspace:      req.Workspace,
		Description:    req.Description,
		Instructions:   req.Instructions,
		Model:          req.Model,
		Tools:          req.Tools,
		Routes:         req.Routes,
		Guardrails:     req.Guardrails,
		KnowledgeBases: req.KnowledgeBases,
		Active:         true,
	}
	if err := s.store.CreateAgent(c.Request.Context(), a); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// resolveAgent satisfies spec §6's "{id|name}" lookup contract. Resolving by
// name needs a workspace to disambiguate, since names are only unique
// per-workspace.
func (s *Server) resolveAgent(c *gin.Context, idOrName string) (*models.Agent, error) {
	if a, err := s.store.GetAgent(c.Request.Context(), idOrName); err == nil {
		return a, nil
	}
	return s.store.GetAgentByName(c.Request.Context(), c.Query("workspace"), idOrName)
}

func (s *Server) getAgent(c *gin.Context) {
	a, err := s.resolveAgent(c, c.Param("idOrName"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "agents", Verb: "get", Workspace: a.Workspace}) {
		return
	}
	c.JSON(http.StatusOK, a)
}

type updateAgentRequest struct {
	Description    *string                `json:"description"`
	Instructions   *string                `json:"instructions"`
	Model          *string                `json:"model"`
	Tools          *models.JSONStringList `json:"tools"`
	Routes         *models.JSONStringList `json:"routes"`
	Guardrails     *models.JSONStringList `json:"guardrails"`
	KnowledgeBases *models.JSONStringList `json:"knowledgeBases"`
	Active         *bool                  `json:"active"`
}

func (s *Server) updateAgent(c *gin.Context) {
	a, err := s.resolveAgent(c, c.Param("idOrName"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "agents", Verb: "update", Workspace: a.Workspace}) {
		return
	}

	var req updateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Instructions != nil {
		a.Instructions = *req.Instructions
	}
	if req.Model != nil {
		a.Model = *req.Model
	}
	if req.Tools != nil {
		a.Tools = *req.Tools
	}
	if req.Routes != nil {
		a.Routes = *req.Routes
	}
	if req.Guardrails != nil {
		a.Guardrails = *req.Guardrails
	}
	if req.KnowledgeBases != nil {
		a.KnowledgeBases = *req.KnowledgeBases
	}
	if req.Active != nil {
		a.Active = *req.Active
	}

	if err := s.store.UpdateAgent(c.Request.Context(), a); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) deleteAgent(c *gin.Context) {
	a, err := s.resolveAgent(c, c.Param("idOrName"))
	if err != nil {
		fail(c, err)
		return
	}
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "agents", Verb: "delete", Workspace: a.Workspace}) {
		return
	}
	if err := s.store.DeleteAgent(c.Request.Context(), a.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
