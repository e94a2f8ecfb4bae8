package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/rbac"
)

func (s *Server) listRoles(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "roles", Verb: "list"}) {
		return
	}
	roles, err := s.store.ListRoles(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

type createRoleRequest struct {
	Name        string      `json:"name" binding:"required"`
	Rules       []rbac.Rule `json:"rules" binding:"required"`
	Description string      `json:"description"`
}

func (s *Server) createRole(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "roles", Verb: "create"}) {
		return
	}

	var req createRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	role := &rbac.Role{Name: req.Name, Rules: req.Rules, Description: req.Description}
	if err := s.store.CreateRole(c.Request.Context(), role); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, role)
}

// resolveRole satisfies the "{id|name}" lookup contract from spec §6.
func (s *Server) resolveRole(c *gin.Context, idOrName string) (*rbac.Role, error) {
	if role, err := s.store.GetRole(c.Request.Context(), idOrName); err == nil {
		return role, nil
	}
	return s.store.GetRoleByName(c.Request.Context(), idOrName)
}

func (s *Server) getRole(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "roles", Verb: "get"}) {
		return
	}
	role, err := s.resolveRole(c, c.Param("idOrName"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, role)
}

func (s *Server) deleteRole(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "roles", Verb: "delete"}) {
		return
	}
	role, err := s.resolveRole(c, c.Param("idOrName"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.DeleteRole(c.Request.Context(), role.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
