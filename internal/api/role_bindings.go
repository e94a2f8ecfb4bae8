package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/rbac"
)

func (s *Server) listRoleBindings(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "role-bindings", Verb: "list"}) {
		return
	}
	bindings, err := s.store.ListRoleBindings(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, bindings)
}

type createRoleBindingRequest struct {
	RoleName      string             `json:"role_name" binding:"required"`
	PrincipalName string             `json:"principal_name" binding:"required"`
	PrincipalType rbac.PrincipalType `json:"principal_type" binding:"required"`
	Workspace     string             `json:"workspace"`
}

func (s *Server) createRoleBinding(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "role-bindings", Verb: "create"}) {
		return
	}

	var req createRoleBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	rb := &rbac.RoleBinding{
		RoleName:      req.RoleName,
		PrincipalName: req.PrincipalName,
		PrincipalType: req.PrincipalType,
		Workspace:     req.Workspace,
	}
	if err := s.store.CreateRoleBinding(c.Request.Context(), rb); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rb)
}

func (s *Server) getRoleBinding(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "role-bindings", Verb: "get"}) {
		return
	}
	rb, err := s.store.GetRoleBinding(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rb)
}

func (s *Server) deleteRoleBinding(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "role-bindings", Verb: "delete"}) {
		return
	}
	if err := s.store.DeleteRoleBinding(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
