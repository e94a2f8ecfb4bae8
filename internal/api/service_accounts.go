package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kandev/raworc/internal/auth"
	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/models"
	"github.com/kandev/raworc/internal/rbac"
)

const apiGroupCore = "core"

// resolveServiceAccount satisfies spec §6's "{id|user}" lookup contract: try
// as an id first, fall back to the login name.
func (s *Server) resolveServiceAccount(c *gin.Context, idOrUser string) (*models.ServiceAccount, error) {
	if sa, err := s.store.GetServiceAccount(c.Request.Context(), idOrUser); err == nil {
		return sa, nil
	}
	return s.store.GetServiceAccountByUser(c.Request.Context(), idOrUser)
}

func (s *Server) listServiceAccounts(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "service-accounts", Verb: "list"}) {
		return
	}
	accounts, err := s.store.ListServiceAccounts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

type createServiceAccountRequest struct {
	User        string `json:"user" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) createServiceAccount(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "service-accounts", Verb: "create"}) {
		return
	}

	var req createServiceAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	sa := &models.ServiceAccount{User: req.User, PassHash: hash, Description: req.Description, Active: true}
	if err := s.store.CreateServiceAccount(c.Request.Context(), sa); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sa)
}

func (s *Server) getServiceAccount(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "service-accounts", Verb: "get"}) {
		return
	}
	sa, err := s.resolveServiceAccount(c, c.Param("idOrUser"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sa)
}

type updateServiceAccountRequest struct {
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

func (s *Server) updateServiceAccount(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "service-accounts", Verb: "update"}) {
		return
	}
	sa, err := s.resolveServiceAccount(c, c.Param("idOrUser"))
	if err != nil {
		fail(c, err)
		return
	}

	var req updateServiceAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}
	if req.Description != nil {
		sa.Description = *req.Description
	}
	if req.Active != nil {
		sa.Active = *req.Active
	}

	if err := s.store.UpdateServiceAccount(c.Request.Context(), sa); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sa)
}

func (s *Server) deleteServiceAccount(c *gin.Context) {
	if !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "service-accounts", Verb: "delete"}) {
		return
	}
	sa, err := s.resolveServiceAccount(c, c.Param("idOrUser"))
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.store.DeleteServiceAccount(c.Request.Context(), sa.ID); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// changePassword implements PUT /service-accounts/{id}/password. Per spec
// §4.6, changing one's own password is allowed without the
// service-accounts/update permission, as long as the current password
// verifies; everyone else still needs that permission.
func (s *Server) changePassword(c *gin.Context) {
	sa, err := s.resolveServiceAccount(c, c.Param("idOrUser"))
	if err != nil {
		fail(c, err)
		return
	}

	actx := auth.FromContext(c)
	isSelf := actx.Principal.Type() == rbac.PrincipalServiceAccount && actx.Principal.Name() == sa.User
	if !isSelf && !s.authorize(c, rbac.PermissionContext{APIGroup: apiGroupCore, Resource: "service-accounts", Verb: "update"}) {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}
	if !auth.VerifyPassword(sa.PassHash, req.CurrentPassword) {
		fail(c, apperrors.Unauthorized("current password does not match"))
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		fail(c, err)
		return
	}
	sa.PassHash = hash
	if err := s.store.UpdateServiceAccount(c.Request.Context(), sa); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
