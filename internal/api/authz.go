package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kandev/raworc/internal/auth"
	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/rbac"
)

// authorize loads the caller's role bindings and every role, then asks the
// rbac engine whether ctx is granted, per spec §4.6. It aborts the request
// with Forbidden and returns false when it is not.
func (s *Server) authorize(c *gin.Context, ctx rbac.PermissionContext) bool {
	actx := auth.FromContext(c)

	bindings, err := s.store.ListRoleBindingsForPrincipal(c.Request.Context(), actx.Principal.Type(), actx.Principal.Name())
	if err != nil {
		fail(c, err)
		return false
	}
	roles, err := s.store.ListRoles(c.Request.Context())
	if err != nil {
		fail(c, err)
		return false
	}

	if !s.rbac.HasPermission(actx.Principal, roles, bindings, ctx) {
		fail(c, apperrors.Forbidden("not permitted"))
		return false
	}
	return true
}
