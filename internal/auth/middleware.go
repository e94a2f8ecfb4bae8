package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kandev/raworc/internal/common/errors"
	"github.com/kandev/raworc/internal/rbac"
	"github.com/kandev/raworc/internal/store"
)

// ContextPrincipalKey is the gin context key the gate stores the resolved
// AuthContext under.
const ContextPrincipalKey = "raworc_auth_context"

// AuthContext is the principal and raw claims of an authenticated request.
type AuthContext struct {
	Principal rbac.Principal
	Claims    *Claims
}

// publicPaths never require a bearer token, per spec §4.7's allow-list.
// /auth/external is deliberately absent: it mints a token for an arbitrary
// subject and is itself admin-only, so it needs the Gate to run and attach
// a real AuthContext before its handler's permission check.
var publicPaths = map[string]bool{
	"/health":        true,
	"/version":       true,
	"/auth/internal": true,
}

func isPublic(path string) bool {
	if publicPaths[path] {
		return true
	}
	return strings.HasPrefix(path, "/swagger") || strings.HasPrefix(path, "/openapi")
}

// Gate verifies the bearer token on every request outside the public
// allow-list and attaches the resolved AuthContext, per spec §4.7.
func Gate(tokens *TokenManager, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			abort(c, apperrors.Unauthorized("missing bearer token"))
			return
		}

		claims, err := tokens.Decode(strings.TrimPrefix(header, prefix))
		if err != nil {
			abort(c, err)
			return
		}

		var principal rbac.Principal
		switch claims.SubType {
		case SubjectTypeServiceAccount:
			sa, err := st.GetServiceAccount(c.Request.Context(), claims.Subject)
			if err != nil {
				abort(c, apperrors.Unauthorized("service account not found"))
				return
			}
			if !sa.Active {
				abort(c, apperrors.Unauthorized("service account is inactive"))
				return
			}
			principal = rbac.NewServiceAccountPrincipal(sa.User)
		case SubjectTypeSubject:
			principal = rbac.NewSubject(claims.Subject)
		default:
			abort(c, apperrors.Unauthorized("unknown subject type"))
			return
		}

		c.Set(ContextPrincipalKey, &AuthContext{Principal: principal, Claims: claims})
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	status, envelope := apperrors.ToEnvelope(err)
	c.AbortWithStatusJSON(status, envelope)
}

// FromContext retrieves the AuthContext a prior Gate call attached. It
// panics if called from a handler not behind Gate — every non-public route
// is, by construction of the router.
func FromContext(c *gin.Context) *AuthContext {
	return c.MustGet(ContextPrincipalKey).(*AuthContext)
}
