package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kandev/raworc/internal/auth"
	"github.com/kandev/raworc/internal/common/logger"
	"github.com/kandev/raworc/internal/events"
	"github.com/kandev/raworc/internal/rbac"
	"github.com/kandev/raworc/internal/store"
)

// Server holds every dependency the HTTP handlers need. It carries no
// request-scoped state; one Server backs the whole gin.Engine.
type Server struct {
	store  *store.Store
	tokens *auth.TokenManager
	bus    events.EventBus
	rbac   *rbac.Engine
	logger *logger.Logger

	version string
}

// New builds a Server from its dependencies.
func New(st *store.Store, tokens *auth.TokenManager, bus events.EventBus, log *logger.Logger, version string) *Server {
	return &Server{
		store:   st,
		tokens:  tokens,
		bus:     bus,
		rbac:    rbac.NewEngine(),
		logger:  log,
		version: version,
	}
}

// Router assembles the gin.Engine: middleware chain, the auth gate, and
// every route group from spec §4.8.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(Recovery(s.logger), RequestLogger(s.logger), CORS())
	r.Use(auth.Gate(s.tokens, s.store))

	r.GET("/health", s.health)
	r.GET("/version", s.versionInfo)
	r.POST("/auth/internal", s.authInternal)
	r.POST("/auth/external", s.authExternal)
	r.GET("/auth/me", s.authMe)

	v0 := r.Group("/api/v0")
	{
		sa := v0.Group("/service-accounts")
		{
			sa.GET("", s.listServiceAccounts)
			sa.POST("", s.createServiceAccount)
			sa.GET("/:idOrUser", s.getServiceAccount)
			sa.PUT("/:idOrUser", s.updateServiceAccount)
			sa.DELETE("/:idOrUser", s.deleteServiceAccount)
			sa.PUT("/:idOrUser/password", s.changePassword)
		}

		roles := v0.Group("/roles")
		{
			roles.GET("", s.listRoles)
			roles.POST("", s.createRole)
			roles.GET("/:idOrName", s.getRole)
			roles.DELETE("/:idOrName", s.deleteRole)
		}

		bindings := v0.Group("/role-bindings")
		{
			bindings.GET("", s.listRoleBindings)
			bindings.POST("", s.createRoleBinding)
			bindings.GET("/:id", s.getRoleBinding)
			bindings.DELETE("/:id", s.deleteRoleBinding)
		}

		agents := v0.Group("/agents")
		{
			agents.GET("", s.listAgents)
			agents.POST("", s.createAgent)
			agents.GET("/:idOrName", s.getAgent)
			agents.PUT("/:idOrName", s.updateAgent)
			agents.DELETE("/:idOrName", s.deleteAgent)
		}

		sessions := v0.Group("/sessions")
		{
			sessions.GET("", s.listSessions)
			sessions.POST("", s.createSession)
			sessions.GET("/:id", s.getSession)
			sessions.PUT("/:id", s.updateSession)
			sessions.DELETE("/:id", s.deleteSession)
			sessions.PUT("/:id/state", s.updateSessionState)
			sessions.POST("/:id/remix", s.remixSession)
			sessions.POST("/:id/complete", s.completeSession)
			sessions.GET("/:id/commands/:taskId", s.getCommandResult)

			sessions.GET("/:id/messages", s.listMessages)
			sessions.POST("/:id/messages", s.createMessage)
			sessions.GET("/:id/messages/count", s.countMessages)
			sessions.DELETE("/:id/messages", s.deleteMessages)
		}
	}

	return r
}
