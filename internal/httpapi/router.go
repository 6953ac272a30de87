package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartys-dev/chatdesk/internal/common"
	"github.com/smartys-dev/chatdesk/internal/httpapi/handlers"
	"github.com/smartys-dev/chatdesk/internal/httpapi/middleware"
)

// NewRouter builds the gin engine with all routes attached.
func NewRouter(h *handlers.Handler, roles middleware.RoleLookup) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), middleware.Recovery(), middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40401, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40501, "method not allowed")
	})

	api := r.Group("/api")

	api.GET("/ping", func(c *gin.Context) {
		common.OK(c, gin.H{"pong": true})
	})

	// public
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.GET("/invitations/:token", h.ValidateInvitation)
		authGroup.POST("/password-reset", h.RequestPasswordReset)
		authGroup.POST("/password-reset/confirm", h.ConfirmPasswordReset)
	}

	// channel workflow hooks
	hooks := api.Group("/hooks")
	{
		hooks.POST("/messages", h.InboundMessage)
		hooks.GET("/customers/:id/agent", h.AgentStatus)
	}

	// authenticated dashboard
	authed := api.Group("", middleware.AuthRequired(h.JWTSecret))
	{
		authed.GET("/auth/me", h.Me)

		authed.GET("/conversations", h.ListConversations)
		authed.POST("/conversations/:id/select", h.SelectConversation)
		authed.GET("/conversations/:id/messages/previous", h.LoadPreviousMessages)
		authed.POST("/conversations/:id/reply", h.SendReply)
		authed.POST("/conversations/:id/files", h.SendFileMessage)
		authed.POST("/conversations/:id/template", h.SendTemplate)
		authed.PUT("/conversations/:id/agent", h.SetAgentEnabled)
		authed.GET("/conversations/:id/export", h.ExportTranscript)

		authed.GET("/settings/language", h.GetLanguage)
		authed.PUT("/settings/language", h.SetLanguage)

		authed.GET("/ws", h.Hub.Serve)
	}

	// admin only
	adminGroup := api.Group("/admin", middleware.AuthRequired(h.JWTSecret), middleware.AdminRequired(roles))
	{
		adminGroup.GET("/users", h.ListUsers)
		adminGroup.DELETE("/users/:id", h.DeleteUser)
		adminGroup.GET("/invitations", h.ListInvitations)
		adminGroup.POST("/invitations", h.CreateInvitation)
		adminGroup.POST("/invitations/:id/resend", h.ResendInvitation)
		adminGroup.DELETE("/invitations/:id", h.RevokeInvitation)
	}

	return r
}
