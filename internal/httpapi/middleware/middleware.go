package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartys-dev/chatdesk/internal/auth"
	"github.com/smartys-dev/chatdesk/internal/common"
	"github.com/smartys-dev/chatdesk/internal/models"
)

// UserIDKey is where AuthRequired stores the authenticated user id.
const UserIDKey = "user_id"

// RequestID tags every request, echoing a caller-supplied id when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			if v, err := common.NewULID(); err == nil {
				id = v
			}
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// Recovery turns panics into the standard error envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		log.Printf("panic recovered: %v", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal server error")
	})
}

// AuthRequired validates the bearer token and stores the user id in the
// context. Websocket clients cannot set headers, so a token query
// parameter is accepted as a fallback.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		} else if q := c.Query("token"); q != "" {
			token = q
		}
		if token == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "missing token")
			c.Abort()
			return
		}
		userID, err := auth.ParseJWT(token, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid token")
			c.Abort()
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID reads the authenticated user id set by AuthRequired.
func UserID(c *gin.Context) uint64 {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(uint64)
	return id
}

// RoleLookup resolves a user's role; the admin service provides it.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID uint64) (string, error)
}

// AdminRequired allows only users whose stored role is admin. The role is
// looked up per request, never trusted from the token.
func AdminRequired(roles RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := roles.RoleOf(c.Request.Context(), UserID(c))
		if err != nil || role != models.RoleAdmin {
			common.Fail(c, http.StatusForbidden, 40301, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}
