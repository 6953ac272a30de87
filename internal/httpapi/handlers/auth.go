package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartys-dev/chatdesk/internal/auth"
	"github.com/smartys-dev/chatdesk/internal/common"
	"github.com/smartys-dev/chatdesk/internal/httpapi/middleware"
)

type signupReq struct {
	Token       string `json:"token" binding:"required"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required"`
}

// Signup redeems an invitation token, or bootstraps the first admin account
// when no users exist yet.
func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}

	u, err := h.Admin.Signup(c.Request.Context(), req.Token, req.DisplayName, req.Password)
	if err != nil {
		failFor(c, err)
		return
	}
	token, err := auth.SignJWT(u.ID, h.JWTSecret, tokenTTL)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"token": token, "user": u})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}

	u, err := h.Admin.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		failFor(c, err)
		return
	}
	token, err := auth.SignJWT(u.ID, h.JWTSecret, tokenTTL)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"token": token, "user": u})
}

func (h *Handler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := h.Admin.User(ctx, middleware.UserID(c))
	if err != nil {
		failFor(c, err)
		return
	}
	role, err := h.Admin.RoleOf(ctx, u.ID)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"user": u, "role": role})
}

// ValidateInvitation is public: the signup page checks the token before
// showing the form.
func (h *Handler) ValidateInvitation(c *gin.Context) {
	inv, err := h.Admin.ValidateToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"email": inv.Email, "expires_at": inv.ExpiresAt})
}

type resetReq struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req resetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}
	if err := h.Admin.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

type resetConfirmReq struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}
	if err := h.Admin.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		common.Fail(c, http.StatusBadRequest, 40004, err.Error())
		return
	}
	common.OK(c, nil)
}
