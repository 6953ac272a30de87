package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/smartys-dev/chatdesk/internal/common"
	"github.com/smartys-dev/chatdesk/internal/httpapi/middleware"
)

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Admin.ListUsers(c.Request.Context())
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"users": users})
}

// DeleteUser removes an account. The target id is compared against the
// authenticated admin, not anything the request body claims.
func (h *Handler) DeleteUser(c *gin.Context) {
	targetID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "invalid user id")
		return
	}
	if err := h.Admin.DeleteUser(c.Request.Context(), middleware.UserID(c), targetID); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

func (h *Handler) ListInvitations(c *gin.Context) {
	invs, err := h.Admin.ListInvitations(c.Request.Context())
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"invitations": invs})
}

type inviteReq struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) CreateInvitation(c *gin.Context) {
	var req inviteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}
	res, err := h.Admin.Invite(c.Request.Context(), middleware.UserID(c), req.Email)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) ResendInvitation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "invalid invitation id")
		return
	}
	res, err := h.Admin.Resend(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, res)
}

func (h *Handler) RevokeInvitation(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10003, "invalid invitation id")
		return
	}
	if err := h.Admin.Revoke(c.Request.Context(), id); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}
