package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartys-dev/chatdesk/internal/chat"
	"github.com/smartys-dev/chatdesk/internal/common"
)

type inboundReq struct {
	UserID      string    `json:"user_id" binding:"required"`
	DisplayName string    `json:"user_name"`
	PhoneNumber string    `json:"phone_number"`
	SessionID   string    `json:"session_id" binding:"required"`
	Kind        string    `json:"kind"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Timestamp   time.Time `json:"timestamp"`
}

// InboundMessage is the hook the channel workflow posts customer and AI
// messages to. It upserts the customer, records the message and fans it out
// to connected dashboards.
func (h *Handler) InboundMessage(c *gin.Context) {
	var req inboundReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}

	msg, err := h.Chat.RecordInbound(c.Request.Context(), chat.InboundMessage{
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		PhoneNumber: req.PhoneNumber,
		SessionID:   req.SessionID,
		Kind:        req.Kind,
		Content:     req.Content,
		URL:         req.URL,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"message": msg})
}

// AgentStatus lets the workflow ask whether the auto responder should
// answer for a customer before generating a reply. The flag comes from the
// store: a customer can exist before any conversation summary does.
func (h *Handler) AgentStatus(c *gin.Context) {
	enabled, err := h.Chat.AgentEnabled(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"agent_enabled": enabled})
}
