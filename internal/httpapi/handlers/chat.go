package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartys-dev/chatdesk/internal/common"
)

// ListConversations returns the aggregated summary rows.
func (h *Handler) ListConversations(c *gin.Context) {
	common.OK(c, gin.H{"conversations": h.Chat.Conversations()})
}

// SelectConversation makes the customer the active conversation and returns
// its full history.
func (h *Handler) SelectConversation(c *gin.Context) {
	sum, msgs, err := h.Chat.Select(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"conversation": sum, "messages": msgs})
}

// LoadPreviousMessages pages older history into the active conversation.
func (h *Handler) LoadPreviousMessages(c *gin.Context) {
	page, err := h.Chat.LoadPrevious(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"messages": page, "has_more": len(page) > 0})
}

type replyReq struct {
	Message string `json:"message" binding:"required"`
}

// SendReply stores a support reply and queues delivery to the customer's
// channel. When delivery cannot be queued the stored message still comes
// back, alongside the error envelope.
func (h *Handler) SendReply(c *gin.Context) {
	var req replyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}

	msg, err := h.Chat.SendReply(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		if msg != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"code":    50201,
				"message": err.Error(),
				"data":    gin.H{"message": msg},
			})
			return
		}
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"message": msg})
}

type templateReq struct {
	TemplateName string `json:"template_name" binding:"required"`
}

// SendTemplate queues a channel template send, used to re-open conversations
// outside the messaging window.
func (h *Handler) SendTemplate(c *gin.Context) {
	var req templateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}
	if err := h.Chat.SendTemplate(c.Request.Context(), c.Param("id"), req.TemplateName); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, nil)
}

type agentReq struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetAgentEnabled flips the auto-responder flag for one customer.
func (h *Handler) SetAgentEnabled(c *gin.Context) {
	var req agentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}
	if err := h.Chat.SetAgentEnabled(c.Request.Context(), c.Param("id"), *req.Enabled); err != nil {
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"agent_enabled": *req.Enabled})
}

// ExportTranscript streams the conversation as a plain text download.
func (h *Handler) ExportTranscript(c *gin.Context) {
	text, err := h.Chat.ExportTranscript(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFor(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="chat-`+c.Param("id")+`.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}
