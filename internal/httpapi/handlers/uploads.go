package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartys-dev/chatdesk/internal/common"
)

// SendFileMessage accepts a multipart attachment, stores it and sends it
// into the selected conversation.
func (h *Handler) SendFileMessage(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "missing file field")
		return
	}

	f, err := fh.Open()
	if err != nil {
		failFor(c, err)
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	fileURL, err := h.Upload.Upload(c.Request.Context(), fh.Filename, fh.Size, contentType, f)
	if err != nil {
		failFor(c, err)
		return
	}

	msg, err := h.Chat.SendFile(c.Request.Context(), c.Param("id"), fileURL, fh.Filename, contentType, fh.Size)
	if err != nil {
		if msg != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"code":    50201,
				"message": err.Error(),
				"data":    gin.H{"message": msg, "file_url": fileURL},
			})
			return
		}
		failFor(c, err)
		return
	}
	common.OK(c, gin.H{"message": msg, "file_url": fileURL})
}
