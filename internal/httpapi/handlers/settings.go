package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartys-dev/chatdesk/internal/common"
	"github.com/smartys-dev/chatdesk/internal/i18n"
)

func (h *Handler) GetLanguage(c *gin.Context) {
	lang := h.Translator.Language()
	common.OK(c, gin.H{"language": lang, "catalog": i18n.Catalog(lang)})
}

type languageReq struct {
	Language string `json:"language" binding:"required"`
}

func (h *Handler) SetLanguage(c *gin.Context) {
	var req languageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json body")
		return
	}
	if !h.Translator.SetLanguage(req.Language) {
		common.Fail(c, http.StatusBadRequest, 40005, "unsupported language")
		return
	}
	common.OK(c, gin.H{"language": req.Language, "catalog": i18n.Catalog(req.Language)})
}
