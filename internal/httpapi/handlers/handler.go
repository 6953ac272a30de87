package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/smartys-dev/chatdesk/internal/admin"
	"github.com/smartys-dev/chatdesk/internal/chat"
	"github.com/smartys-dev/chatdesk/internal/common"
	"github.com/smartys-dev/chatdesk/internal/i18n"
	"github.com/smartys-dev/chatdesk/internal/realtime"
	"github.com/smartys-dev/chatdesk/internal/upload"
)

const tokenTTL = 24 * time.Hour

// Handler carries every dependency the HTTP layer needs; construction wires
// them once in main.
type Handler struct {
	Chat       *chat.Service
	Admin      *admin.Service
	Upload     *upload.Service
	Hub        *realtime.Hub
	Translator *i18n.Translator
	JWTSecret  string
}

func NewHandler(chatSvc *chat.Service, adminSvc *admin.Service, uploadSvc *upload.Service, hub *realtime.Hub, tr *i18n.Translator, jwtSecret string) *Handler {
	return &Handler{
		Chat:       chatSvc,
		Admin:      adminSvc,
		Upload:     uploadSvc,
		Hub:        hub,
		Translator: tr,
		JWTSecret:  jwtSecret,
	}
}

// failFor maps service errors onto the response envelope.
func failFor(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "not found")
	case errors.Is(err, chat.ErrNotSelected), errors.Is(err, chat.ErrNoActiveSession):
		common.Fail(c, http.StatusConflict, 40901, err.Error())
	case errors.Is(err, chat.ErrDeliveryNotQueued):
		common.Fail(c, http.StatusBadGateway, 50201, err.Error())
	case errors.Is(err, admin.ErrSelfDelete):
		common.Fail(c, http.StatusBadRequest, 40002, err.Error())
	case errors.Is(err, admin.ErrEmailTaken):
		common.Fail(c, http.StatusConflict, 40902, err.Error())
	case errors.Is(err, admin.ErrInvalidInvitation), errors.Is(err, admin.ErrInvitationClosed):
		common.Fail(c, http.StatusBadRequest, 40003, err.Error())
	case errors.Is(err, admin.ErrBadCredentials):
		common.Fail(c, http.StatusUnauthorized, 40102, err.Error())
	case errors.Is(err, upload.ErrFileTooLarge):
		common.Fail(c, http.StatusRequestEntityTooLarge, 41301, err.Error())
	case errors.Is(err, upload.ErrUnsupportedType):
		common.Fail(c, http.StatusUnsupportedMediaType, 41501, err.Error())
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "internal server error")
	}
}
