package http

import (
	"net/http"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
	"synccode/internal/infrastructure/middleware"
	"synccode/internal/infrastructure/monitoring"
	"synccode/pkg/errors"
	"synccode/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SessionHandler struct {
	sessions ports.SessionService
	metrics  *monitoring.PrometheusCollector
	logger   *zap.SugaredLogger
}

func NewSessionHandler(
	sessions ports.SessionService,
	metrics *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	router.POST("/session", h.CreateSession)
	router.POST("/invite", auth, h.CreateInvite)
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		RoomID        string `json:"roomId"`
		Username      string `json:"username"`
		BrowserID     string `json:"browserId"`
		RequestedRole string `json:"requestedRole"`
		InviteToken   string `json:"inviteToken"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateRoomID(req.RoomID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		c.Abort()
		return
	}
	if err := validation.ValidateUsername(req.Username); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		c.Abort()
		return
	}
	if err := validation.ValidateBrowserID(req.BrowserID); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		c.Abort()
		return
	}

	session, err := h.sessions.Join(c.Request.Context(), ports.JoinRequest{
		RoomID:        domain.RoomID(req.RoomID),
		Username:      req.Username,
		BrowserID:     domain.BrowserID(req.BrowserID),
		RequestedRole: domain.Role(req.RequestedRole),
		InviteToken:   req.InviteToken,
	})
	if err != nil {
		c.Error(errors.NewInternalError(err.Error()))
		c.Abort()
		return
	}

	if h.metrics != nil {
		h.metrics.RecordSessionIssued(session.Role)
	}

	c.JSON(http.StatusOK, gin.H{
		"token": session.Token,
		"role":  session.Role,
	})
}

func (h *SessionHandler) CreateInvite(c *gin.Context) {
	session, ok := middleware.SessionFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("no session in context"))
		c.Abort()
		return
	}

	var req struct {
		RoomID string `json:"roomId"`
		Role   string `json:"role"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.sessions.IssueInvite(c.Request.Context(), session, domain.RoomID(req.RoomID), domain.Role(req.Role))
	if err != nil {
		switch err {
		case domain.ErrNotInterviewer, domain.ErrRoomMismatch:
			c.Error(errors.NewForbiddenError(err.Error()))
		case domain.ErrUnsupportedRole:
			c.Error(errors.NewInvalidInputError(err.Error()))
		default:
			c.Error(errors.NewInternalError(err.Error()))
		}
		c.Abort()
		return
	}

	if h.metrics != nil {
		h.metrics.RecordInviteIssued()
	}

	c.JSON(http.StatusOK, gin.H{
		"inviteToken": token,
	})
}
