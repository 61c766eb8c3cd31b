package http

import (
	"net/http"
	"time"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
	"synccode/internal/infrastructure/middleware"
	"synccode/internal/infrastructure/monitoring"
	syncer "synccode/internal/infrastructure/sync"
	"synccode/pkg/errors"
	"synccode/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ExecuteHandler struct {
	execution ports.ExecutionService
	hub       *syncer.Hub
	metrics   *monitoring.PrometheusCollector
	logger    *zap.SugaredLogger
}

func NewExecuteHandler(
	execution ports.ExecutionService,
	hub *syncer.Hub,
	metrics *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) *ExecuteHandler {
	return &ExecuteHandler{
		execution: execution,
		hub:       hub,
		metrics:   metrics,
		logger:    logger,
	}
}

func (h *ExecuteHandler) SetupRoutes(router *gin.Engine, auth, rateLimit gin.HandlerFunc) {
	router.POST("/execute", auth, rateLimit, h.Execute)
}

func (h *ExecuteHandler) Execute(c *gin.Context) {
	// A fault in this handler must still answer in the result shape.
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("panic in execute handler", "error", r)
			c.JSON(http.StatusInternalServerError, domain.ExecutionResult{
				Error: "internal server error",
			})
			c.Abort()
		}
	}()

	session, ok := middleware.SessionFromContext(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("no session in context"))
		c.Abort()
		return
	}

	var req struct {
		Code     *string `json:"code"`
		Language string  `json:"language"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Code == nil {
		c.Error(errors.NewInvalidInputError("code is required"))
		c.Abort()
		return
	}
	if err := validation.ValidateLanguage(req.Language); err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		c.Abort()
		return
	}

	// The run is announced on the room's shared channel before the sandbox
	// starts, so every participant sees who is running. The language falls
	// back to the room's shared selection when the request leaves it out.
	channel := h.hub.Channel(session.RoomID, session.Username)
	language := req.Language
	if language == "" {
		language = channel.Language()
	}

	lease := channel.StartRun()

	start := time.Now()
	result, err := h.execution.Execute(c.Request.Context(), language, *req.Code)
	if err != nil {
		// The execution service recovers sandbox failures into the result;
		// anything surfacing here is a programming error.
		h.logger.Errorw("execution service fault", "error", err)
		c.JSON(http.StatusInternalServerError, domain.ExecutionResult{
			Error: "internal server error",
		})
		c.Abort()
		return
	}

	if h.metrics != nil {
		h.metrics.RecordExecution(language, result, time.Since(start))
	}

	if err := channel.CompleteRun(lease, *result); err == domain.ErrLeaseMismatch {
		h.logger.Infow("run superseded by a concurrent run",
			"room_id", session.RoomID,
			"triggered_by", session.Username,
		)
	}

	c.JSON(http.StatusOK, result)
}
