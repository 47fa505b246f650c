package api

import (
	"github.com/labstack/echo/v4"

	models "RiskWatch/internal/domain/models"
	"RiskWatch/internal/service/notify"
	"RiskWatch/internal/usecase"
	xhttp "RiskWatch/pkg/http"
	xlogger "RiskWatch/pkg/logger"
)

// NotificationsHandler serves the notification history and the live websocket stream.
type NotificationsHandler struct {
	logger *xlogger.Logger
	uc     *usecase.NotificationsUseCase
	hub    *notify.Hub
}

func NewNotificationsHandler(logger *xlogger.Logger, uc *usecase.NotificationsUseCase, hub *notify.Hub) *NotificationsHandler {
	return &NotificationsHandler{logger: logger, uc: uc, hub: hub}
}

func (h *NotificationsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/notifications")
	g.GET("", h.List)
	g.POST("/read-all", h.MarkAllRead)
	g.POST("/:id/read", h.MarkRead)
	g.DELETE("", h.Clear)

	if h.hub != nil {
		e.GET("/ws/notifications", h.hub.Serve)
	}
}

func (h *NotificationsHandler) List(c echo.Context) error {
	req := &models.ListNotificationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.uc.List(c.Request().Context(), req.Unread, req.Limit))
}

func (h *NotificationsHandler) MarkRead(c echo.Context) error {
	req := &models.IDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.uc.MarkRead(c.Request().Context(), req.ID); err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.NoContentResponse(c)
}

func (h *NotificationsHandler) MarkAllRead(c echo.Context) error {
	n := h.uc.MarkAllRead(c.Request().Context())
	return xhttp.SuccessResponse(c, map[string]int{"marked": n})
}

func (h *NotificationsHandler) Clear(c echo.Context) error {
	h.uc.Clear(c.Request().Context())
	h.logger.Info("notification history cleared")
	return xhttp.NoContentResponse(c)
}
