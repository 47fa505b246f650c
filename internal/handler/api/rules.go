package api

import (
	"github.com/labstack/echo/v4"

	models "RiskWatch/internal/domain/models"
	"RiskWatch/internal/usecase"
	xhttp "RiskWatch/pkg/http"
	xlogger "RiskWatch/pkg/logger"
)

// RulesHandler exposes watch rule CRUD to the configuration UI.
type RulesHandler struct {
	logger *xlogger.Logger
	uc     *usecase.RulesUseCase
}

func NewRulesHandler(logger *xlogger.Logger, uc *usecase.RulesUseCase) *RulesHandler {
	return &RulesHandler{logger: logger, uc: uc}
}

func (h *RulesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/rules")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *RulesHandler) List(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.uc.List(c.Request().Context()))
}

func (h *RulesHandler) Get(c echo.Context) error {
	req := &models.IDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := h.uc.Get(c.Request().Context(), req.ID)
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *RulesHandler) Create(c echo.Context) error {
	req := &models.CreateRuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := h.uc.Create(c.Request().Context(), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	h.logger.Info("watch rule created", xlogger.String("id", r.ID), xlogger.String("name", r.Name))
	return xhttp.CreatedResponse(c, r)
}

func (h *RulesHandler) Update(c echo.Context) error {
	req := &models.UpdateRuleRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	r, err := h.uc.Update(c.Request().Context(), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, r)
}

func (h *RulesHandler) Delete(c echo.Context) error {
	req := &models.IDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.uc.Delete(c.Request().Context(), req.ID); err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	h.logger.Info("watch rule deleted", xlogger.String("id", req.ID))
	return xhttp.NoContentResponse(c)
}
