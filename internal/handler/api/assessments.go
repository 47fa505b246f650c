package api

import (
	"strings"

	"github.com/labstack/echo/v4"

	models "RiskWatch/internal/domain/models"
	"RiskWatch/internal/usecase"
	xhttp "RiskWatch/pkg/http"
	xlogger "RiskWatch/pkg/logger"
)

// AssessmentsHandler serves the dashboard reads and ad-hoc scoring.
type AssessmentsHandler struct {
	logger *xlogger.Logger
	uc     *usecase.AssessmentsUseCase
}

func NewAssessmentsHandler(logger *xlogger.Logger, uc *usecase.AssessmentsUseCase) *AssessmentsHandler {
	return &AssessmentsHandler{logger: logger, uc: uc}
}

func (h *AssessmentsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/assessments", h.List)
	g.GET("/assessments/:symbol", h.Get)
	g.POST("/score", h.Score)
}

func (h *AssessmentsHandler) List(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.uc.List())
}

func (h *AssessmentsHandler) Get(c echo.Context) error {
	req := &models.AssessmentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.uc.Get(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, appError(err))
	}
	return xhttp.SuccessResponse(c, st)
}

// Score assesses the posted snapshot without publishing it to the board.
func (h *AssessmentsHandler) Score(c echo.Context) error {
	snap := &models.Snapshot{}
	if err := c.Bind(snap); err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{Code: "ERR_BAD_REQUEST", Message: err.Error()}})
	}
	snap.Symbol = strings.ToUpper(strings.TrimSpace(snap.Symbol))
	if snap.Symbol == "" {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code:    "ERR_REQUIRED",
			Field:   "symbol",
			Message: "symbol is required",
		}})
	}
	st := h.uc.Score(c.Request().Context(), *snap)
	h.logger.Debug("ad-hoc score",
		xlogger.String("symbol", st.Symbol),
		xlogger.String("level", string(st.Assessment.Level)))
	return xhttp.SuccessResponse(c, st)
}
