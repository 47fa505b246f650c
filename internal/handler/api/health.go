package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"RiskWatch/internal/service/notify"
	"RiskWatch/internal/usecase"
	xhttp "RiskWatch/pkg/http"
)

type HealthHandler struct {
	board *usecase.AnalysisBoard
	hub   *notify.Hub
	sinks func() []string
}

func NewHealthHandler(board *usecase.AnalysisBoard, hub *notify.Hub, sinks func() []string) *HealthHandler {
	return &HealthHandler{board: board, hub: hub, sinks: sinks}
}

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
}

type healthStatus struct {
	Status      string     `json:"status"`
	Assets      int        `json:"assets"`
	LastRefresh *time.Time `json:"lastRefresh"`
	Clients     int        `json:"clients"`
	Sinks       []string   `json:"sinks"`
}

func (h *HealthHandler) Health(c echo.Context) error {
	st := healthStatus{Status: "ok", Sinks: []string{}}
	if h.board != nil {
		st.Assets = len(h.board.All())
		if at := h.board.UpdatedAt(); !at.IsZero() {
			st.LastRefresh = &at
		}
	}
	if h.hub != nil {
		st.Clients = h.hub.Clients()
	}
	if h.sinks != nil {
		st.Sinks = h.sinks()
	}
	return xhttp.SuccessResponse(c, st)
}
