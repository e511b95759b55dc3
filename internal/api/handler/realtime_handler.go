package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pathfinder/identity-gateway/internal/core/realtime"
)

// StatsProvider reports live gateway counts.
type StatsProvider interface {
	Stats() realtime.Stats
}

type RealtimeHandler struct {
	stats StatsProvider
}

func NewRealtimeHandler(stats StatsProvider) *RealtimeHandler {
	return &RealtimeHandler{stats: stats}
}

// Stats returns the number of live connections and rooms.
//
// @Summary      Realtime gateway stats
// @Tags         realtime
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response{data=realtime.Stats}
// @Failure      401  {object}  response
// @Failure      403  {object}  response
// @Router       /realtime/stats [get]
func (h *RealtimeHandler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, response{Success: true, Data: h.stats.Stats()})
}
