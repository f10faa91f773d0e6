// Adherence statistics HTTP handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStats godoc
// @ID          getStats
// @Summary     Adherence overview
// @Description Returns today's dose tally, the adherence rate (rounded percentage, 100 when nothing was due), and the perfect-day streak counters over the trailing window.
// @Tags        Stats
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} services.Summary
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /stats [get]
func (h *Handlers) GetStats(c *gin.Context) {
	sum, err := h.statsSvc.Summarize(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, "could not compute adherence stats")
		return
	}
	ok(c, http.StatusOK, sum)
}
