package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AnalyticsSummary godoc
// @ID          analyticsSummary
// @Summary     Delivery analytics
// @Description Totals per status, delivery and read rates (percent), and per-day
// @Description activity for the last 7 days.
// @Tags        Analytics
// @Produce     json
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Success     200  {object}  handlers.SuccessResponse{data=services.Analytics}
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /analytics/summary [get]
func (h *Handlers) AnalyticsSummary(c *gin.Context) {
	a, err := h.analyticsSvc.Summary(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	success(c, "", a)
}
