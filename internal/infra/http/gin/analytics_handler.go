package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	analyticsapp "motorent/internal/app/handlers/analytics"
	"motorent/internal/app/queries"
)

type AnalyticsHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type analyticsRange struct {
	From string `form:"from" json:"from"`
	To   string `form:"to" json:"to"`
}

func (h AnalyticsHandler) Summary(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	from, to, ok := h.bounds(c, analyticsRange{From: c.Query("from"), To: c.Query("to")})
	if !ok {
		return
	}
	q := analyticsapp.AnalyticsQuery{Actor: user, From: from, To: to}
	result, err := queries.Ask[analyticsapp.AnalyticsQuery, dto.Analytics](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Export takes the range from the JSON body, falling back to the query string.
func (h AnalyticsHandler) Export(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	req := analyticsRange{From: c.Query("from"), To: c.Query("to")}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	from, to, ok := h.bounds(c, req)
	if !ok {
		return
	}
	cmd := analyticsapp.ExportAnalyticsCommand{Actor: user, From: from, To: to}
	result, err := commands.Dispatch[analyticsapp.ExportAnalyticsCommand, *dto.Export](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AnalyticsHandler) bounds(c *gin.Context, r analyticsRange) (from, to time.Time, ok bool) {
	var err error
	if from, err = parseDate(r.From); err != nil {
		writeError(c, err)
		return from, to, false
	}
	if to, err = parseDate(r.To); err != nil {
		writeError(c, err)
		return from, to, false
	}
	return from, to, true
}

var _ AnalyticsHTTP = AnalyticsHandler{}
