package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"motorent/internal/app/dto"
	bookingapp "motorent/internal/app/handlers/booking"
	"motorent/internal/app/queries"
)

type AssetHandler struct {
	Queries queries.Bus
}

func (h AssetHandler) Quote(c *gin.Context) {
	if _, ok := requireRole(c, ""); !ok {
		return
	}
	start, err := parseDate(c.Query("start_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	end, err := parseDate(c.Query("end_date"))
	if err != nil {
		writeError(c, err)
		return
	}
	q := bookingapp.QuoteQuery{AssetID: c.Param("id"), StartDate: start, EndDate: end}
	result, err := queries.Ask[bookingapp.QuoteQuery, dto.Quote](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AssetHandler) Calendar(c *gin.Context) {
	if _, ok := requireRole(c, ""); !ok {
		return
	}
	q := bookingapp.AssetCalendarQuery{AssetID: c.Param("id")}
	result, err := queries.Ask[bookingapp.AssetCalendarQuery, dto.AssetCalendar](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ AssetHTTP = AssetHandler{}
