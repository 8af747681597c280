package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	bookingapp "motorent/internal/app/handlers/booking"
	paymentapp "motorent/internal/app/handlers/payments"
	"motorent/internal/app/queries"
	"motorent/internal/domain/identity"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	AssetID   string `json:"asset_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (h BookingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, identity.RoleTaker)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(c, err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(c, err)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		BookingID:       generateBookingID(),
		Actor:           user,
		AssetID:         req.AssetID,
		StartDate:       start,
		EndDate:         end,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.BookingStatus](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) List(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := bookingapp.ListBookingsQuery{Actor: user, Scope: c.Query("scope")}
	result, err := queries.Ask[bookingapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result.Items)
}

func (h BookingHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	q := bookingapp.GetBookingQuery{Actor: user, BookingID: c.Param("id")}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	cmd := bookingapp.CancelBookingCommand{Actor: user, BookingID: c.Param("id")}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *dto.BookingTransition](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) CreateOrder(c *gin.Context) {
	user, ok := requireRole(c, identity.RoleTaker)
	if !ok {
		return
	}
	cmd := paymentapp.CreateOrderCommand{Actor: user, BookingID: c.Param("id")}
	result, err := commands.Dispatch[paymentapp.CreateOrderCommand, *dto.PaymentOrder](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func generateBookingID() string {
	return uuid.NewString()
}

var _ BookingHTTP = BookingHandler{}
