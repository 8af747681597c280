package ginserver

import (
	"net/http"

	gin "github.com/gin-gonic/gin"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	paymentapp "motorent/internal/app/handlers/payments"
)

// PaymentHandler accepts the client-relayed gateway callback. The signature
// authenticates it, so no bearer token is required.
type PaymentHandler struct {
	Commands commands.Bus
}

type verifyPaymentRequest struct {
	OrderRef   string `json:"order_ref"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"signature"`
}

func (h PaymentHandler) Verify(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := paymentapp.VerifyPaymentCommand{OrderRef: req.OrderRef, PaymentRef: req.PaymentRef, Signature: req.Signature}
	result, err := commands.Dispatch[paymentapp.VerifyPaymentCommand, *dto.BookingTransition](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PaymentHTTP = PaymentHandler{}
