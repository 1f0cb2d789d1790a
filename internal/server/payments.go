package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/drivelane/paycore/internal/payment/domain"
	refunddomain "github.com/drivelane/paycore/internal/refund/domain"
	"github.com/gin-gonic/gin"
)

type createPaymentRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount" binding:"required"`
	Currency  string `json:"currency" binding:"required"`
	Method    string `json:"method" binding:"required"`
	Email     string `json:"email"`

	AttemptCount     int    `json:"attempt_count"`
	BillingCountry   string `json:"billing_country"`
	ShippingCountry  string `json:"shipping_country"`
	CardCountry      string `json:"card_country"`
	UserCountry      string `json:"user_country"`
	Location         string `json:"location"`
	ExpectedLocation string `json:"expected_location"`
	MinutesSinceLast *int   `json:"minutes_since_last_transaction"`
	IPIsProxy        bool   `json:"ip_is_proxy"`
	DeviceChanged    bool   `json:"device_changed"`
}

func (s *Server) CreatePayment(c *gin.Context) {
	var body createPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var bookingID snowflake.ID
	if raw := strings.TrimSpace(body.BookingID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("booking_id", "invalid_booking_id", "invalid booking_id"))
			return
		}
		bookingID = parsed
	}

	result, err := s.paymentSvc.ProcessPayment(c.Request.Context(), paymentdomain.ProcessPaymentRequest{
		UserID:           body.UserID,
		BookingID:        bookingID,
		Amount:           body.Amount,
		Currency:         body.Currency,
		Method:           body.Method,
		Email:            body.Email,
		AttemptCount:     body.AttemptCount,
		BillingCountry:   body.BillingCountry,
		ShippingCountry:  body.ShippingCountry,
		CardCountry:      body.CardCountry,
		UserCountry:      body.UserCountry,
		Location:         body.Location,
		ExpectedLocation: body.ExpectedLocation,
		MinutesSinceLast: body.MinutesSinceLast,
		IPIsProxy:        body.IPIsProxy,
		DeviceChanged:    body.DeviceChanged,
		IPAddress:        clientIP(c),
		ActorID:          actorID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (s *Server) GetPayment(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_payment_id", "invalid payment id"))
		return
	}

	payment, err := s.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

type createRefundRequest struct {
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason"`
	InitiatedBy string `json:"initiated_by" binding:"required"`
}

func (s *Server) CreateRefund(c *gin.Context) {
	paymentID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_payment_id", "invalid payment id"))
		return
	}

	var body createRefundRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.refundSvc.ProcessRefund(c.Request.Context(), refunddomain.RefundRequest{
		PaymentID:   paymentID,
		Amount:      body.Amount,
		Reason:      body.Reason,
		InitiatedBy: refunddomain.InitiatedBy(strings.ToLower(strings.TrimSpace(body.InitiatedBy))),
		IPAddress:   clientIP(c),
		ActorID:     actorID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
