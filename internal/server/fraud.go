package server

import (
	"net/http"

	frauddomain "github.com/drivelane/paycore/internal/fraud/domain"
	"github.com/gin-gonic/gin"
)

type fraudCheckRequest struct {
	Amount    int64  `json:"amount" binding:"required"`
	Currency  string `json:"currency"`
	UserID    string `json:"user_id"`
	BookingID string `json:"booking_id"`

	AttemptCount     int    `json:"attempt_count"`
	Location         string `json:"location"`
	ExpectedLocation string `json:"expected_location"`
	BillingCountry   string `json:"billing_country"`
	ShippingCountry  string `json:"shipping_country"`
	CardCountry      string `json:"card_country"`
	UserCountry      string `json:"user_country"`
	MinutesSinceLast *int   `json:"minutes_since_last_transaction"`
	HourOfDay        *int   `json:"hour_of_day"`
	IPIsProxy        bool   `json:"ip_is_proxy"`
	DeviceChanged    bool   `json:"device_changed"`
	Email            string `json:"email"`

	RecentAttempts   int    `json:"recent_attempts"`
	IPReputation     string `json:"ip_reputation"`
	PriorChargebacks int    `json:"prior_chargebacks"`

	Extra map[string]any `json:"extra"`
}

// CheckFraud runs a standalone risk assessment without touching the
// payment path. Useful for pre-screening and operator tooling.
func (s *Server) CheckFraud(c *gin.Context) {
	var body fraudCheckRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	assessment := s.fraudSvc.Analyze(c.Request.Context(), frauddomain.Attributes{
		Amount:           body.Amount,
		Currency:         body.Currency,
		UserID:           body.UserID,
		BookingID:        body.BookingID,
		AttemptCount:     body.AttemptCount,
		Location:         body.Location,
		ExpectedLocation: body.ExpectedLocation,
		BillingCountry:   body.BillingCountry,
		ShippingCountry:  body.ShippingCountry,
		CardCountry:      body.CardCountry,
		UserCountry:      body.UserCountry,
		MinutesSinceLast: body.MinutesSinceLast,
		HourOfDay:        body.HourOfDay,
		IPIsProxy:        body.IPIsProxy,
		DeviceChanged:    body.DeviceChanged,
		Email:            body.Email,
		IPAddress:        clientIP(c),
		RecentAttempts:   body.RecentAttempts,
		IPReputation:     body.IPReputation,
		PriorChargebacks: body.PriorChargebacks,
		Extra:            body.Extra,
	})

	c.JSON(http.StatusOK, gin.H{
		"indicators":     assessment.Indicators.Names(),
		"score":          assessment.Score,
		"level":          assessment.Level,
		"recommendation": assessment.Recommendation,
		"degraded":       assessment.Degraded,
	})
}
