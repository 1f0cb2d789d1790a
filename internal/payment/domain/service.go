package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ProcessPaymentRequest is built by the HTTP layer; request-scoped
// values (IP, actor) arrive explicitly, never from ambient state.
type ProcessPaymentRequest struct {
	UserID    string
	BookingID snowflake.ID
	Amount    int64
	Currency  string
	Method    string
	Email     string

	AttemptCount     int
	BillingCountry   string
	ShippingCountry  string
	CardCountry      string
	UserCountry      string
	Location         string
	ExpectedLocation string
	MinutesSinceLast *int
	IPIsProxy        bool
	DeviceChanged    bool

	IPAddress string
	ActorID   string
}

type PaymentResult struct {
	Status    string       `json:"status"`
	PaymentID snowflake.ID `json:"payment_id"`
	Message   string       `json:"message"`
}

// Service orchestrates one payment attempt as an all-or-nothing unit
// gated by fraud scoring.
type Service interface {
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*PaymentResult, error)
	GetPayment(ctx context.Context, id snowflake.ID) (*Payment, error)
}

var (
	ErrInvalidPaymentData = errors.New("invalid_payment_data")
	ErrFraudRejected      = errors.New("fraud_rejected")
	ErrProcessingFailed   = errors.New("payment_processing_failed")
	ErrPaymentNotFound    = errors.New("payment_not_found")
)

// FraudRejectedError reports the gate decision with the fired
// indicator names, safe to show to operators.
type FraudRejectedError struct {
	Score      int
	Level      string
	Indicators []string
}

func (e *FraudRejectedError) Error() string {
	return fmt.Sprintf("payment rejected by fraud screening (score %d, level %s): %s",
		e.Score, e.Level, strings.Join(e.Indicators, ", "))
}

func (e *FraudRejectedError) Is(target error) bool {
	return target == ErrFraudRejected
}

// ProcessingError wraps a failure inside the transactional scope after
// the fraud gate passed. The rollback has already completed by the
// time callers see it.
type ProcessingError struct {
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("payment processing failed: %v", e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessingFailed
}
