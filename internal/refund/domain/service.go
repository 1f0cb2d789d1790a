package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// RefundRequest is built by the HTTP layer. Amount is minor units; a
// zero amount means "refund the full payment".
type RefundRequest struct {
	PaymentID   snowflake.ID
	Amount      int64
	Reason      string
	InitiatedBy InitiatedBy

	IPAddress string
	ActorID   string
}

type RefundResult struct {
	Status   string       `json:"status"`
	RefundID snowflake.ID `json:"refund_id"`
	Amount   int64        `json:"amount"`
	Message  string       `json:"message"`
}

// Service executes one refund as an all-or-nothing unit. A payment can
// be refunded at most once regardless of concurrent callers.
type Service interface {
	ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

var (
	ErrInvalidRefundData = errors.New("invalid_refund_data")
	ErrRefundNotEligible = errors.New("refund_not_eligible")
	ErrProcessingFailed  = errors.New("refund_processing_failed")
)

// ProcessingError wraps a failure after eligibility passed. Any
// partial writes have been rolled back by the time callers see it.
type ProcessingError struct {
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("refund processing failed: %v", e.Cause)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

func (e *ProcessingError) Is(target error) bool {
	return target == ErrProcessingFailed
}
