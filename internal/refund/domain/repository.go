package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods take the database handle so writes compose into a
// caller-owned transaction.
type Repository interface {
	CreateRefund(ctx context.Context, db *gorm.DB, refund *Refund) error
	// MarkPaymentRefunded flips a payment from completed to refunded
	// and reports how many rows matched. Zero rows means another
	// refund won the race or the payment was never completed.
	MarkPaymentRefunded(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error)
	// ReleaseRefundClaim undoes MarkPaymentRefunded when the gateway
	// call fails, flipping the payment back to completed.
	ReleaseRefundClaim(ctx context.Context, db *gorm.DB, paymentID snowflake.ID) (int64, error)
}
