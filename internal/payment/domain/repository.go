package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository methods take the database handle so writes compose into a
// caller-owned transaction.
type Repository interface {
	CreatePayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindPayment(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	MarkBookingPaid(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (int64, error)
	AppendTransactionLog(ctx context.Context, db *gorm.DB, entry *TransactionLog) error
	LastPaymentAt(ctx context.Context, db *gorm.DB, userID string) (*time.Time, error)
	CountChargebacks(ctx context.Context, db *gorm.DB, userID string) (int64, error)
}
