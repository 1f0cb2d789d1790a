package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type LogType string

const (
	LogTypePayment     LogType = "payment"
	LogTypeRefund      LogType = "refund"
	LogTypeChargeback  LogType = "chargeback"
	LogTypeDispute     LogType = "dispute"
	LogTypeAuthFailure LogType = "auth_failure"
)

// Payment is the persisted record of a settled charge. Rows are never
// deleted; completed rows only ever transition to refunded, and only
// through the refund orchestrator.
type Payment struct {
	ID                   snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID               string        `json:"user_id" gorm:"type:text;not null;index"`
	BookingID            *snowflake.ID `json:"booking_id" gorm:"index"`
	Amount               int64         `json:"amount" gorm:"not null"`
	Currency             string        `json:"currency" gorm:"type:text;not null"`
	Method               string        `json:"method" gorm:"type:text;not null"`
	Status               Status        `json:"status" gorm:"type:text;not null"`
	GatewayTransactionID *string       `json:"gateway_transaction_id"`
	CreatedAt            time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt            time.Time     `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

// TransactionLog is the append-only ledger trail. One entry per
// orchestrated operation; entries are never updated.
type TransactionLog struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentID   snowflake.ID `json:"payment_id" gorm:"not null;index"`
	UserID      string       `json:"user_id" gorm:"type:text;not null"`
	Amount      int64        `json:"amount" gorm:"not null"`
	Currency    string       `json:"currency" gorm:"type:text;not null"`
	Status      Status       `json:"status" gorm:"type:text;not null"`
	Type        LogType      `json:"type" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
}

func (TransactionLog) TableName() string { return "transaction_logs" }
