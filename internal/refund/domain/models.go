package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InitiatedBy records which side of the counter asked for the refund.
type InitiatedBy string

const (
	InitiatedByAdmin    InitiatedBy = "admin"
	InitiatedByCustomer InitiatedBy = "customer"
)

type Status string

const (
	StatusRefunded Status = "refunded"
)

// Refund is the persisted record of a completed refund. A payment has
// at most one; partial refunds consume the whole eligibility.
type Refund struct {
	ID              snowflake.ID `json:"id" gorm:"primaryKey"`
	PaymentID       snowflake.ID `json:"payment_id" gorm:"not null;uniqueIndex"`
	Amount          int64        `json:"amount" gorm:"not null"`
	Currency        string       `json:"currency" gorm:"type:text;not null"`
	Reason          string       `json:"reason" gorm:"type:text;not null;default:''"`
	InitiatedBy     InitiatedBy  `json:"initiated_by" gorm:"type:text;not null"`
	Status          Status       `json:"status" gorm:"type:text;not null"`
	GatewayRefundID *string      `json:"gateway_refund_id"`
	CreatedAt       time.Time    `json:"created_at" gorm:"not null"`
}

func (Refund) TableName() string { return "refunds" }
