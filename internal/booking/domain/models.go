package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Booking is the rental reservation a payment settles. Only the status
// transition to paid is owned by this service; everything else belongs
// to the booking front-end.
type Booking struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    string       `json:"user_id" gorm:"type:text;not null;index"`
	VehicleID string       `json:"vehicle_id" gorm:"type:text;not null"`
	Status    Status       `json:"status" gorm:"type:text;not null;default:pending"`
	Amount    int64        `json:"amount" gorm:"not null"`
	Currency  string       `json:"currency" gorm:"type:text;not null"`
	PickupAt  *time.Time   `json:"pickup_at"`
	ReturnAt  *time.Time   `json:"return_at"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }
