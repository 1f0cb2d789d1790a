package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem   ActorType = "system"
	ActorTypeAdmin    ActorType = "admin"
	ActorTypeCustomer ActorType = "customer"
)

const (
	CategorySecurity = "security"
	CategoryPayment  = "payment"
	CategoryRefund   = "refund"
)

// AuditLog is an append-only record of a security or money movement
// event. Rows are never updated or deleted.
type AuditLog struct {
	ID         snowflake.ID      `json:"id" gorm:"primaryKey"`
	Category   string            `json:"category" gorm:"type:text;not null"`
	Action     string            `json:"action" gorm:"type:text;not null;index"`
	ActorType  string            `json:"actor_type" gorm:"type:text;not null"`
	ActorID    *string           `json:"actor_id"`
	TargetType string            `json:"target_type" gorm:"type:text;not null"`
	TargetID   *string           `json:"target_id"`
	Metadata   datatypes.JSONMap `json:"metadata"`
	IPAddress  *string           `json:"ip_address"`
	CreatedAt  time.Time         `json:"created_at" gorm:"not null"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Event is the caller-facing shape handed to the audit sink.
type Event struct {
	Category   string
	Action     string
	ActorType  ActorType
	ActorID    string
	TargetType string
	TargetID   string
	IPAddress  string
	Metadata   map[string]any
}

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Category string
	Action   string
	TargetID string
	StartAt  *time.Time
	EndAt    *time.Time
	Cursor   *AuditCursor
	Limit    int
}
