package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderPlacedEvent is published after a checkout commit succeeds.
type OrderPlacedEvent struct {
	EventType     string    `json:"event_type"`
	CommitID      string    `json:"commit_id"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	ShipmentCode  string    `json:"shipment_code"`
	PaymentMethod string    `json:"payment_method"`
	Total         int64     `json:"total"` // minor units
	CartCleared   bool      `json:"cart_cleared"`
	Timestamp     time.Time `json:"timestamp"`
}

// OrderCanceledEvent is published after a customer cancels an order.
type OrderCanceledEvent struct {
	EventType string    `json:"event_type"`
	OrderID   string    `json:"order_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Commit step outcomes.
const (
	StepSucceeded   = "succeeded"
	StepFailed      = "failed"
	StepCompensated = "compensated"
	StepCompFailed  = "compensation_failed"
)

// CommitStep is one row of the checkout step log persisted in Postgres.
type CommitStep struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CommitID  string         `gorm:"type:varchar(64);not null;index" json:"commit_id"`
	SessionID string         `gorm:"type:varchar(64);index" json:"session_id"`
	UserID    string         `gorm:"type:varchar(128);not null;index" json:"user_id"`
	Step      string         `gorm:"type:varchar(64);not null" json:"step"`
	Attempt   int            `gorm:"not null;default:1" json:"attempt"`
	Outcome   string         `gorm:"type:varchar(32);not null" json:"outcome"`
	Detail    string         `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
