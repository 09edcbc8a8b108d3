package models

import "time"

// CheckoutState is the state of a single checkout attempt.
type CheckoutState string

const (
	CheckoutIdle                   CheckoutState = "idle"
	CheckoutPendingExternalPayment CheckoutState = "pending_external_payment"
	CheckoutSubmitting             CheckoutState = "submitting"
	CheckoutSucceeded              CheckoutState = "succeeded"
	CheckoutFailed                 CheckoutState = "failed"
)

// CheckoutSession holds everything loaded at checkout entry. Cart and address
// are loaded once and not re-read mid-workflow.
type CheckoutSession struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	State         CheckoutState    `json:"state"`
	Lines         []CartLine       `json:"lines"`
	Unresolved    []UnresolvedItem `json:"unresolved,omitempty"`
	Address       *ShippingAddress `json:"address,omitempty"`
	AddressSource string           `json:"address_source,omitempty"`
	PaymentMethod PaymentMethod    `json:"payment_method,omitempty"`
	Subtotal      int64            `json:"subtotal"`
	ShippingFee   int64            `json:"shipping_fee"`
	Total         int64            `json:"total"`
	Receipt       *Receipt         `json:"receipt,omitempty"`
	Commit        *PendingCommit   `json:"commit,omitempty"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PendingCommit names the remote records a commit in flight may have written.
// It is saved before the first write and cleared once the commit settles.
type PendingCommit struct {
	CommitID     string    `json:"commit_id"`
	OrderID      string    `json:"order_id"`
	ShipmentCode string    `json:"shipment_code"`
	StartedAt    time.Time `json:"started_at"`
}

// Receipt is handed to the caller after a successful commit.
type Receipt struct {
	CommitID     string          `json:"commit_id"`
	OrderID      string          `json:"order_id"`
	ShipmentCode string          `json:"shipment_code"`
	Lines        []CartLine      `json:"lines"`
	Address      ShippingAddress `json:"address"`
	Subtotal     int64           `json:"subtotal"`
	ShippingFee  int64           `json:"shipping_fee"`
	Total        int64           `json:"total"`
	Status       string          `json:"status"`
	CartCleared  bool            `json:"cart_cleared"`
	PlacedAt     time.Time       `json:"placed_at"`
}
