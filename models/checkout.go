package models

import "time"

// Product is catalog reference data. Price is in minor units of the base currency.
type Product struct {
	ID          FlexID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	Image       string `json:"image,omitempty"`
}

// ProductRef is one (product, quantity) pair inside a raw cart entry.
type ProductRef struct {
	ProductID FlexID   `json:"idProduct"`
	Quantity  Quantity `json:"quantity"`
}

// CartEntry is a raw cart record as stored by the backend.
type CartEntry struct {
	ID       FlexID       `json:"id"`
	UserID   FlexID       `json:"userId"`
	Products []ProductRef `json:"productId"`
}

// CartLine is a cart entry reference resolved against the catalog.
type CartLine struct {
	CartEntryID string  `json:"cart_entry_id"`
	Product     Product `json:"product"`
	Quantity    int     `json:"quantity"`
}

// LineTotal is the line price in minor units.
func (l CartLine) LineTotal() int64 {
	return l.Product.Price * int64(l.Quantity)
}

// Unresolved reasons.
const (
	UnresolvedNotFound        = "not_found"
	UnresolvedMalformed       = "malformed"
	UnresolvedInvalidQuantity = "invalid_quantity"
	UnresolvedFetchFailed     = "fetch_failed"
)

// UnresolvedItem is a cart reference that could not be turned into a CartLine.
type UnresolvedItem struct {
	CartEntryID string `json:"cart_entry_id"`
	ProductID   string `json:"product_id"`
	Reason      string `json:"reason"`
	Detail      string `json:"detail,omitempty"`
}

// CartReport is the outcome of aggregating a cart.
type CartReport struct {
	Lines      []CartLine       `json:"lines"`
	Unresolved []UnresolvedItem `json:"unresolved,omitempty"`
}

// Subtotal sums all resolved lines in minor units.
func (r *CartReport) Subtotal() int64 {
	var total int64
	for _, l := range r.Lines {
		total += l.LineTotal()
	}
	return total
}

// ShippingAddress is the address a shipment is sent to.
type ShippingAddress struct {
	ID       FlexID `json:"id,omitempty"`
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone,omitempty"`
	Street   string `json:"street" validate:"required"`
	District string `json:"district,omitempty"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country" validate:"required"`
	Zipcode  string `json:"zipcode,omitempty"`
	UserID   FlexID `json:"userId,omitempty"`
}

// ProfileAddress is the address nested in a user profile.
type ProfileAddress struct {
	Street   string `json:"street"`
	District string `json:"district,omitempty"`
	City     string `json:"city"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country"`
	Zipcode  string `json:"zipcode"`
}

// UserProfile is the subset of the backend user record checkout needs.
type UserProfile struct {
	ID       FlexID          `json:"id"`
	FullName string          `json:"fullname"`
	Phone    string          `json:"phone,omitempty"`
	Address  *ProfileAddress `json:"address,omitempty"`
	OrderIDs []string        `json:"order_id"`
}

// ShippingAddress converts the stored profile address, or returns nil when there is none.
func (u *UserProfile) ShippingAddress() *ShippingAddress {
	if u == nil || u.Address == nil {
		return nil
	}
	return &ShippingAddress{
		FullName: u.FullName,
		Phone:    u.Phone,
		Street:   u.Address.Street,
		District: u.Address.District,
		City:     u.Address.City,
		State:    u.Address.State,
		Country:  u.Address.Country,
		Zipcode:  u.Address.Zipcode,
	}
}

// Address sources reported back to the client.
const (
	AddressSourceSelection = "selection"
	AddressSourceProfile   = "profile"
)

// PaymentMethod tags how an order is paid.
type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "cod"
	PaymentPayPal PaymentMethod = "paypal"
)

// Valid reports whether the method is supported.
func (p PaymentMethod) Valid() bool {
	return p == PaymentCOD || p == PaymentPayPal
}

// RequiresExternalApproval is true for methods confirmed out of process.
func (p PaymentMethod) RequiresExternalApproval() bool {
	return p == PaymentPayPal
}

// Order status constants.
const (
	OrderStatusProcessing = "processing"
	OrderStatusPaid       = "paid"
	OrderStatusDelivered  = "delivered"
	OrderStatusCanceled   = "canceled"
)

// InitialOrderStatus is processing for cash on delivery, paid otherwise.
func InitialOrderStatus(method PaymentMethod) string {
	if method == PaymentCOD {
		return OrderStatusProcessing
	}
	return OrderStatusPaid
}

// Order is the order record submitted to the backend. Money fields are major units of the base currency.
type Order struct {
	ID            string      `json:"id"`
	OrderID       string      `json:"order_id"`
	UserID        string      `json:"user_id"`
	OrderDate     time.Time   `json:"order_date"`
	Items         []OrderItem `json:"items"`
	TotalAmount   float64     `json:"total_amount"`
	ShippingFee   float64     `json:"shipping_fee"`
	PaymentMethod string      `json:"payment_method"`
	Status        string      `json:"status"`
}

type OrderItem struct {
	ProductID   string  `json:"product_id,omitempty"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// Cancelable reports whether the order may still be canceled by the customer.
func (o *Order) Cancelable() bool {
	switch o.Status {
	case OrderStatusPaid, OrderStatusDelivered, OrderStatusCanceled:
		return false
	}
	return true
}

// ShipmentStatusProcessing is the only status this service writes.
const ShipmentStatusProcessing = "processing"

// Shipment is the logistics record created alongside an order. ShippingFee is in minor units.
type Shipment struct {
	ID           string          `json:"id"`
	ShipmentCode string          `json:"shipmentCode"`
	OrderID      string          `json:"orderId"`
	UserID       string          `json:"userId"`
	Address      ShippingAddress `json:"address"`
	ShippingFee  int64           `json:"shippingFee"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// SimilarItems maps a product to its recommended products.
type SimilarItems struct {
	ID           FlexID   `json:"id"`
	RecommendIDs []FlexID `json:"recommendIds"`
}
