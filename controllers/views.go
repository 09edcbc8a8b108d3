package controllers

import (
	"time"

	"checkout-service/apperrors"
	"checkout-service/currency"
	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
)

// PresenterCatalog picks the display currency for a request.
type PresenterCatalog interface {
	Presenter(key string) currency.Presenter
}

// presenterFor reads the region from the X-Region header, then the region query parameter.
func presenterFor(c *gin.Context, catalog PresenterCatalog) currency.Presenter {
	key := c.GetHeader("X-Region")
	if key == "" {
		key = c.Query("region")
	}
	return catalog.Presenter(key)
}

func currentUser(c *gin.Context) (string, bool) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		apperrors.Respond(c, apperrors.Unauthenticated())
		return "", false
	}
	return userID, true
}

type MoneyView struct {
	Amount  int64  `json:"amount"`
	Display string `json:"display"`
}

type RegionView struct {
	Key          string `json:"key"`
	CurrencyCode string `json:"currency_code"`
	Symbol       string `json:"symbol"`
}

type LineView struct {
	CartEntryID string    `json:"cart_entry_id"`
	ProductID   string    `json:"product_id"`
	Title       string    `json:"title"`
	Image       string    `json:"image,omitempty"`
	Quantity    int       `json:"quantity"`
	UnitPrice   MoneyView `json:"unit_price"`
	LineTotal   MoneyView `json:"line_total"`
}

type ReceiptView struct {
	CommitID     string    `json:"commit_id"`
	OrderID      string    `json:"order_id"`
	ShipmentCode string    `json:"shipment_code"`
	Status       string    `json:"status"`
	CartCleared  bool      `json:"cart_cleared"`
	PlacedAt     time.Time `json:"placed_at"`
	Subtotal     MoneyView `json:"subtotal"`
	ShippingFee  MoneyView `json:"shipping_fee"`
	Total        MoneyView `json:"total"`
}

// NoticeView tells the client that part of the cart was dropped.
type NoticeView struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

type SessionView struct {
	ID            string                  `json:"id"`
	State         models.CheckoutState    `json:"state"`
	Lines         []LineView              `json:"lines"`
	Unresolved    []models.UnresolvedItem `json:"unresolved,omitempty"`
	Notice        *NoticeView             `json:"notice,omitempty"`
	Address       *models.ShippingAddress `json:"address,omitempty"`
	AddressSource string                  `json:"address_source,omitempty"`
	PaymentMethod models.PaymentMethod    `json:"payment_method,omitempty"`
	Subtotal      MoneyView               `json:"subtotal"`
	ShippingFee   MoneyView               `json:"shipping_fee"`
	Total         MoneyView               `json:"total"`
	Region        RegionView              `json:"region"`
	Receipt       *ReceiptView            `json:"receipt,omitempty"`
	FailureReason string                  `json:"failure_reason,omitempty"`
}

type OrderItemView struct {
	ProductID   string    `json:"product_id,omitempty"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	Price       MoneyView `json:"price"`
}

type OrderView struct {
	OrderID       string           `json:"order_id"`
	OrderDate     time.Time        `json:"order_date"`
	Status        string           `json:"status"`
	PaymentMethod string           `json:"payment_method"`
	Items         []OrderItemView  `json:"items"`
	TotalAmount   MoneyView        `json:"total_amount"`
	ShippingFee   MoneyView        `json:"shipping_fee"`
	Cancelable    bool             `json:"cancelable"`
	Shipment      *models.Shipment `json:"shipment,omitempty"`
}

type ProductView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Price       MoneyView `json:"price"`
}

func money(p currency.Presenter, minor int64) MoneyView {
	return MoneyView{Amount: minor, Display: p.Display(minor)}
}

func regionView(p currency.Presenter) RegionView {
	r := p.Region()
	return RegionView{Key: r.Key, CurrencyCode: r.CurrencyCode, Symbol: r.Symbol}
}

func newSessionView(s *models.CheckoutSession, p currency.Presenter) SessionView {
	v := SessionView{
		ID:            s.ID,
		State:         s.State,
		Lines:         make([]LineView, 0, len(s.Lines)),
		Unresolved:    s.Unresolved,
		Address:       s.Address,
		AddressSource: s.AddressSource,
		PaymentMethod: s.PaymentMethod,
		Subtotal:      money(p, s.Subtotal),
		ShippingFee:   money(p, s.ShippingFee),
		Total:         money(p, s.Total),
		Region:        regionView(p),
		FailureReason: s.FailureReason,
	}
	for _, l := range s.Lines {
		v.Lines = append(v.Lines, LineView{
			CartEntryID: l.CartEntryID,
			ProductID:   l.Product.ID.String(),
			Title:       l.Product.Title,
			Image:       l.Product.Image,
			Quantity:    l.Quantity,
			UnitPrice:   money(p, l.Product.Price),
			LineTotal:   money(p, l.LineTotal()),
		})
	}
	if len(s.Unresolved) > 0 {
		v.Notice = &NoticeView{
			Kind:    apperrors.KindPartialResolutionLoss,
			Message: "Some items in your cart are no longer available and were left out.",
		}
	}
	if r := s.Receipt; r != nil {
		v.Receipt = &ReceiptView{
			CommitID:     r.CommitID,
			OrderID:      r.OrderID,
			ShipmentCode: r.ShipmentCode,
			Status:       r.Status,
			CartCleared:  r.CartCleared,
			PlacedAt:     r.PlacedAt,
			Subtotal:     money(p, r.Subtotal),
			ShippingFee:  money(p, r.ShippingFee),
			Total:        money(p, r.Total),
		}
	}
	return v
}

func newOrderView(s services.OrderSummary, p currency.Presenter) OrderView {
	o := s.Order
	v := OrderView{
		OrderID:       o.OrderID,
		OrderDate:     o.OrderDate,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		Items:         make([]OrderItemView, 0, len(o.Items)),
		TotalAmount:   money(p, currency.FromMajor(o.TotalAmount)),
		ShippingFee:   money(p, currency.FromMajor(o.ShippingFee)),
		Cancelable:    s.Cancelable,
		Shipment:      s.Shipment,
	}
	if v.OrderID == "" {
		v.OrderID = o.ID
	}
	for _, item := range o.Items {
		v.Items = append(v.Items, OrderItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       money(p, currency.FromMajor(item.Price)),
		})
	}
	return v
}

func newProductView(prod models.Product, p currency.Presenter) ProductView {
	return ProductView{
		ID:          prod.ID.String(),
		Title:       prod.Title,
		Description: prod.Description,
		Image:       prod.Image,
		Price:       money(p, prod.Price),
	}
}
