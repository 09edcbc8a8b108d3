package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"checkout-service/models"
)

// CartAPI reads and clears raw cart entries.
type CartAPI interface {
	GetCart(ctx context.Context, userID string) ([]models.CartEntry, error)
	DeleteCartEntry(ctx context.Context, entryID string) error
}

// CatalogAPI resolves products.
type CatalogAPI interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProducts(ctx context.Context, ids []string) ([]models.Product, error)
}

type UserAPI interface {
	GetUser(ctx context.Context, userID string) (*models.UserProfile, error)
	SetUserOrders(ctx context.Context, userID string, orderIDs []string) error
}

type AddressBookAPI interface {
	ListAddresses(ctx context.Context, userID string) ([]models.ShippingAddress, error)
}

type OrderAPI interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	DeleteOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id, status string) error
}

type ShipmentAPI interface {
	CreateShipment(ctx context.Context, shipment *models.Shipment) error
	DeleteShipment(ctx context.Context, id string) error
	ListShipments(ctx context.Context, userID string) ([]models.Shipment, error)
}

type RecommendationAPI interface {
	GetSimilarIDs(ctx context.Context, productID string) ([]string, error)
}

func (b *BackendClient) GetCart(ctx context.Context, userID string) ([]models.CartEntry, error) {
	var raw json.RawMessage
	if err := b.call(ctx, http.MethodGet, "/shoppingCart", url.Values{"userId": {userID}}, nil, &raw); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}
	entries, err := decodeList[models.CartEntry](raw)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return entries, nil
}

// DeleteCartEntry treats an already-absent entry as deleted.
func (b *BackendClient) DeleteCartEntry(ctx context.Context, entryID string) error {
	err := b.call(ctx, http.MethodDelete, "/shoppingCart/"+url.PathEscape(entryID), nil, nil, nil)
	if err := tolerateNotFound(err); err != nil {
		return fmt.Errorf("delete cart entry %s: %w", entryID, err)
	}
	return nil
}

func (b *BackendClient) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var raw json.RawMessage
	if err := b.call(ctx, http.MethodGet, "/products", url.Values{"id": {id}}, nil, &raw); err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	p, err := decodeFirst[models.Product](raw)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("get product %s: %w: missing id", id, ErrMalformed)
	}
	return p, nil
}

func (b *BackendClient) GetProducts(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var raw json.RawMessage
	if err := b.call(ctx, http.MethodGet, "/products", url.Values{"id": ids}, nil, &raw); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	products, err := decodeList[models.Product](raw)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return products, nil
}

func (b *BackendClient) GetUser(ctx context.Context, userID string) (*models.UserProfile, error) {
	var raw json.RawMessage
	if err := b.call(ctx, http.MethodGet, "/user", url.Values{"id": {userID}}, nil, &raw); err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	u, err := decodeFirst[models.UserProfile](raw)
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// SetUserOrders replaces the user's order id list.
func (b *BackendClient) SetUserOrders(ctx context.Context, userID string, orderIDs []string) error {
	if orderIDs == nil {
		orderIDs = []string{}
	}
	body := map[string]interface{}{"order_id": orderIDs}
	if err := b.call(ctx, http.MethodPatch, "/user/"+url.PathEscape(userID), nil, body, nil); err != nil {
		return fmt.Errorf("patch user %s: %w", userID, err)
	}
	return nil
}

func (b *BackendClient) ListAddresses(ctx context.Context, userID string) ([]models.ShippingAddress, error) {
	var raw json.RawMessage
	if err := b.call(ctx, http.MethodGet, "/address", url.Values{"userId": {userID}}, nil, &raw); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	addrs, err := decodeList[models.ShippingAddress](raw)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addrs, nil
}

func (b *BackendClient) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := b.call(ctx, http.MethodPost, "/orders", nil, order, nil); err != nil {
		return fmt.Errorf("create order %s: %w", order.OrderID, err)
	}
	return nil
}

func (b *BackendClient) DeleteOrder(ctx context.Context, id string) error {
	err := b.call(ctx, http.MethodDelete, "/orders/"+url.PathEscape(id), nil, nil, nil)
	if err := tolerateNotFound(err); err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}

func (b *BackendClient) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := b.call(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, nil, &o); err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &o, nil
}

func (b *BackendClient) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	var raw json.RawMessage
	if err := b.call(ctx, http.MethodGet, "/orders", url.Values{"user_id": {userID}}, nil, &raw); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders, err := decodeList[models.Order](raw)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (b *BackendClient) UpdateOrderStatus(ctx context.Context, id, status string) error {
	body := map[string]string{"status": status}
	if err := b.call(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id), nil, body, nil); err != nil {
		return fmt.Errorf("update order %s: %w", id, err)
	}
	return nil
}

func (b *BackendClient) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	if err := b.call(ctx, http.MethodPost, "/shipping", nil, shipment, nil); err != nil {
		return fmt.Errorf("create shipment %s: %w", shipment.ShipmentCode, err)
	}
	return nil
}

func (b *BackendClient) DeleteShipment(ctx context.Context, id string) error {
	err := b.call(ctx, http.MethodDelete, "/shipping/"+url.PathEscape(id), nil, nil, nil)
	if err := tolerateNotFound(err); err != nil {
		return fmt.Errorf("delete shipment %s: %w", id, err)
	}
	return nil
}

func (b *BackendClient) ListShipments(ctx context.Context, userID string) ([]models.Shipment, error) {
	var raw json.RawMessage
	if err := b.call(ctx, http.MethodGet, "/shipping", url.Values{"userId": {userID}}, nil, &raw); err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	shipments, err := decodeList[models.Shipment](raw)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	return shipments, nil
}

func (b *BackendClient) GetSimilarIDs(ctx context.Context, productID string) ([]string, error) {
	var raw json.RawMessage
	if err := b.call(ctx, http.MethodGet, "/similarItems", url.Values{"id": {productID}}, nil, &raw); err != nil {
		return nil, fmt.Errorf("get similar items %s: %w", productID, err)
	}
	item, err := decodeFirst[models.SimilarItems](raw)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get similar items %s: %w", productID, err)
	}
	ids := make([]string, 0, len(item.RecommendIDs))
	for _, id := range item.RecommendIDs {
		if id != "" {
			ids = append(ids, id.String())
		}
	}
	return ids, nil
}
