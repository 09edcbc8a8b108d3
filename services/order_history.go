package services

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"checkout-service/apperrors"
	"checkout-service/clients"
	"checkout-service/events"
	"checkout-service/logger"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// OrderSummary is an order joined with its shipment.
type OrderSummary struct {
	Order      models.Order     `json:"order"`
	Shipment   *models.Shipment `json:"shipment,omitempty"`
	Cancelable bool             `json:"cancelable"`
}

type OrderHistoryService interface {
	ListOrders(ctx context.Context, userID string) ([]OrderSummary, error)
	CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error)
}

type orderHistoryServiceImpl struct {
	orders    clients.OrderAPI
	shipments clients.ShipmentAPI
	users     clients.UserAPI
	events    events.Publisher
	metrics   aws_pkg.MetricsRecorder
	logger    *zap.Logger
}

func NewOrderHistoryService(orders clients.OrderAPI, shipments clients.ShipmentAPI, users clients.UserAPI, publisher events.Publisher, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) OrderHistoryService {
	if metrics == nil {
		metrics = aws_pkg.NopMetrics{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{Logger: logger}
	}
	return &orderHistoryServiceImpl{orders: orders, shipments: shipments, users: users, events: publisher, metrics: metrics, logger: logger}
}

// ListOrders returns the user's orders, newest first. Shipments are optional:
// when they cannot be loaded the orders are still returned.
func (s *orderHistoryServiceImpl) ListOrders(ctx context.Context, userID string) ([]OrderSummary, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	log := logger.For(ctx, s.logger)

	var (
		orders    []models.Order
		shipments []models.Shipment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		orders, err = s.orders.ListOrders(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		shipments, err = s.shipments.ListShipments(gctx, userID)
		if err != nil {
			log.Warn("Shipments unavailable for order history", zap.String("user_id", userID), zap.Error(err))
			shipments = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.TransientFetchFailure("your orders", err)
	}

	byOrder := make(map[string]*models.Shipment, len(shipments))
	for i := range shipments {
		byOrder[shipments[i].OrderID] = &shipments[i]
	}

	summaries := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		key := o.OrderID
		if key == "" {
			key = o.ID
		}
		summaries = append(summaries, OrderSummary{Order: o, Shipment: byOrder[key], Cancelable: o.Cancelable()})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Order.OrderDate.After(summaries[j].Order.OrderDate)
	})
	return summaries, nil
}

// CancelOrder marks a still-cancelable order as canceled and unlinks it from the user.
func (s *orderHistoryServiceImpl) CancelOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	if orderID == "" {
		return nil, apperrors.BadRequest("order id is required")
	}
	log := logger.For(ctx, s.logger)

	order, err := s.orders.GetOrder(ctx, orderID)
	if errors.Is(err, clients.ErrNotFound) {
		return nil, apperrors.NotFound("order not found")
	}
	if err != nil {
		return nil, apperrors.TransientFetchFailure("the order", err)
	}
	if order.UserID != userID {
		return nil, apperrors.NotFound("order not found")
	}
	if !order.Cancelable() {
		return nil, apperrors.Conflict("this order can no longer be canceled")
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, models.OrderStatusCanceled); err != nil {
		return nil, apperrors.CommitStepFailure("cancel_order", err)
	}
	order.Status = models.OrderStatusCanceled

	if err := s.unlink(ctx, userID, order.OrderID); err != nil {
		log.Warn("Canceled order still linked to user", zap.String("order_id", orderID), zap.Error(err))
	}

	event := models.OrderCanceledEvent{
		EventType: events.EventOrderCanceled,
		OrderID:   order.OrderID,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, events.EventOrderCanceled, order.OrderID, event); err != nil {
		log.Warn("Failed to publish order canceled event", zap.String("order_id", orderID), zap.Error(err))
	}
	if err := s.metrics.RecordCount(ctx, aws_pkg.MetricOrdersCanceled, nil); err != nil {
		log.Warn("Failed to record metric", zap.String("metric", aws_pkg.MetricOrdersCanceled), zap.Error(err))
	}

	log.Info("Order canceled", zap.String("order_id", orderID), zap.String("user_id", userID))
	return order, nil
}

func (s *orderHistoryServiceImpl) unlink(ctx context.Context, userID, orderID string) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !slices.Contains(user.OrderIDs, orderID) {
		return nil
	}
	ids := slices.DeleteFunc(slices.Clone(user.OrderIDs), func(id string) bool { return id == orderID })
	return s.users.SetUserOrders(ctx, userID, ids)
}
