package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"checkout-service/apperrors"
	"checkout-service/events"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedOrders(b *fakeBackend) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	b.orders["ORD-1"] = &models.Order{ID: "ORD-1", OrderID: "ORD-1", UserID: "u-1", OrderDate: day, Status: models.OrderStatusProcessing}
	b.orders["ORD-2"] = &models.Order{ID: "ORD-2", OrderID: "ORD-2", UserID: "u-1", OrderDate: day.Add(48 * time.Hour), Status: models.OrderStatusPaid}
	b.orders["ORD-3"] = &models.Order{ID: "ORD-3", OrderID: "ORD-3", UserID: "u-2", OrderDate: day, Status: models.OrderStatusProcessing}
	b.shipments["SHP-1"] = &models.Shipment{ID: "SHP-1", ShipmentCode: "SHP-1", OrderID: "ORD-1", UserID: "u-1"}
	b.user = &models.UserProfile{ID: "u-1", OrderIDs: []string{"ORD-1", "ORD-2"}}
}

func TestListOrders_NewestFirstWithShipments(t *testing.T) {
	b := newFakeBackend()
	seedOrders(b)
	svc := services.NewOrderHistoryService(b, b, b, nil, nil, zap.NewNop())

	summaries, err := svc.ListOrders(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "ORD-2", summaries[0].Order.OrderID)
	assert.Nil(t, summaries[0].Shipment)
	assert.False(t, summaries[0].Cancelable)

	assert.Equal(t, "ORD-1", summaries[1].Order.OrderID)
	require.NotNil(t, summaries[1].Shipment)
	assert.Equal(t, "SHP-1", summaries[1].Shipment.ShipmentCode)
	assert.True(t, summaries[1].Cancelable)
}

func TestListOrders_ShipmentsUnavailable(t *testing.T) {
	b := newFakeBackend()
	seedOrders(b)
	b.fail["ListShipments"] = errors.New("timeout")
	svc := services.NewOrderHistoryService(b, b, b, nil, nil, zap.NewNop())

	summaries, err := svc.ListOrders(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
	for _, s := range summaries {
		assert.Nil(t, s.Shipment)
	}

	b.fail["ListOrders"] = errors.New("timeout")
	_, err = svc.ListOrders(context.Background(), "u-1")
	assert.Equal(t, apperrors.KindTransientFetchFailure, apperrors.KindOf(err))
}

func TestCancelOrder(t *testing.T) {
	b := newFakeBackend()
	seedOrders(b)
	publisher := &recordingPublisher{}
	metrics := newCountingMetrics()
	svc := services.NewOrderHistoryService(b, b, b, publisher, metrics, zap.NewNop())
	ctx := context.Background()

	order, err := svc.CancelOrder(ctx, "u-1", "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, order.Status)
	assert.Equal(t, models.OrderStatusCanceled, b.orders["ORD-1"].Status)
	assert.Equal(t, []string{"ORD-2"}, b.user.OrderIDs)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.EventOrderCanceled, publisher.events[0].eventType)
	assert.Equal(t, 1, metrics.get(aws_pkg.MetricOrdersCanceled))

	_, err = svc.CancelOrder(ctx, "u-1", "ORD-1")
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = svc.CancelOrder(ctx, "u-1", "ORD-2")
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = svc.CancelOrder(ctx, "u-1", "ORD-3")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = svc.CancelOrder(ctx, "u-1", "ORD-404")
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCancelOrder_StatusUpdateFails(t *testing.T) {
	b := newFakeBackend()
	seedOrders(b)
	b.fail["UpdateOrderStatus"] = errors.New("conflict")
	svc := services.NewOrderHistoryService(b, b, b, nil, nil, zap.NewNop())

	_, err := svc.CancelOrder(context.Background(), "u-1", "ORD-1")
	assert.Equal(t, apperrors.KindCommitStepFailure, apperrors.KindOf(err))
	assert.Equal(t, []string{"ORD-1", "ORD-2"}, b.user.OrderIDs)
}
