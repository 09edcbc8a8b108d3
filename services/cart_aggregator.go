package services

import (
	"context"
	"errors"

	"checkout-service/apperrors"
	"checkout-service/clients"
	"checkout-service/logger"
	"checkout-service/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CartAggregator loads a user's cart and resolves every line against the catalog.
type CartAggregator interface {
	LoadCart(ctx context.Context, userID string) (*models.CartReport, error)
}

type cartAggregatorImpl struct {
	cart        clients.CartAPI
	catalog     clients.CatalogAPI
	concurrency int
	logger      *zap.Logger
}

// NewCartAggregator creates a CartAggregator. concurrency bounds parallel product lookups.
func NewCartAggregator(cart clients.CartAPI, catalog clients.CatalogAPI, concurrency int, logger *zap.Logger) CartAggregator {
	if concurrency < 1 {
		concurrency = 8
	}
	return &cartAggregatorImpl{cart: cart, catalog: catalog, concurrency: concurrency, logger: logger}
}

type cartSlot struct {
	entryID string
	ref     models.ProductRef
}

type slotResult struct {
	line       *models.CartLine
	unresolved *models.UnresolvedItem
}

// LoadCart fails only when the cart itself cannot be fetched. Lines that cannot be
// resolved are reported in CartReport.Unresolved and left out of Lines.
func (s *cartAggregatorImpl) LoadCart(ctx context.Context, userID string) (*models.CartReport, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}

	entries, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		logger.For(ctx, s.logger).Error("Cart fetch failed", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.TransientFetchFailure("your cart", err)
	}

	var slots []cartSlot
	for _, e := range entries {
		for _, ref := range e.Products {
			slots = append(slots, cartSlot{entryID: e.ID.String(), ref: ref})
		}
	}

	report := &models.CartReport{Lines: []models.CartLine{}}
	if len(slots) == 0 {
		return report, nil
	}

	results := make([]slotResult, len(slots))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, slot := range slots {
		g.Go(func() error {
			results[i] = s.resolve(ctx, slot)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.TransientFetchFailure("your cart", err)
	}

	for _, r := range results {
		if r.line != nil {
			report.Lines = append(report.Lines, *r.line)
			continue
		}
		report.Unresolved = append(report.Unresolved, *r.unresolved)
	}

	if len(report.Unresolved) > 0 {
		logger.For(ctx, s.logger).Warn("Cart lines dropped",
			zap.String("user_id", userID),
			zap.String("kind", string(apperrors.KindPartialResolutionLoss)),
			zap.Int("resolved", len(report.Lines)),
			zap.Int("unresolved", len(report.Unresolved)),
		)
	}
	return report, nil
}

func (s *cartAggregatorImpl) resolve(ctx context.Context, slot cartSlot) slotResult {
	productID := slot.ref.ProductID.String()
	unresolved := func(reason string, err error) slotResult {
		item := &models.UnresolvedItem{CartEntryID: slot.entryID, ProductID: productID, Reason: reason}
		if err != nil {
			item.Detail = err.Error()
		}
		return slotResult{unresolved: item}
	}

	if productID == "" {
		return unresolved(models.UnresolvedMalformed, errors.New("missing product id"))
	}
	qty, err := slot.ref.Quantity.Int()
	if err != nil {
		return unresolved(models.UnresolvedInvalidQuantity, err)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	switch {
	case errors.Is(err, clients.ErrNotFound):
		return unresolved(models.UnresolvedNotFound, nil)
	case errors.Is(err, clients.ErrMalformed):
		return unresolved(models.UnresolvedMalformed, err)
	case err != nil:
		return unresolved(models.UnresolvedFetchFailed, err)
	}

	return slotResult{line: &models.CartLine{CartEntryID: slot.entryID, Product: *product, Quantity: qty}}
}
