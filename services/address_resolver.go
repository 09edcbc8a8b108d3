package services

import (
	"context"
	"errors"

	"checkout-service/apperrors"
	"checkout-service/clients"
	"checkout-service/logger"
	"checkout-service/models"
	"checkout-service/repository"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var validate = validator.New()

// IsComplete reports whether addr has everything a shipment needs.
func IsComplete(addr *models.ShippingAddress) bool {
	return addr != nil && validate.Struct(addr) == nil
}

// EffectiveAddress applies override precedence: an explicit selection wins over the
// profile address, with no merging. Incomplete addresses count as absent.
func EffectiveAddress(profile, explicit *models.ShippingAddress) (*models.ShippingAddress, string) {
	if IsComplete(explicit) {
		return explicit, models.AddressSourceSelection
	}
	if IsComplete(profile) {
		return profile, models.AddressSourceProfile
	}
	return nil, ""
}

// AddressResolver determines the effective shipping address for a checkout entry.
type AddressResolver interface {
	// SelectAddress records an address-book entry as the one-shot explicit selection.
	SelectAddress(ctx context.Context, userID, addressID string) (*models.ShippingAddress, error)
	// Resolve consumes the one-shot selection, if any.
	Resolve(ctx context.Context, userID string) (*models.ShippingAddress, string, error)
	// Restore puts back a consumed selection when checkout entry fails.
	Restore(ctx context.Context, userID string, addr *models.ShippingAddress)
}

type addressResolverImpl struct {
	users      clients.UserAPI
	book       clients.AddressBookAPI
	selections repository.SelectionRepository
	logger     *zap.Logger
}

func NewAddressResolver(users clients.UserAPI, book clients.AddressBookAPI, selections repository.SelectionRepository, logger *zap.Logger) AddressResolver {
	return &addressResolverImpl{users: users, book: book, selections: selections, logger: logger}
}

func (s *addressResolverImpl) SelectAddress(ctx context.Context, userID, addressID string) (*models.ShippingAddress, error) {
	if userID == "" {
		return nil, apperrors.Unauthenticated()
	}
	if addressID == "" {
		return nil, apperrors.BadRequest("address_id is required")
	}

	addrs, err := s.book.ListAddresses(ctx, userID)
	if err != nil {
		return nil, apperrors.TransientFetchFailure("your address book", err)
	}

	for i := range addrs {
		if addrs[i].ID.String() != addressID {
			continue
		}
		addr := addrs[i]
		if addr.UserID != "" && addr.UserID.String() != userID {
			break
		}
		if !IsComplete(&addr) {
			return nil, apperrors.BadRequest("the selected address is incomplete")
		}
		if err := s.selections.Put(ctx, userID, &addr); err != nil {
			return nil, apperrors.Internal("failed to save address selection", err)
		}
		return &addr, nil
	}
	return nil, apperrors.NotFound("address not found")
}

// Resolve reads the profile before consuming the selection so that a failed
// profile fetch leaves the selection in place for the retry.
func (s *addressResolverImpl) Resolve(ctx context.Context, userID string) (*models.ShippingAddress, string, error) {
	if userID == "" {
		return nil, "", apperrors.Unauthenticated()
	}

	profile, err := s.users.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, clients.ErrNotFound) {
		return nil, "", apperrors.TransientFetchFailure("your profile", err)
	}

	explicit, err := s.selections.Consume(ctx, userID)
	if err != nil {
		return nil, "", apperrors.TransientFetchFailure("your selected address", err)
	}
	if explicit != nil && !IsComplete(explicit) {
		logger.For(ctx, s.logger).Warn("Ignoring incomplete address selection", zap.String("user_id", userID))
	}

	addr, source := EffectiveAddress(profile.ShippingAddress(), explicit)
	return addr, source, nil
}

func (s *addressResolverImpl) Restore(ctx context.Context, userID string, addr *models.ShippingAddress) {
	if addr == nil {
		return
	}
	if err := s.selections.Put(ctx, userID, addr); err != nil {
		logger.For(ctx, s.logger).Warn("Failed to restore address selection", zap.String("user_id", userID), zap.Error(err))
	}
}
