package services

import (
	"context"
	"errors"
	"time"

	"byteshop/internal/apperrors"
	"byteshop/internal/models"
	"byteshop/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const MaxCartQuantity = 100

type CartService struct {
	store    store.Store
	products *ProductService
	events   EventPublisher
	log      logrus.FieldLogger
}

func NewCartService(s store.Store, products *ProductService, events EventPublisher, log logrus.FieldLogger) *CartService {
	if events == nil {
		events = Nop{}
	}
	return &CartService{store: s, products: products, events: events, log: log}
}

// Get returns the caller's cart lines with per-line subtotals, newest first.
func (s *CartService) Get(ctx context.Context, userID string) ([]models.CartLine, error) {
	lines, err := s.store.ListCartLines(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	for i := range lines {
		lines[i].Subtotal = lines[i].Price.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
	}
	return lines, nil
}

func (s *CartService) Summary(ctx context.Context, userID string) (*models.CartSummary, error) {
	lines, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return Summarize(lines), nil
}

// Summarize totals cart lines. A cart is valid when every line is still
// purchasable in its quantity.
func Summarize(lines []models.CartLine) *models.CartSummary {
	sum := &models.CartSummary{ItemCount: len(lines), TotalPrice: decimal.Zero, IsValid: true}
	for _, l := range lines {
		sum.TotalItems += l.Quantity
		sum.TotalPrice = sum.TotalPrice.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		if !l.IsActive || l.Quantity > l.StockQuantity {
			sum.IsValid = false
		}
	}
	return sum
}

// Add puts quantity of productID in the cart. An existing line is increased
// and the combined quantity is checked against stock.
func (s *CartService) Add(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, bool, error) {
	if quantity < 1 || quantity > MaxCartQuantity {
		return nil, false, apperrors.BadRequest("Quantity must be between 1 and %d", MaxCartQuantity)
	}

	ok, err := s.products.CheckAvailability(ctx, productID, quantity)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, apperrors.BadRequest("Product not available in requested quantity")
	}

	existing, err := s.store.FindCartItem(ctx, userID, productID)
	switch {
	case err == nil:
		item, err := s.increase(ctx, existing, quantity)
		if err != nil {
			return nil, false, err
		}
		s.notify(ctx, userID)
		return item, false, nil

	case errors.Is(err, store.ErrNotFound):
		item := &models.CartItem{ID: uuid.NewString(), UserID: userID, ProductID: productID, Quantity: quantity}
		err := s.store.InsertCartItem(ctx, item)
		if errors.Is(err, store.ErrDuplicate) {
			// a concurrent add created the line first
			existing, err := s.store.FindCartItem(ctx, userID, productID)
			if err != nil {
				return nil, false, apperrors.Internal(err)
			}
			merged, err := s.increase(ctx, existing, quantity)
			if err != nil {
				return nil, false, err
			}
			s.notify(ctx, userID)
			return merged, false, nil
		}
		if err != nil {
			return nil, false, apperrors.Internal(err)
		}
		s.notify(ctx, userID)
		return item, true, nil

	default:
		return nil, false, apperrors.Internal(err)
	}
}

func (s *CartService) increase(ctx context.Context, existing *models.CartItem, quantity int) (*models.CartItem, error) {
	total := existing.Quantity + quantity
	if total > MaxCartQuantity {
		return nil, apperrors.BadRequest("Quantity must be between 1 and %d", MaxCartQuantity)
	}
	ok, err := s.products.CheckAvailability(ctx, existing.ProductID, total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.BadRequest("Product not available in requested total quantity")
	}
	item, err := s.store.UpdateCartItemQuantity(ctx, existing.UserID, existing.ID, total)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return item, nil
}

// Update sets the absolute quantity of a cart line.
func (s *CartService) Update(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	if quantity < 1 || quantity > MaxCartQuantity {
		return nil, apperrors.BadRequest("Quantity must be between 1 and %d", MaxCartQuantity)
	}

	item, err := s.store.GetCartItem(ctx, userID, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("Cart item not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ok, err := s.products.CheckAvailability(ctx, item.ProductID, quantity)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.BadRequest("Product not available in requested quantity")
	}

	updated, err := s.store.UpdateCartItemQuantity(ctx, userID, itemID, quantity)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("Cart item not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	s.notify(ctx, userID)
	return updated, nil
}

func (s *CartService) Remove(ctx context.Context, userID, itemID string) error {
	err := s.store.DeleteCartItem(ctx, userID, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("Cart item not found")
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	s.notify(ctx, userID)
	return nil
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	if err := s.store.ClearCart(ctx, userID); err != nil {
		return apperrors.Internal(err)
	}
	s.notify(ctx, userID)
	return nil
}

func (s *CartService) notify(ctx context.Context, userID string) {
	summary, err := s.Summary(ctx, userID)
	if err != nil {
		return
	}
	evt := models.Event{Type: models.EventCartUpdated, Data: summary, Timestamp: time.Now().UTC()}
	if err := s.events.Publish(ctx, userID, evt); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Debug("cart event not published")
	}
}
