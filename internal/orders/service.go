// Package orders reads past orders and prepares the checkout hand-off.
package orders

import (
	"context"
	"math"

	"github.com/flurbudurbur/supergear/internal/docstore"
	"github.com/flurbudurbur/supergear/internal/domain"
	"github.com/flurbudurbur/supergear/internal/logger"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	ErrNotSignedIn = errors.New("sign in to check out")
	ErrEmptyCart   = errors.New("cart is empty")
)

type Service interface {
	// List returns the orders stored under orders/{email}. A missing or
	// unreadable document yields no orders.
	List(ctx context.Context, email string) []domain.Order
	Checkout(state domain.ApplicationState) (*domain.CheckoutSummary, error)
}

type service struct {
	log  zerolog.Logger
	docs docstore.Service
}

func NewService(log logger.Logger, docs docstore.Service) Service {
	return &service{
		log:  log.With().Str("module", "orders").Logger(),
		docs: docs,
	}
}

func (s *service) List(ctx context.Context, email string) []domain.Order {
	orders := []domain.Order{}
	if email == "" {
		return orders
	}

	doc, err := s.docs.ReadDocument(ctx, domain.CollectionOrders, email)
	if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("could not read orders")
		return orders
	}

	var stored []domain.Order
	if err := docstore.DecodeField(doc, "orders", &stored); err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("orders document does not decode")
		return orders
	}

	return append(orders, stored...)
}

func (s *service) Checkout(state domain.ApplicationState) (*domain.CheckoutSummary, error) {
	if state.CurrentUser == nil {
		return nil, ErrNotSignedIn
	}
	if len(state.Cart) == 0 {
		return nil, ErrEmptyCart
	}

	summary := &domain.CheckoutSummary{
		UserID: state.CurrentUser.ID,
		Email:  state.CurrentUser.Email,
		Lines:  make([]domain.CartLine, 0, len(state.Cart)),
	}

	for _, line := range state.Cart {
		summary.Lines = append(summary.Lines, line.Clone())
		summary.ItemCount += line.Quantity
		summary.RegularTotal += line.RegularPrice * float64(line.Quantity)
		summary.DiscountedTotal += line.LineTotal()
	}

	summary.RegularTotal = round2(summary.RegularTotal)
	summary.DiscountedTotal = round2(summary.DiscountedTotal)
	summary.Savings = round2(summary.RegularTotal - summary.DiscountedTotal)

	s.log.Debug().Str("user_id", summary.UserID).Int("items", summary.ItemCount).Float64("total", summary.DiscountedTotal).Msg("checkout prepared")

	return summary, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
