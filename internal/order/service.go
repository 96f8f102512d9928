// Package order registers and queries orders on behalf of their owners.
// Payment-driven order creation lives in the reconcile package.
package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/templateshop/internal/domain"
)

type Store interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Finalization, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
}

type Catalog interface {
	Resolve(ctx context.Context, productID string) (*domain.Product, *domain.License, error)
}

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Registration struct {
	UserID    string
	Email     string
	PaymentID string
	Currency  string
	Items     []Item
}

type Service struct {
	store   Store
	catalog Catalog
	log     *slog.Logger
}

func NewService(store Store, catalog Catalog, log *slog.Logger) *Service {
	return &Service{store: store, catalog: catalog, log: log}
}

// Register records a pending order ahead of payment. Prices come from the
// catalog; a payment id that already has an order fails with
// domain.ErrDuplicatePayment.
func (s *Service) Register(ctx context.Context, reg Registration) (*domain.Order, error) {
	paymentID := strings.TrimSpace(reg.PaymentID)
	if paymentID == "" {
		return nil, &domain.Error{Kind: domain.KindValidation, Message: "paymentId is required"}
	}
	if len(reg.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	items, err := s.price(ctx, reg.Items)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		UserID:        reg.UserID,
		Items:         items,
		Currency:      domain.NormalizeCurrency(reg.Currency),
		PaymentID:     paymentID,
		Status:        domain.OrderStatusPending,
		CustomerEmail: reg.Email,
		Source:        domain.OrderSourceRegistered,
	}
	for _, item := range items {
		order.TotalAmount += item.UnitPrice * int64(item.Quantity)
	}

	if _, err := s.store.CreateOrder(ctx, order); err != nil {
		if !errors.Is(err, domain.ErrDuplicatePayment) {
			s.log.ErrorContext(ctx, "register order failed", "user_id", reg.UserID, "payment_id", paymentID, "error", err)
		}
		return nil, err
	}

	s.log.InfoContext(ctx, "order registered", "order_id", order.ID, "user_id", reg.UserID, "payment_id", paymentID, "total", order.TotalAmount)
	return order, nil
}

func (s *Service) price(ctx context.Context, items []Item) ([]domain.OrderItem, error) {
	var (
		lines       = make([]domain.OrderItem, 0, len(items))
		index       = make(map[string]int, len(items))
		unavailable []string
	)
	for _, item := range items {
		if item.ProductID == "" {
			return nil, &domain.Error{Kind: domain.KindValidation, Message: "productId is required"}
		}
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if i, ok := index[item.ProductID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}

		product, license, err := s.catalog.Resolve(ctx, item.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			unavailable = append(unavailable, item.ProductID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve product %s: %w", item.ProductID, err)
		}
		if !domain.IsPurchasable(product, license) {
			unavailable = append(unavailable, item.ProductID)
			continue
		}

		index[item.ProductID] = len(lines)
		lines = append(lines, domain.OrderItem{
			ProductID: product.ID,
			Title:     product.Title,
			UnitPrice: product.Price,
			Quantity:  item.Quantity,
			LicenseID: product.LicenseID,
		})
	}
	if len(unavailable) > 0 {
		return nil, &domain.ProductUnavailableError{IDs: unavailable}
	}
	return lines, nil
}

// Get returns the order only to its owner, whatever its status.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		s.log.WarnContext(ctx, "order access denied", "order_id", orderID, "user_id", userID)
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}
