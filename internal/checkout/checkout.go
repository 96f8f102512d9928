// Package checkout turns a cart or an explicit item list into a payment
// processor checkout session. It never creates orders.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/fjod/templateshop/internal/metrics"
	"github.com/fjod/templateshop/internal/payment"
)

type CartReader interface {
	Snapshot(ctx context.Context, userID string) (*domain.Cart, error)
}

type Catalog interface {
	Resolve(ctx context.Context, productID string) (*domain.Product, *domain.License, error)
}

type Customer struct {
	ID    string
	Email string
}

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Result struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"url"`
}

type Config struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

type Service struct {
	cart      CartReader
	catalog   Catalog
	processor payment.Processor
	cfg       Config
	log       *slog.Logger
	metrics   *metrics.Metrics
}

func NewService(cart CartReader, catalog Catalog, processor payment.Processor, cfg Config, log *slog.Logger, m *metrics.Metrics) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Service{
		cart:      cart,
		catalog:   catalog,
		processor: processor,
		cfg:       cfg,
		log:       log,
		metrics:   m,
	}
}

// CreateSession prices items from the catalog, defaulting to the
// customer's cart. Either every product is purchasable or the call fails
// with a ProductUnavailableError naming all that are not.
func (s *Service) CreateSession(ctx context.Context, customer Customer, items []Item) (*Result, error) {
	if len(items) == 0 {
		fromCart, err := s.cartItems(ctx, customer.ID)
		if err != nil {
			return nil, err
		}
		items = fromCart
	}

	items, err := mergeItems(items)
	if err != nil {
		return nil, err
	}

	lines, err := s.price(ctx, items)
	if err != nil {
		return nil, err
	}

	productIDs := make([]string, 0, len(lines))
	quantities := make([]int, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
		quantities = append(quantities, line.Quantity)
	}

	session, err := s.processor.CreateCheckoutSession(ctx, payment.SessionRequest{
		CustomerID:    customer.ID,
		CustomerEmail: customer.Email,
		Currency:      s.cfg.Currency,
		Items:         lines,
		Metadata: map[string]string{
			payment.MetadataUserID:     customer.ID,
			payment.MetadataProductIDs: payment.JoinProductIDs(productIDs),
			payment.MetadataQuantities: payment.JoinQuantities(quantities),
		},
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		s.metrics.RecordCheckout("error")
		s.log.ErrorContext(ctx, "create checkout session failed", "user_id", customer.ID, "error", err)
		if !errors.Is(err, domain.ErrUpstream) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstream, err)
		}
		return nil, err
	}

	s.metrics.RecordCheckout("created")
	s.log.InfoContext(ctx, "checkout session created", "user_id", customer.ID, "session_id", session.ID, "products", len(lines))
	return &Result{SessionID: session.ID, RedirectURL: session.URL}, nil
}

func (s *Service) cartItems(ctx context.Context, userID string) ([]Item, error) {
	cart, err := s.cart.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	items := make([]Item, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, Item{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return items, nil
}

// mergeItems folds repeated products together, keeping first-seen order.
func mergeItems(items []Item) ([]Item, error) {
	merged := make([]Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return nil, &domain.Error{Kind: domain.KindValidation, Message: "productId is required"}
		}
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	if len(merged) == 0 {
		return nil, domain.ErrEmptyCart
	}
	return merged, nil
}

// price re-reads every product, collecting all unavailable ids before failing.
func (s *Service) price(ctx context.Context, items []Item) ([]payment.LineItem, error) {
	var (
		lines       = make([]payment.LineItem, 0, len(items))
		unavailable []string
	)
	for _, item := range items {
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
		lines = append(lines, payment.LineItem{
			ProductID:  product.ID,
			Title:      product.Title,
			UnitAmount: product.Price,
			Quantity:   item.Quantity,
		})
	}
	if len(unavailable) > 0 {
		s.metrics.RecordCheckout("unavailable")
		return nil, &domain.ProductUnavailableError{IDs: unavailable}
	}
	return lines, nil
}
