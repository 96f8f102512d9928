package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fjod/templateshop/internal/domain"
)

type mockOrderStore struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	grants    int
	createErr error
	// raceOnCreate simulates a concurrent writer winning the insert.
	raceOnCreate bool
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderStore) CreateOrder(_ context.Context, order *domain.Order) (*domain.Finalization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.raceOnCreate {
		return nil, domain.ErrDuplicatePayment
	}
	if _, ok := m.orders[order.PaymentID]; ok {
		return nil, domain.ErrDuplicatePayment
	}
	order.ID = fmt.Sprintf("order-%d", len(m.orders)+1)
	stored := *order
	m.orders[order.PaymentID] = &stored

	fin := &domain.Finalization{}
	if order.Status == domain.OrderStatusCompleted {
		m.finalize(&stored, fin)
	}
	return fin, nil
}

func (m *mockOrderStore) finalize(order *domain.Order, fin *domain.Finalization) {
	for _, item := range order.Items {
		if item.ProductID == "" {
			continue
		}
		m.grants++
		fin.Granted = append(fin.Granted, domain.Grant{UserID: order.UserID, ProductID: item.ProductID, LicenseID: item.LicenseID, OrderID: order.ID})
	}
}

func (m *mockOrderStore) TransitionOrder(_ context.Context, paymentID string, from, to domain.OrderStatus) (*domain.Order, *domain.Finalization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[paymentID]
	if !ok {
		return nil, nil, domain.ErrOrderNotFound
	}
	copied := *order
	if order.Status != from || !from.CanTransitionTo(to) {
		return &copied, nil, domain.ErrIllegalTransition
	}
	order.Status = to
	fin := &domain.Finalization{}
	if to == domain.OrderStatusCompleted {
		m.finalize(order, fin)
	}
	copied = *order
	return &copied, fin, nil
}

func (m *mockOrderStore) GetOrderByPaymentID(_ context.Context, paymentID string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[paymentID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *mockOrderStore) get(paymentID string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[paymentID]
}

func (m *mockOrderStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type mockCatalog struct {
	products map[string]*domain.Product
	users    map[string]string
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) FindUserByEmail(_ context.Context, email string) (string, error) {
	id, ok := m.users[email]
	if !ok {
		return "", domain.ErrUserNotFound
	}
	return id, nil
}

func newCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]*domain.Product{
			"p1": {ID: "p1", Title: "Agency", Price: 2500, LicenseID: "standard", Active: true},
			"p2": {ID: "p2", Title: "Blog", Price: 900, LicenseID: "single", Active: true},
		},
		users: map[string]string{"buyer@example.com": "u-by-email"},
	}
}

type mockCarts struct {
	mu      sync.Mutex
	carts   map[string]*domain.Cart
	cleared []string
	removed []string
	err     error
}

func newMockCarts() *mockCarts {
	return &mockCarts{carts: make(map[string]*domain.Cart)}
}

func (m *mockCarts) Snapshot(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
}

func (m *mockCarts) RemoveItem(_ context.Context, userID, productID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, productID)
	c, ok := m.carts[userID]
	if !ok {
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	kept := make([]domain.CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	return c, nil
}

func (m *mockCarts) ClearCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, userID)
	if c, ok := m.carts[userID]; ok {
		c.Items = []domain.CartItem{}
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
