package order

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fjod/templateshop/internal/domain"
)

type mockStore struct {
	mu     sync.Mutex
	orders []*domain.Order
	err    error
}

func (m *mockStore) CreateOrder(_ context.Context, order *domain.Order) (*domain.Finalization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.PaymentID == order.PaymentID {
			return nil, domain.ErrDuplicatePayment
		}
	}
	order.ID = fmt.Sprintf("order-%d", len(m.orders)+1)
	order.CreatedAt = time.Date(2026, 1, 1, 0, len(m.orders), 0, 0, time.UTC)
	stored := *order
	m.orders = append(m.orders, &stored)
	return &domain.Finalization{}, nil
}

func (m *mockStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			copied := *o
			return &copied, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (m *mockStore) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			copied := *o
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type mockCatalog struct {
	products map[string]*domain.Product
	licenses map[string]*domain.License
}

func newCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]*domain.Product{
			"p1":      {ID: "p1", Title: "Agency", Price: 1000, LicenseID: "standard", Active: true},
			"p2":      {ID: "p2", Title: "Blog", Price: 500, LicenseID: "standard", Active: true},
			"hidden":  {ID: "hidden", Title: "Draft", Price: 100, LicenseID: "standard"},
			"soldout": {ID: "soldout", Title: "Rare", Price: 9900, LicenseID: "exclusive", Active: true, SalesCount: 1},
		},
		licenses: map[string]*domain.License{
			"standard":  {ID: "standard", MaxDownloads: domain.Unlimited, MaxSales: domain.Unlimited, Active: true},
			"exclusive": {ID: "exclusive", MaxDownloads: 2, MaxSales: 1, Active: true},
		},
	}
}

func (m *mockCatalog) Resolve(_ context.Context, productID string) (*domain.Product, *domain.License, error) {
	p, ok := m.products[productID]
	if !ok {
		return nil, nil, domain.ErrProductNotFound
	}
	return p, m.licenses[p.LicenseID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
