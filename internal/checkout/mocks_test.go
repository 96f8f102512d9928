package checkout

import (
	"context"
	"io"
	"log/slog"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/fjod/templateshop/internal/payment"
)

type mockCart struct {
	cart *domain.Cart
	err  error
}

func (m *mockCart) Snapshot(_ context.Context, userID string) (*domain.Cart, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	return m.cart, nil
}

type mockCatalog struct {
	products map[string]*domain.Product
	licenses map[string]*domain.License
	err      error
}

func (m *mockCatalog) Resolve(_ context.Context, productID string) (*domain.Product, *domain.License, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, nil, domain.ErrProductNotFound
	}
	return p, m.licenses[p.LicenseID], nil
}

func newCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]*domain.Product{
			"p1":      {ID: "p1", Title: "Agency", Price: 1200, LicenseID: "standard", Active: true},
			"p2":      {ID: "p2", Title: "Blog", Price: 500, LicenseID: "standard", Active: true},
			"hidden":  {ID: "hidden", Title: "Draft", Price: 100, LicenseID: "standard", Active: false},
			"soldout": {ID: "soldout", Title: "Rare", Price: 9900, LicenseID: "exclusive", Active: true, SalesCount: 1},
		},
		licenses: map[string]*domain.License{
			"standard":  {ID: "standard", MaxDownloads: domain.Unlimited, MaxSales: domain.Unlimited, Active: true},
			"exclusive": {ID: "exclusive", MaxDownloads: 3, MaxSales: 1, Active: true},
		},
	}
}

type mockProcessor struct {
	requests []payment.SessionRequest
	err      error
}

func (m *mockProcessor) CreateCheckoutSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &payment.Session{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
