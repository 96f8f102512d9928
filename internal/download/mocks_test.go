package download

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/fjod/templateshop/internal/domain"
)

type mockCatalog struct {
	mu         sync.Mutex
	products   map[string]*domain.Product
	licenses   map[string]*domain.License
	counted    map[string]int
	counterErr error
}

func newCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]*domain.Product{
			"p1":     {ID: "p1", Title: "Agency", LicenseID: "standard", FileKey: "files/p1.zip", Active: true},
			"p2":     {ID: "p2", Title: "Blog", LicenseID: "single", FileKey: "files/p2.zip", Active: true},
			"hidden": {ID: "hidden", LicenseID: "standard", Active: false},
			"legacy": {ID: "legacy", LicenseID: "retired", Active: true},
		},
		licenses: map[string]*domain.License{
			"standard": {ID: "standard", MaxDownloads: domain.Unlimited, MaxSales: domain.Unlimited, Active: true},
			"single":   {ID: "single", MaxDownloads: 1, MaxSales: domain.Unlimited, Active: true},
			"retired":  {ID: "retired", MaxDownloads: 3, MaxSales: domain.Unlimited, Active: false},
		},
		counted: make(map[string]int),
	}
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *mockCatalog) GetLicense(_ context.Context, id string) (*domain.License, error) {
	l, ok := m.licenses[id]
	if !ok {
		return nil, domain.ErrLicenseNotFound
	}
	return l, nil
}

func (m *mockCatalog) IncrementDownloadCounter(_ context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counterErr != nil {
		return m.counterErr
	}
	m.counted[productID]++
	return nil
}

func (m *mockCatalog) count(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counted[productID]
}

type mockLedger struct {
	mu   sync.Mutex
	ents map[string]*domain.Entitlement
	err  error
}

func newMockLedger(ents ...*domain.Entitlement) *mockLedger {
	m := &mockLedger{ents: make(map[string]*domain.Entitlement)}
	for _, e := range ents {
		m.ents[e.UserID+"/"+e.ProductID+"/"+e.LicenseID] = e
	}
	return m
}

func (m *mockLedger) Consume(_ context.Context, userID, productID, licenseID string) (*domain.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	e, ok := m.ents[userID+"/"+productID+"/"+licenseID]
	if !ok {
		return nil, domain.ErrNotEntitled
	}
	if !e.CanDownload() {
		return nil, domain.ErrQuotaExceeded
	}
	e.DownloadCount++
	copied := *e
	return &copied, nil
}

var errCounter = errors.New("counter store down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
