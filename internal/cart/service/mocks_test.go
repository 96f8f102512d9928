package service

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fjod/templateshop/internal/cart/cache"
	"github.com/fjod/templateshop/internal/cart/repository"
	"github.com/fjod/templateshop/internal/domain"
)

type mockRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
	adds  int
	// afterGet runs once a cart has been read, outside the lock.
	afterGet func()
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	cart, err := m.getCart(userID)
	if err == nil && m.afterGet != nil {
		hook := m.afterGet
		m.afterGet = nil
		hook()
	}
	return cart, err
}

func (m *mockRepository) getCart(userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	copied := *cart
	copied.Items = append([]domain.CartItem(nil), cart.Items...)
	return &copied, nil
}

func (m *mockRepository) AddItem(_ context.Context, userID string, item domain.CartItem, maxQuantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{UserID: userID}
		m.carts[userID] = cart
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == item.ProductID {
			if maxQuantity != domain.Unlimited && cart.Items[i].Quantity+item.Quantity > maxQuantity {
				return domain.ErrCartQuotaExceeded
			}
			m.adds++
			cart.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	if maxQuantity != domain.Unlimited && item.Quantity > maxQuantity {
		return domain.ErrCartQuotaExceeded
	}
	m.adds++
	cart.Items = append(cart.Items, item)
	return nil
}

func (m *mockRepository) UpdateItemQuantity(_ context.Context, userID string, productID string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return domain.ErrItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i].Quantity = quantity
			return nil
		}
	}
	return domain.ErrItemNotFound
}

func (m *mockRepository) RemoveItem(_ context.Context, userID string, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil
	}
	for i, item := range cart.Items {
		if item.ProductID == productID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockRepository) ClearCart(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if cart, ok := m.carts[userID]; ok {
		cart.Items = []domain.CartItem{}
	}
	return nil
}

type mockCache struct {
	m       sync.RWMutex
	cart    *domain.Cart
	err     error
	deletes int
	version int64
}

func (m *mockCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Version(context.Context, string) (int64, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.version, nil
}

func (m *mockCache) SetIfVersion(_ context.Context, _ string, cart *domain.Cart, version int64) error {
	m.m.Lock()
	defer m.m.Unlock()
	if version != m.version {
		return cache.ErrStale
	}
	m.cart = cart
	return nil
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	m.deletes++
	m.version++
	return nil
}

func (m *mockCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

type mockCatalog struct {
	products map[string]*domain.Product
	licenses map[string]*domain.License
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockCatalog) GetLicense(_ context.Context, id string) (*domain.License, error) {
	l, ok := m.licenses[id]
	if !ok {
		return nil, domain.ErrLicenseNotFound
	}
	copied := *l
	return &copied, nil
}

func newCatalog() *mockCatalog {
	return &mockCatalog{
		products: map[string]*domain.Product{
			"p1":      {ID: "p1", Title: "Agency", Price: 1000, LicenseID: "standard", Active: true, Category: "business"},
			"p2":      {ID: "p2", Title: "Blog", Price: 500, LicenseID: "standard", Active: true},
			"limited": {ID: "limited", Title: "Shop", Price: 2000, LicenseID: "single", Active: true},
			"soldout": {ID: "soldout", Title: "Rare", Price: 9900, LicenseID: "exclusive", Active: true, SalesCount: 1},
			"hidden":  {ID: "hidden", Title: "Draft", Price: 100, LicenseID: "standard", Active: false},
		},
		licenses: map[string]*domain.License{
			"standard":  {ID: "standard", MaxDownloads: domain.Unlimited, MaxSales: domain.Unlimited, Active: true},
			"single":    {ID: "single", MaxDownloads: 2, MaxSales: domain.Unlimited, Active: true},
			"exclusive": {ID: "exclusive", MaxDownloads: 5, MaxSales: 1, Active: true},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
