package httpapi

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fjod/templateshop/internal/catalog"
	"github.com/fjod/templateshop/internal/checkout"
	"github.com/fjod/templateshop/internal/domain"
	"github.com/fjod/templateshop/internal/download"
	"github.com/fjod/templateshop/internal/entitlement"
	"github.com/fjod/templateshop/internal/order"
	"github.com/fjod/templateshop/internal/payment"
	"github.com/fjod/templateshop/internal/reconcile"
)

type mockCarts struct {
	mu     sync.Mutex
	owners []string
	cart   *domain.Cart
	err    error
}

func (m *mockCarts) record(owner string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners = append(m.owners, owner)
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return &domain.Cart{UserID: owner, Items: []domain.CartItem{}}, nil
	}
	return m.cart, nil
}

func (m *mockCarts) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	return m.record(userID)
}

func (m *mockCarts) AddItem(_ context.Context, userID, _ string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return m.record(userID)
}

func (m *mockCarts) UpdateQuantity(_ context.Context, userID, _ string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return m.record(userID)
}

func (m *mockCarts) RemoveItem(_ context.Context, userID, _ string) (*domain.Cart, error) {
	return m.record(userID)
}

func (m *mockCarts) ClearCart(_ context.Context, userID string) error {
	_, err := m.record(userID)
	return err
}

type mockCheckout struct {
	customer checkout.Customer
	items    []checkout.Item
	err      error
}

func (m *mockCheckout) CreateSession(_ context.Context, customer checkout.Customer, items []checkout.Item) (*checkout.Result, error) {
	m.customer, m.items = customer, items
	if m.err != nil {
		return nil, m.err
	}
	return &checkout.Result{SessionID: "cs_1", RedirectURL: "https://pay.example/cs_1"}, nil
}

type mockOrders struct {
	orders map[string]*domain.Order
	err    error
}

func (m *mockOrders) Register(_ context.Context, reg order.Registration) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.PaymentID == reg.PaymentID {
			return nil, domain.ErrDuplicatePayment
		}
	}
	o := &domain.Order{ID: "o-new", UserID: reg.UserID, PaymentID: reg.PaymentID, Status: domain.OrderStatusPending, Source: domain.OrderSourceRegistered, TotalAmount: 1000, Currency: "USD"}
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockOrders) Get(_ context.Context, userID, orderID string) (*domain.Order, error) {
	o, ok := m.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

func (m *mockOrders) List(_ context.Context, userID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type mockDownloads struct {
	err error
}

func (m *mockDownloads) RequestDownload(_ context.Context, _, productID, _ string) (*download.Grant, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &download.Grant{FileKey: "files/" + productID + ".zip", DownloadCount: 1, Remaining: 2}, nil
}

type mockEntitlements struct{}

func (mockEntitlements) List(_ context.Context, userID string) ([]entitlement.View, error) {
	ent := &domain.Entitlement{UserID: userID, ProductID: "p1", LicenseID: "standard", MaxDownloads: 3, DownloadCount: 1}
	return []entitlement.View{{Entitlement: ent, Remaining: ent.Remaining()}}, nil
}

type mockAvailability struct{}

func (mockAvailability) Availability(_ context.Context, productID string) (*catalog.Availability, error) {
	if productID == "ghost" {
		return nil, domain.ErrProductNotFound
	}
	return &catalog.Availability{ProductID: productID, Available: true, MaxSales: domain.Unlimited, RemainingSales: domain.Unlimited}, nil
}

type mockWebhooks struct {
	calls int
}

func (m *mockWebhooks) HandleWebhook(_ context.Context, _ []byte, signature string) (reconcile.Outcome, error) {
	m.calls++
	if signature != "valid" {
		return "", payment.ErrInvalidSignature
	}
	return reconcile.OutcomeError, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
