// Package entitlement tracks per (user, product, license) download quotas.
package entitlement

import (
	"context"
	"fmt"

	"github.com/fjod/templateshop/internal/domain"
)

type Store interface {
	GetEntitlement(ctx context.Context, userID, productID, licenseID string) (*domain.Entitlement, error)
	ConsumeDownload(ctx context.Context, userID, productID, licenseID string) (*domain.Entitlement, error)
	ListEntitlements(ctx context.Context, userID string) ([]*domain.Entitlement, error)
	GrantEntitlement(ctx context.Context, g domain.Grant) error
}

// View is an entitlement with its remaining quota for display.
type View struct {
	*domain.Entitlement
	Remaining int  `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Lookup fails with domain.ErrNotEntitled when no record exists.
func (l *Ledger) Lookup(ctx context.Context, userID, productID, licenseID string) (*domain.Entitlement, error) {
	return l.store.GetEntitlement(ctx, userID, productID, licenseID)
}

// Consume spends exactly one download.
func (l *Ledger) Consume(ctx context.Context, userID, productID, licenseID string) (*domain.Entitlement, error) {
	return l.store.ConsumeDownload(ctx, userID, productID, licenseID)
}

// Grant is the administrative grant step; purchases grant through the order store.
func (l *Ledger) Grant(ctx context.Context, g domain.Grant) error {
	if g.UserID == "" || g.ProductID == "" || g.LicenseID == "" {
		return &domain.Error{Kind: domain.KindValidation, Message: "user, product and license are required"}
	}
	if g.MaxDownloads < domain.Unlimited || g.MaxDownloads == 0 {
		return &domain.Error{Kind: domain.KindValidation, Message: fmt.Sprintf("invalid download quota %d", g.MaxDownloads)}
	}
	return l.store.GrantEntitlement(ctx, g)
}

func (l *Ledger) List(ctx context.Context, userID string) ([]View, error) {
	ents, err := l.store.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(ents))
	for _, e := range ents {
		views = append(views, View{Entitlement: e, Remaining: e.Remaining(), Unlimited: e.IsUnlimited()})
	}
	return views, nil
}
