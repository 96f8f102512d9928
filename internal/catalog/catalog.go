// Package catalog answers product and license questions for the commerce core.
package catalog

import (
	"context"
	"errors"

	"github.com/fjod/templateshop/internal/domain"
)

type Store interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetLicense(ctx context.Context, id string) (*domain.License, error)
	IncrementDownloadCounter(ctx context.Context, productID string) error
	FindUserByEmail(ctx context.Context, email string) (string, error)
}

// Availability is derived from fresh reads on every call.
type Availability struct {
	ProductID      string `json:"productId"`
	LicenseID      string `json:"licenseId"`
	Available      bool   `json:"available"`
	Reason         string `json:"reason,omitempty"`
	SalesCount     int    `json:"salesCount"`
	MaxSales       int    `json:"maxSales"`
	RemainingSales int    `json:"remainingSales"`
}

const (
	ReasonInactive        = "product inactive"
	ReasonLicenseMissing  = "license not found"
	ReasonLicenseInactive = "license inactive"
	ReasonSoldOut         = "license sold out"
)

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) GetLicense(ctx context.Context, id string) (*domain.License, error) {
	return s.store.GetLicense(ctx, id)
}

func (s *Service) IncrementDownloadCounter(ctx context.Context, productID string) error {
	return s.store.IncrementDownloadCounter(ctx, productID)
}

func (s *Service) FindUserByEmail(ctx context.Context, email string) (string, error) {
	return s.store.FindUserByEmail(ctx, email)
}

// Resolve loads a product with its license. A missing license yields a nil
// license rather than an error.
func (s *Service) Resolve(ctx context.Context, productID string) (*domain.Product, *domain.License, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	license, err := s.store.GetLicense(ctx, product.LicenseID)
	if errors.Is(err, domain.ErrLicenseNotFound) {
		return product, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return product, license, nil
}

func (s *Service) Availability(ctx context.Context, productID string) (*Availability, error) {
	product, license, err := s.Resolve(ctx, productID)
	if err != nil {
		return nil, err
	}

	a := &Availability{
		ProductID:      product.ID,
		LicenseID:      product.LicenseID,
		SalesCount:     product.SalesCount,
		MaxSales:       domain.Unlimited,
		RemainingSales: domain.Unlimited,
	}
	if license != nil {
		a.MaxSales = license.MaxSales
		if license.MaxSales != domain.Unlimited {
			a.RemainingSales = max(license.MaxSales-product.SalesCount, 0)
		}
	}

	a.Available = domain.IsPurchasable(product, license)
	switch {
	case a.Available:
	case !product.Active:
		a.Reason = ReasonInactive
	case license == nil:
		a.Reason = ReasonLicenseMissing
	case !license.Active:
		a.Reason = ReasonLicenseInactive
	default:
		a.Reason = ReasonSoldOut
	}
	return a, nil
}
