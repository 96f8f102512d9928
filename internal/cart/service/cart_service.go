package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/templateshop/internal/cart/cache"
	"github.com/fjod/templateshop/internal/cart/repository"
	"github.com/fjod/templateshop/internal/domain"
	"golang.org/x/sync/singleflight"
)

// Catalog resolves the product and license a cart line is priced from.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetLicense(ctx context.Context, id string) (*domain.License, error)
}

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog Catalog
	log     *slog.Logger
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog Catalog, log *slog.Logger) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cache,
		catalog: catalog,
		log:     log,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get error", "user_id", userID, "error", err)
		}

		// the version is read before storage so a mutation in between makes the write stale
		version, verErr := s.cache.Version(ctx, userID)
		if verErr != nil {
			s.log.WarnContext(ctx, "cache version error", "user_id", userID, "error", verErr)
		}

		cart, err = s.load(ctx, userID)
		if err != nil {
			return nil, err
		}

		if verErr == nil {
			s.fillCache(ctx, userID, cart, version)
		}

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) fillCache(ctx context.Context, userID string, cart *domain.Cart, version int64) {
	err := s.cache.SetIfVersion(ctx, userID, cart, version)
	switch {
	case errors.Is(err, cache.ErrStale):
		s.log.DebugContext(ctx, "cart changed while loading, cache not filled", "user_id", userID)
	case err != nil:
		s.log.WarnContext(ctx, "cache set error", "user_id", userID, "error", err)
	}
}

// load reads the cart from the repository, bypassing the cache.
// A missing cart is an empty cart.
func (s *CartService) load(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		now := time.Now()
		return &domain.Cart{
			UserID:    userID,
			Items:     []domain.CartItem{},
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return cart, nil
}

// AddItem snapshots the product into the cart, merging with an existing line.
// The merged quantity is capped by the license download quota.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	product, license, err := s.resolve(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !domain.IsPurchasable(product, license) {
		return nil, &domain.ProductUnavailableError{IDs: []string{productID}}
	}

	if err := s.repo.AddItem(ctx, userID, product.Snapshot(quantity), license.MaxDownloads); err != nil {
		if errors.Is(err, domain.ErrCartQuotaExceeded) {
			return nil, err
		}
		s.log.ErrorContext(ctx, "repo add item error", "user_id", userID, "product_id", productID, "error", err)
		return nil, err
	}

	s.invalidateCache(userID)
	return s.load(ctx, userID)
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	current, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	line, ok := current.Find(productID)
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	license, err := s.catalog.GetLicense(ctx, line.LicenseID)
	if err != nil && !errors.Is(err, domain.ErrLicenseNotFound) {
		return nil, err
	}
	if license != nil && exceedsQuota(license, quantity) {
		return nil, domain.ErrCartQuotaExceeded
	}

	if err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity); err != nil {
		if !errors.Is(err, domain.ErrItemNotFound) {
			s.log.ErrorContext(ctx, "repo update item quantity error", "user_id", userID, "error", err)
		}
		return nil, err
	}

	s.invalidateCache(userID)
	return s.load(ctx, userID)
}

// RemoveItem is idempotent.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (*domain.Cart, error) {
	if err := s.repo.RemoveItem(ctx, userID, productID); err != nil {
		s.log.ErrorContext(ctx, "repo remove item error", "user_id", userID, "error", err)
		return nil, err
	}

	s.invalidateCache(userID)
	return s.load(ctx, userID)
}

// ClearCart is idempotent; the cart document survives with no items.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		s.log.ErrorContext(ctx, "repo clear cart error", "user_id", userID, "error", err)
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// Snapshot returns the current cart straight from storage.
func (s *CartService) Snapshot(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.load(ctx, userID)
}

func (s *CartService) resolve(ctx context.Context, productID string) (*domain.Product, *domain.License, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	license, err := s.catalog.GetLicense(ctx, product.LicenseID)
	if errors.Is(err, domain.ErrLicenseNotFound) {
		return nil, nil, &domain.ProductUnavailableError{IDs: []string{productID}}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get license %s: %w", product.LicenseID, err)
	}
	return product, license, nil
}

func exceedsQuota(license *domain.License, quantity int) bool {
	return license.MaxDownloads != domain.Unlimited && quantity > license.MaxDownloads
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.Warn("cache invalidate error", "user_id", userID, "error", err)
	}
}
