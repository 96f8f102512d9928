package cache

import (
	"context"
	"errors"

	"github.com/fjod/templateshop/internal/domain"
)

// CartCache stores read-through copies of carts. Every Delete advances the
// cart's version, and SetIfVersion refuses to store a cart loaded under an
// older version.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Version(ctx context.Context, userID string) (int64, error)
	SetIfVersion(ctx context.Context, userID string, cart *domain.Cart, version int64) error
	Delete(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	ErrStale     = errors.New("cart changed since it was loaded")
)
