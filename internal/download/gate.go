// Package download enforces per-license download quotas.
package download

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fjod/templateshop/internal/domain"
	"github.com/fjod/templateshop/internal/metrics"
)

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetLicense(ctx context.Context, id string) (*domain.License, error)
	IncrementDownloadCounter(ctx context.Context, productID string) error
}

type Ledger interface {
	Consume(ctx context.Context, userID, productID, licenseID string) (*domain.Entitlement, error)
}

// Grant is what the caller needs to serve the file.
type Grant struct {
	FileKey       string `json:"fileKey"`
	DownloadCount int    `json:"downloadCount"`
	Remaining     int    `json:"remaining"`
	Unlimited     bool   `json:"unlimited"`
}

type Gate struct {
	catalog Catalog
	ledger  Ledger
	limiter *Limiter
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewGate builds a gate. A nil limiter disables rate limiting.
func NewGate(catalog Catalog, ledger Ledger, limiter *Limiter, log *slog.Logger, m *metrics.Metrics) *Gate {
	return &Gate{
		catalog: catalog,
		ledger:  ledger,
		limiter: limiter,
		log:     log,
		metrics: m,
	}
}

// RequestDownload spends one download of the user's entitlement. An empty
// licenseID means the product's own license.
func (g *Gate) RequestDownload(ctx context.Context, userID, productID, licenseID string) (*Grant, error) {
	grant, err := g.requestDownload(ctx, userID, productID, licenseID)
	g.metrics.RecordDownload(result(err))
	return grant, err
}

func (g *Gate) requestDownload(ctx context.Context, userID, productID, licenseID string) (*Grant, error) {
	if !g.limiter.Allow(userID) {
		g.log.WarnContext(ctx, "download rate limit exceeded", "user_id", userID)
		return nil, domain.ErrRateLimited
	}

	product, err := g.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.ErrProductNotFound
	}

	if licenseID == "" {
		licenseID = product.LicenseID
	}
	license, err := g.catalog.GetLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}
	if !license.Active {
		return nil, domain.ErrLicenseNotFound
	}

	ent, err := g.ledger.Consume(ctx, userID, productID, licenseID)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			g.log.InfoContext(ctx, "download quota exhausted", "user_id", userID, "product_id", productID, "license_id", licenseID)
		}
		return nil, err
	}

	if err := g.catalog.IncrementDownloadCounter(ctx, productID); err != nil {
		g.log.WarnContext(ctx, "failed to increment product download counter", "product_id", productID, "error", err)
	}

	g.log.InfoContext(ctx, "download granted",
		"user_id", userID, "product_id", productID, "license_id", licenseID, "download_count", ent.DownloadCount)

	return &Grant{
		FileKey:       product.FileKey,
		DownloadCount: ent.DownloadCount,
		Remaining:     ent.Remaining(),
		Unlimited:     ent.IsUnlimited(),
	}, nil
}

func result(err error) string {
	switch {
	case err == nil:
		return "granted"
	case errors.Is(err, domain.ErrNotEntitled):
		return "not_entitled"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case domain.KindOf(err) == domain.KindNotFound:
		return "not_found"
	default:
		return "error"
	}
}
