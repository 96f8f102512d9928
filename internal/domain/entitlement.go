package domain

import "time"

// Unlimited marks a quota without an upper bound.
const Unlimited = -1

type Entitlement struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"userId"`
	ProductID      string     `db:"product_id" json:"productId"`
	LicenseID      string     `db:"license_id" json:"licenseId"`
	OrderID        string     `db:"order_id" json:"orderId"`
	DownloadCount  int        `db:"download_count" json:"downloadCount"`
	MaxDownloads   int        `db:"max_downloads" json:"maxDownloads"`
	LastDownloadAt *time.Time `db:"last_download_at" json:"lastDownloadAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

func (e *Entitlement) IsUnlimited() bool {
	return e.MaxDownloads == Unlimited
}

// CanDownload reports whether one more download fits in the quota.
func (e *Entitlement) CanDownload() bool {
	return e.IsUnlimited() || e.DownloadCount < e.MaxDownloads
}

// Remaining returns the downloads left, or Unlimited.
func (e *Entitlement) Remaining() int {
	if e.IsUnlimited() {
		return Unlimited
	}
	if left := e.MaxDownloads - e.DownloadCount; left > 0 {
		return left
	}
	return 0
}
