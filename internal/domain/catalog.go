package domain

// Product is the catalog view the commerce core consumes.
type Product struct {
	ID            string   `db:"id" json:"id"`
	Title         string   `db:"title" json:"title"`
	Price         int64    `db:"price" json:"price"`
	Category      string   `db:"category" json:"category"`
	Tags          []string `db:"-" json:"tags"`
	LicenseID     string   `db:"license_id" json:"licenseId"`
	FileKey       string   `db:"file_key" json:"-"`
	Active        bool     `db:"active" json:"active"`
	SalesCount    int      `db:"sales_count" json:"salesCount"`
	DownloadCount int      `db:"download_count" json:"downloadCount"`
}

// License holds the terms a product is sold under.
type License struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Price        int64  `db:"price" json:"price"`
	MaxDownloads int    `db:"max_downloads" json:"maxDownloads"`
	MaxSales     int    `db:"max_sales" json:"maxSales"`
	Active       bool   `db:"active" json:"active"`
}

// IsPurchasable must be evaluated on fresh product and license reads.
func IsPurchasable(p *Product, l *License) bool {
	if p == nil || l == nil || !p.Active || !l.Active {
		return false
	}
	return l.MaxSales == Unlimited || p.SalesCount < l.MaxSales
}

// Snapshot converts a product into a cart line.
func (p *Product) Snapshot(quantity int) CartItem {
	return CartItem{
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.Price,
		Quantity:  quantity,
		Category:  p.Category,
		Tags:      p.Tags,
		LicenseID: p.LicenseID,
	}
}
