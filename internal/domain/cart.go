package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"-"`
	UserID    string     `bson:"user_id" json:"userId"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

// CartItem is a product snapshot taken when the item was added.
type CartItem struct {
	ProductID string    `bson:"product_id" json:"productId"`
	Title     string    `bson:"title" json:"title"`
	UnitPrice int64     `bson:"unit_price" json:"unitPrice"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Category  string    `bson:"category,omitempty" json:"category,omitempty"`
	Tags      []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	LicenseID string    `bson:"license_id" json:"licenseId"`
	AddedAt   time.Time `bson:"added_at" json:"addedAt"`
}

func (i CartItem) Subtotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Total is always derived from the current items; carts never store it.
func (c *Cart) Total() int64 {
	if c == nil {
		return 0
	}
	var total int64
	for _, item := range c.Items {
		total += item.Subtotal()
	}
	return total
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

func (c *Cart) Find(productID string) (CartItem, bool) {
	if c == nil {
		return CartItem{}, false
	}
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}

// ProductIDs returns the product ids in insertion order.
func (c *Cart) ProductIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
