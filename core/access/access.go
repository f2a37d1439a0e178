package access

import (
	"time"

	"github.com/smartsort/storefront/core/product"
)

// Access is a durable grant: never updated, never deleted. At most one
// row exists per (customer email, product) pair.
type Access struct {
	ID            string       `json:"-" db:"access_id"`
	CustomerEmail string       `json:"email" db:"customer_email"`
	ProductID     string       `json:"productId" db:"product_id"`
	OrderID       string       `json:"orderId" db:"order_id"`
	Type          product.Type `json:"accessType" db:"access_type"`
	GrantedAt     time.Time    `json:"grantedAt" db:"granted_at"`
}
