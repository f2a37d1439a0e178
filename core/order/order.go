package order

import (
	"database/sql"
	"time"
)

type Status string

const (
	Pending Status = "pending"
	Paid    Status = "paid"

	// Failed exists in the schema but is never set automatically: a
	// gateway failure leaves the order pending until a later webhook or
	// an admin override settles it.
	Failed Status = "failed"
)

type Order struct {
	ID               string         `json:"id" db:"order_id"`
	CustomerEmail    string         `json:"customerEmail" db:"customer_email"`
	ProductID        string         `json:"productId" db:"product_id"`
	PaymentReference sql.NullString `json:"paymentReference" db:"payment_reference"`
	Status           Status         `json:"status" db:"status"`
	Amount           int            `json:"amount" db:"amount"`
	CreatedAt        time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time      `json:"updatedAt" db:"updated_at"`
}

// ReferencePrefix scopes payment references so gateway-side transactions
// are trivially attributable to this system.
const ReferencePrefix = "SMARTSORT"

// Reference builds the opaque token correlating an order with its remote
// transaction. It is unique because the order id is.
func Reference(orderID string) string {
	return ReferencePrefix + "_" + orderID
}

// Filter narrows admin order listings.
type Filter struct {
	Status string
	Email  string
}

// Stats is the admin dashboard aggregate view.
type Stats struct {
	TotalOrders     int            `json:"totalOrders"`
	PaidOrders      int            `json:"paidOrders"`
	PendingOrders   int            `json:"pendingOrders"`
	TotalRevenue    int            `json:"totalRevenue"`
	RevenueByType   map[string]int `json:"revenueByType"`
	RevenueByStatus map[string]int `json:"revenueByStatus"`
}
