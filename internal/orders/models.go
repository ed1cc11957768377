package orders

import "time"

type Product struct {
	ID         string    `json:"id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Stock      int       `json:"stock"`
	PriceCents int       `json:"price_cents"`
	Published  bool      `json:"published"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Order struct {
	ID                string           `json:"id"`
	Email             string           `json:"email"`
	UserID            *string          `json:"user_id,omitempty"`
	SubtotalCents     int              `json:"subtotal_cents"`
	TaxCents          int              `json:"tax_cents"`
	ShippingCents     int              `json:"shipping_cents"`
	TotalCents        int              `json:"total_cents"`
	PaymentSessionID  *string          `json:"payment_session_id,omitempty"`
	PaymentTxnID      *string          `json:"payment_txn_id,omitempty"`
	Status            Status           `json:"status"`
	Fulfillment       FulfillmentStage `json:"fulfillment_stage"`
	TrackingRef       *string          `json:"tracking_ref,omitempty"`
	OperatorNote      *string          `json:"operator_note,omitempty"`
	ShippingAddressID *string          `json:"shipping_address_id,omitempty"`
	BillingAddressID  *string          `json:"billing_address_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`

	Items   []LineItem           `json:"items,omitempty"`
	History []StatusHistoryEntry `json:"history,omitempty"`
}

// LineItem snapshots the product price at order time; it never tracks the
// live product price.
type LineItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

type StatusHistoryEntry struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    Status    `json:"status"`
	Note      *string   `json:"note,omitempty"`
	Actor     *string   `json:"actor,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Address struct {
	ID         string  `json:"id"`
	UserID     *string `json:"user_id,omitempty"`
	Name       string  `json:"name"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Region     *string `json:"region,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
}

// InventoryEvent is one append-only row in the reconciliation ledger.
// Summing deltas for a product from genesis reproduces its current stock.
type InventoryEvent struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	Delta       int       `json:"delta"`
	Reason      string    `json:"reason"`
	Actor       *string   `json:"actor,omitempty"`
	OrderID     string    `json:"order_id"`
	OrderLineID string    `json:"order_line_id"`
	PrevStock   int       `json:"prev_stock"`
	NewStock    int       `json:"new_stock"`
	CreatedAt   time.Time `json:"created_at"`
}
