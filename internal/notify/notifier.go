package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/craftline/storefront/internal/kafka"
	"github.com/craftline/storefront/internal/orders"
)

const (
	TopicNotifications     = "storefront.notifications"
	EventOrderConfirmation = "OrderConfirmation"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ConfirmationItem struct {
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int    `json:"unit_price_cents"`
}

// OrderConfirmationPayload is the "send transactional email" contract:
// recipient, order id, total, line items, optional shipping address.
type OrderConfirmationPayload struct {
	OrderID           string             `json:"order_id"`
	Email             string             `json:"email"`
	TotalCents        int                `json:"total_cents"`
	Items             []ConfirmationItem `json:"items"`
	ShippingAddressID *string            `json:"shipping_address_id,omitempty"`
}

// Notifier sends the customer-facing order confirmation. Failures never
// propagate into the caller's critical path.
type Notifier interface {
	OrderPaid(ctx context.Context, o *orders.Order) error
}

// KafkaNotifier hands confirmations to the notifications topic; the notify
// worker drains it and does the actual delivery.
type KafkaNotifier struct {
	Producer *kafkax.Producer
	Service  string
}

func (n *KafkaNotifier) OrderPaid(ctx context.Context, o *orders.Order) error {
	items := make([]ConfirmationItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ConfirmationItem{ProductID: it.ProductID, Qty: it.Qty, UnitPriceCents: it.UnitPriceCents})
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderConfirmation,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(OrderConfirmationPayload{
			OrderID:           o.ID,
			Email:             o.Email,
			TotalCents:        o.TotalCents,
			Items:             items,
			ShippingAddressID: o.ShippingAddressID,
		}),
	}
	n.Producer.Publish([]byte(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderConfirmation)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
