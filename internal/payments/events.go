package payments

import "time"

// Event kinds the provider emits. Anything else is acknowledged and
// ignored.
const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentFailed    = "payment.failed"
	EventSessionExpired   = "session.expired"
	EventChargeRefunded   = "charge.refunded"
)

type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      EventData `json:"data"`
}

// EventData: completed/failed/expired events reference the checkout
// session; refunds reference the captured charge instead.
type EventData struct {
	SessionID     string `json:"session_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}
