package payments

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/craftline/storefront/internal/inventory"
	"github.com/craftline/storefront/internal/notify"
	"github.com/craftline/storefront/internal/orders"
)

// actor recorded on history entries and ledger events written by the
// webhook path.
const webhookActor = "payment-webhook"

type OrderStore interface {
	GetBySessionID(ctx context.Context, sessionID string) (*orders.Order, error)
	GetByTransactionID(ctx context.Context, txnID string) (*orders.Order, error)
	Transition(ctx context.Context, orderID string, to orders.Status, note, actor *string) (bool, error)
	SetTransactionID(ctx context.Context, orderID, txnID string) error
	AdvanceFulfillment(ctx context.Context, orderID string, stage orders.FulfillmentStage, tracking *string) error
	AppendOperatorNote(ctx context.Context, orderID, note string) error
}

type Ledger interface {
	Deduct(ctx context.Context, orderID string, actor *string) error
	Restore(ctx context.Context, orderID, reason string, actor *string) error
}

// Locker serializes webhook handling per order. Two deliveries for the same
// order must not both pass the "not yet PAID" check.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// DedupStore is a best-effort fast path; the status guard is the real
// idempotency mechanism.
type DedupStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Processor applies payment-provider events to orders. Safe under
// at-least-once delivery and out-of-order arrival: every branch checks
// current order status under a per-order lock before mutating.
type Processor struct {
	Orders   OrderStore
	Ledger   Ledger
	Notifier notify.Notifier
	Locks    Locker
	Dedup    DedupStore
	Log      *zap.Logger
}

// Handle processes one verified event. A nil return acknowledges the event;
// an error means the provider may retry, so every path here must be safe to
// re-run.
func (p *Processor) Handle(ctx context.Context, ev Event) error {
	if p.Dedup != nil && ev.ID != "" {
		if seen, err := p.Dedup.Seen(ctx, ev.ID); err == nil && seen {
			return nil
		}
	}

	var err error
	switch ev.Kind {
	case EventPaymentCompleted:
		err = p.handleCompleted(ctx, ev)
	case EventPaymentFailed:
		err = p.handleSessionEnded(ctx, ev, orders.StatusFailed, "payment failed")
	case EventSessionExpired:
		err = p.handleSessionEnded(ctx, ev, orders.StatusCancelled, "payment session expired")
	case EventChargeRefunded:
		err = p.handleRefunded(ctx, ev)
	default:
		p.Log.Debug("ignoring unrecognized payment event", zap.String("kind", ev.Kind), zap.String("event_id", ev.ID))
		return nil
	}
	if err != nil {
		return err
	}

	// Mark only after the event was fully applied; a transient failure must
	// leave the id unmarked so the provider's retry is processed, not
	// swallowed.
	if p.Dedup != nil && ev.ID != "" {
		_ = p.Dedup.Mark(ctx, ev.ID)
	}
	return nil
}

func (p *Processor) handleCompleted(ctx context.Context, ev Event) error {
	o, err := p.Orders.GetBySessionID(ctx, ev.Data.SessionID)
	if errors.Is(err, orders.ErrNotFound) {
		p.Log.Warn("payment completed for unknown session", zap.String("session_id", ev.Data.SessionID))
		return nil
	}
	if err != nil {
		return err
	}

	release, err := p.Locks.Acquire(ctx, o.ID)
	if err != nil {
		return err
	}
	defer release()

	// Re-read under the lock; a concurrent delivery may have won the race.
	o, err = p.Orders.GetBySessionID(ctx, ev.Data.SessionID)
	if err != nil {
		return err
	}
	if o.Status != orders.StatusPending {
		p.Log.Info("payment completed already applied",
			zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
		return nil
	}

	actor := webhookActor
	if err := p.Ledger.Deduct(ctx, o.ID, &actor); err != nil {
		var short *inventory.InsufficientStockError
		if !errors.As(err, &short) {
			return err
		}
		// Money captured wins over stock accuracy. Record the shortfall for
		// manual reconciliation and still honor the payment.
		note := fmt.Sprintf("stock deduction failed after payment capture: %v; manual reconciliation required", short)
		if nerr := p.Orders.AppendOperatorNote(ctx, o.ID, note); nerr != nil {
			p.Log.Error("recording reconciliation note failed", zap.String("order_id", o.ID), zap.Error(nerr))
		}
		p.Log.Warn("stock oversold at capture", zap.String("order_id", o.ID), zap.Error(short))
	}

	if ev.Data.TransactionID != "" {
		if err := p.Orders.SetTransactionID(ctx, o.ID, ev.Data.TransactionID); err != nil {
			return err
		}
	}

	if _, err := p.Orders.Transition(ctx, o.ID, orders.StatusPaid, nil, &actor); err != nil {
		return err
	}
	if err := p.Orders.AdvanceFulfillment(ctx, o.ID, orders.FulfillmentPreparing, nil); err != nil {
		return err
	}

	// Fire-and-forget: a notification failure never fails or retries the
	// webhook.
	if p.Notifier != nil {
		if err := p.Notifier.OrderPaid(ctx, o); err != nil {
			p.Log.Error("order confirmation notification failed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	p.Log.Info("order paid", zap.String("order_id", o.ID), zap.Int("total_cents", o.TotalCents))
	return nil
}

func (p *Processor) handleSessionEnded(ctx context.Context, ev Event, to orders.Status, why string) error {
	o, err := p.Orders.GetBySessionID(ctx, ev.Data.SessionID)
	if errors.Is(err, orders.ErrNotFound) {
		p.Log.Warn("session event for unknown session",
			zap.String("kind", ev.Kind), zap.String("session_id", ev.Data.SessionID))
		return nil
	}
	if err != nil {
		return err
	}

	release, err := p.Locks.Acquire(ctx, o.ID)
	if err != nil {
		return err
	}
	defer release()

	o, err = p.Orders.GetBySessionID(ctx, ev.Data.SessionID)
	if err != nil {
		return err
	}
	if orders.IsTerminal(o.Status) {
		return nil
	}

	actor := webhookActor
	if o.Status == orders.StatusPaid {
		// Payment was later invalidated; give the stock back first.
		if err := p.Ledger.Restore(ctx, o.ID, fmt.Sprintf("%s after capture", why), &actor); err != nil {
			return err
		}
	}

	note := why
	if _, err := p.Orders.Transition(ctx, o.ID, to, &note, &actor); err != nil {
		return err
	}
	p.Log.Info("order closed by provider event",
		zap.String("order_id", o.ID), zap.String("kind", ev.Kind), zap.String("status", string(to)))
	return nil
}

func (p *Processor) handleRefunded(ctx context.Context, ev Event) error {
	o, err := p.Orders.GetByTransactionID(ctx, ev.Data.TransactionID)
	if errors.Is(err, orders.ErrNotFound) {
		p.Log.Warn("refund for unknown transaction", zap.String("transaction_id", ev.Data.TransactionID))
		return nil
	}
	if err != nil {
		return err
	}

	release, err := p.Locks.Acquire(ctx, o.ID)
	if err != nil {
		return err
	}
	defer release()

	o, err = p.Orders.GetByTransactionID(ctx, ev.Data.TransactionID)
	if err != nil {
		return err
	}
	// Refunding a non-paid order is an inconsistent event; ignore it.
	if o.Status != orders.StatusPaid {
		p.Log.Info("ignoring refund for non-paid order",
			zap.String("order_id", o.ID), zap.String("status", string(o.Status)))
		return nil
	}

	actor := webhookActor
	if err := p.Ledger.Restore(ctx, o.ID, fmt.Sprintf("order %s refunded", o.ID), &actor); err != nil {
		return err
	}
	note := "charge refunded"
	if _, err := p.Orders.Transition(ctx, o.ID, orders.StatusRefunded, &note, &actor); err != nil {
		return err
	}
	p.Log.Info("order refunded", zap.String("order_id", o.ID))
	return nil
}
