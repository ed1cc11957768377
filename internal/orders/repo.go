package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("order not found")

type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

type Repo struct{ DB *pgxpool.Pool }

type NewLineItem struct {
	ProductID      string
	Qty            int
	UnitPriceCents int
}

type NewOrder struct {
	Email             string
	UserID            *string
	Items             []NewLineItem
	SubtotalCents     int
	TaxCents          int
	ShippingCents     int
	TotalCents        int
	PaymentSessionID  string
	ShippingAddressID *string
	BillingAddressID  *string
}

// Create persists the order, its line items and the initial PENDING history
// entry in one transaction. Unit prices are the snapshots the caller
// captured; they are immutable from here on.
func (r *Repo) Create(ctx context.Context, n NewOrder) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, email, user_id, subtotal_cents, tax_cents, shipping_cents, total_cents,
		                   payment_session_id, status, shipping_address_id, billing_address_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		orderID, n.Email, n.UserID, n.SubtotalCents, n.TaxCents, n.ShippingCents, n.TotalCents,
		n.PaymentSessionID, StatusPending, n.ShippingAddressID, n.BillingAddressID,
	)
	if err != nil {
		return nil, err
	}

	for _, it := range n.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			uuid.NewString(), orderID, it.ProductID, it.Qty, it.UnitPriceCents,
		); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_history(id, order_id, status)
		VALUES ($1,$2,$3)`,
		uuid.NewString(), orderID, StatusPending,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, orderID)
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.getWhere(ctx, `id = $1`, id)
}

func (r *Repo) GetBySessionID(ctx context.Context, sessionID string) (*Order, error) {
	return r.getWhere(ctx, `payment_session_id = $1`, sessionID)
}

func (r *Repo) GetByTransactionID(ctx context.Context, txnID string) (*Order, error) {
	return r.getWhere(ctx, `payment_txn_id = $1`, txnID)
}

func (r *Repo) getWhere(ctx context.Context, cond string, arg any) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, email, user_id, subtotal_cents, tax_cents, shipping_cents, total_cents,
		       payment_session_id, payment_txn_id, status, fulfillment_stage, tracking_ref,
		       operator_note, shipping_address_id, billing_address_id, created_at, updated_at
		FROM orders WHERE `+cond, arg).Scan(
		&o.ID, &o.Email, &o.UserID, &o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
		&o.PaymentSessionID, &o.PaymentTxnID, &o.Status, &o.Fulfillment, &o.TrackingRef,
		&o.OperatorNote, &o.ShippingAddressID, &o.BillingAddressID, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, unit_price_cents
		FROM order_items WHERE order_id = $1`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var li LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.Qty, &li.UnitPriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, li)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hrows, err := r.DB.Query(ctx, `
		SELECT id, order_id, status, note, actor, created_at
		FROM order_status_history WHERE order_id = $1
		ORDER BY created_at DESC`, o.ID)
	if err != nil {
		return nil, err
	}
	defer hrows.Close()
	for hrows.Next() {
		var h StatusHistoryEntry
		if err := hrows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Note, &h.Actor, &h.CreatedAt); err != nil {
			return nil, err
		}
		o.History = append(o.History, h)
	}
	if err := hrows.Err(); err != nil {
		return nil, err
	}

	return &o, nil
}

// Transition applies the status change and appends a history entry. It is
// idempotent: if the order is already at the target status, or parked in a
// terminal status, nothing changes and (false, nil) is returned. The row
// lock makes the read-then-write safe against concurrent deliveries.
func (r *Repo) Transition(ctx context.Context, orderID string, to Status, note, actor *string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, err
	}

	if cur == to || IsTerminal(cur) {
		return false, nil
	}
	if !CanTransition(cur, to) {
		return false, &InvalidTransitionError{From: cur, To: to}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, orderID, to); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_history(id, order_id, status, note, actor)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), orderID, to, note, actor,
	); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SetTransactionID records the provider's charge reference once payment is
// captured. Refund events are keyed by it.
func (r *Repo) SetTransactionID(ctx context.Context, orderID, txnID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_txn_id = $2, updated_at = now() WHERE id = $1`, orderID, txnID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceFulfillment moves the shipment stage forward, optionally attaching
// a carrier tracking reference. Backward movement is rejected.
func (r *Repo) AdvanceFulfillment(ctx context.Context, orderID string, stage FulfillmentStage, tracking *string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur FulfillmentStage
	err = tx.QueryRow(ctx, `SELECT fulfillment_stage FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !CanAdvanceFulfillment(cur, stage) {
		return fmt.Errorf("fulfillment cannot move %s -> %s", cur, stage)
	}

	if tracking != nil {
		_, err = tx.Exec(ctx, `
			UPDATE orders SET fulfillment_stage = $2, tracking_ref = $3, updated_at = now()
			WHERE id = $1`, orderID, stage, *tracking)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE orders SET fulfillment_stage = $2, updated_at = now() WHERE id = $1`, orderID, stage)
	}
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendOperatorNote adds to the order's free-text operational note. Used
// for reconciliation warnings that need manual follow-up.
func (r *Repo) AppendOperatorNote(ctx context.Context, orderID, note string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET
			operator_note = CASE WHEN operator_note IS NULL OR operator_note = ''
				THEN $2 ELSE operator_note || E'\n' || $2 END,
			updated_at = now()
		WHERE id = $1`, orderID, note)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveAddress persists a standalone address record owned by the purchasing
// user (nil for guest checkout).
func (r *Repo) SaveAddress(ctx context.Context, a Address) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.Exec(ctx, `
		INSERT INTO addresses(id, user_id, name, line1, line2, city, region, postal_code, country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		id, a.UserID, a.Name, a.Line1, a.Line2, a.City, a.Region, a.PostalCode, a.Country,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repo) GetAddress(ctx context.Context, id string) (*Address, error) {
	var a Address
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, name, line1, line2, city, region, postal_code, country
		FROM addresses WHERE id = $1`, id).Scan(
		&a.ID, &a.UserID, &a.Name, &a.Line1, &a.Line2, &a.City, &a.Region, &a.PostalCode, &a.Country,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
