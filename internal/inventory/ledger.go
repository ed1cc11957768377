package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ShortItem struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

// InsufficientStockError aborts a Deduct when any line cannot be covered.
type InsufficientStockError struct {
	OrderID string
	Items   []ShortItem
}

func (e *InsufficientStockError) Error() string {
	names := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		names = append(names, fmt.Sprintf("%s (have %d, want %d)", it.ProductID, it.Available, it.Required))
	}
	return fmt.Sprintf("insufficient stock for order %s: %s", e.OrderID, strings.Join(names, ", "))
}

// Ledger mutates product stock and appends the immutable audit trail. It is
// deliberately dumb: it does not track whether an order's stock was already
// deducted. The caller checks order status before invoking it.
type Ledger struct{ DB *pgxpool.Pool }

// Deduct decrements stock for every line of the order, all-or-nothing, and
// appends one inventory event per line. The decrement is a relative update
// guarded by the stock check in the same statement, so two concurrent
// deductions cannot race a product below zero.
func (l *Ledger) Deduct(ctx context.Context, orderID string, actor *string) error {
	reason := fmt.Sprintf("order %s paid", orderID)
	return l.apply(ctx, orderID, -1, reason, actor)
}

// Restore is the symmetric increment, used on failure after capture and on
// refund. Only call it for an order whose stock was previously deducted.
func (l *Ledger) Restore(ctx context.Context, orderID, reason string, actor *string) error {
	return l.apply(ctx, orderID, +1, reason, actor)
}

func (l *Ledger) apply(ctx context.Context, orderID string, sign int, reason string, actor *string) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, qty FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return err
	}
	type line struct {
		id, productID string
		qty           int
	}
	var lines []line
	for rows.Next() {
		var ln line
		if err := rows.Scan(&ln.id, &ln.productID, &ln.qty); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, ln)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("order %s has no line items", orderID)
	}

	var short []ShortItem
	for _, ln := range lines {
		delta := sign * ln.qty

		var newStock int
		if sign < 0 {
			err = tx.QueryRow(ctx, `
				UPDATE products SET stock = stock - $2, updated_at = now()
				WHERE id = $1 AND stock >= $2
				RETURNING stock`, ln.productID, ln.qty).Scan(&newStock)
		} else {
			err = tx.QueryRow(ctx, `
				UPDATE products SET stock = stock + $2, updated_at = now()
				WHERE id = $1
				RETURNING stock`, ln.productID, ln.qty).Scan(&newStock)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			// Not enough stock (or unknown product). Record the shortfall
			// and keep scanning so the error names every short line.
			var have int
			if serr := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, ln.productID).Scan(&have); serr != nil {
				have = 0
			}
			short = append(short, ShortItem{ProductID: ln.productID, Required: ln.qty, Available: have})
			continue
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory_events(id, product_id, delta, reason, actor, order_id, order_line_id, prev_stock, new_stock)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			uuid.NewString(), ln.productID, delta, reason, actor, orderID, ln.id, newStock-delta, newStock,
		); err != nil {
			return err
		}
	}

	if len(short) > 0 {
		// rollback via defer: no partial deduction, no events
		return &InsufficientStockError{OrderID: orderID, Items: short}
	}
	return tx.Commit(ctx)
}
