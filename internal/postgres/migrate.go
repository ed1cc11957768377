package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema and data backfills. Every statement is
// idempotent, so running it on each startup is safe.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id           TEXT PRIMARY KEY,
			sku          TEXT UNIQUE,
			name         TEXT NOT NULL,
			stock        INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
			price_cents  INT NOT NULL,
			published    BOOLEAN NOT NULL DEFAULT TRUE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS addresses (
			id           TEXT PRIMARY KEY,
			user_id      TEXT,
			name         TEXT NOT NULL,
			line1        TEXT NOT NULL,
			line2        TEXT,
			city         TEXT NOT NULL,
			region       TEXT,
			postal_code  TEXT NOT NULL,
			country      TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id                  TEXT PRIMARY KEY,
			email               TEXT NOT NULL,
			user_id             TEXT,
			subtotal_cents      INT NOT NULL,
			tax_cents           INT NOT NULL,
			shipping_cents      INT NOT NULL,
			total_cents         INT NOT NULL,
			payment_session_id  TEXT,
			payment_txn_id      TEXT,
			status              TEXT NOT NULL,
			fulfillment_stage   TEXT NOT NULL DEFAULT 'NOT_STARTED',
			tracking_ref        TEXT,
			operator_note       TEXT,
			shipping_address_id TEXT REFERENCES addresses(id),
			billing_address_id  TEXT REFERENCES addresses(id),
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS orders_payment_session_id_key
			ON orders (payment_session_id) WHERE payment_session_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS orders_payment_txn_id_idx
			ON orders (payment_txn_id) WHERE payment_txn_id IS NOT NULL`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id               TEXT PRIMARY KEY,
			order_id         TEXT NOT NULL REFERENCES orders(id),
			product_id       TEXT NOT NULL REFERENCES products(id),
			qty              INT NOT NULL CHECK (qty > 0),
			unit_price_cents INT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS order_items_order_id_idx ON order_items (order_id)`,
		`CREATE TABLE IF NOT EXISTS order_status_history (
			id         TEXT PRIMARY KEY,
			order_id   TEXT NOT NULL REFERENCES orders(id),
			status     TEXT NOT NULL,
			note       TEXT,
			actor      TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS order_status_history_order_idx
			ON order_status_history (order_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS inventory_events (
			id            TEXT PRIMARY KEY,
			product_id    TEXT NOT NULL REFERENCES products(id),
			delta         INT NOT NULL,
			reason        TEXT NOT NULL,
			actor         TEXT,
			order_id      TEXT,
			order_line_id TEXT,
			prev_stock    INT NOT NULL,
			new_stock     INT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS inventory_events_product_idx
			ON inventory_events (product_id, created_at)`,
		// Legacy orders predate the fulfillment axis; normalize them once at
		// startup instead of patching lazily per request.
		`UPDATE orders SET fulfillment_stage = 'NOT_STARTED'
			WHERE fulfillment_stage IS NULL OR fulfillment_stage = ''`,
	}

	for _, s := range stmts {
		if _, err := db.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
